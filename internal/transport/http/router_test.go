package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"
)

type envelope struct {
	Error   bool            `json:"error"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func do(t *testing.T, c *http.Client, method, url, token string, body io.Reader) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&env)
	}
	return resp.StatusCode, env
}

func jsonBody(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func TestSessionPlaythroughOverREST(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	status, _ := do(t, c, http.MethodPost, srv.URL+"/api/session", "", jsonBody(map[string]string{"name": "  "}))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", status)
	}

	status, env := do(t, c, http.MethodPost, srv.URL+"/api/session", "", jsonBody(map[string]string{"name": "alice"}))
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", status, env.Message)
	}

	status, env = do(t, c, http.MethodPost, srv.URL+"/api/session/hints/0", "", nil)
	if status != http.StatusOK {
		t.Fatalf("hint: expected 200, got %d", status)
	}
	status, _ = do(t, c, http.MethodPost, srv.URL+"/api/session/hints/7", "", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("hint out of range: expected 400, got %d", status)
	}

	for _, answer := range []string{"4", "PARIS"} {
		status, env = do(t, c, http.MethodPost, srv.URL+"/api/session/answer", "", jsonBody(map[string]string{"answer": answer}))
		if status != http.StatusOK {
			t.Fatalf("answer %q: status %d", answer, status)
		}
		var res struct {
			Correct bool `json:"correct"`
		}
		_ = json.Unmarshal(env.Data, &res)
		if !res.Correct {
			t.Fatalf("expected %q to be correct", answer)
		}
	}

	status, env = do(t, c, http.MethodGet, srv.URL+"/api/session", "", nil)
	if status != http.StatusOK {
		t.Fatalf("view: status %d", status)
	}
	var view struct {
		State   string `json:"state"`
		Message string `json:"message"`
		Stats   struct {
			Position int    `json:"position"`
			Medal    string `json:"medal"`
		} `json:"stats"`
	}
	_ = json.Unmarshal(env.Data, &view)
	if view.State != "completed" || !strings.Contains(view.Message, "alice") {
		t.Fatalf("expected completed view, got %+v", view)
	}
	if view.Stats.Position != 1 || view.Stats.Medal == "" {
		t.Fatalf("expected first place medal, got %+v", view.Stats)
	}

	status, _ = do(t, c, http.MethodPost, srv.URL+"/api/session/answer", "", jsonBody(map[string]string{"answer": "x"}))
	if status != http.StatusConflict {
		t.Fatalf("answer after completion: expected 409, got %d", status)
	}

	status, _ = do(t, c, http.MethodDelete, srv.URL+"/api/session", "", nil)
	if status != http.StatusNoContent {
		t.Fatalf("logout: status %d", status)
	}
	status, _ = do(t, c, http.MethodPost, srv.URL+"/api/session/answer", "", jsonBody(map[string]string{"answer": "4"}))
	if status != http.StatusConflict {
		t.Fatalf("answer while anonymous: expected 409, got %d", status)
	}
}

func TestLeaderboardEndpoints(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	status, _ := do(t, c, http.MethodGet, srv.URL+"/api/leaderboard/alice", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("unranked: expected 404, got %d", status)
	}

	_, _ = do(t, c, http.MethodPost, srv.URL+"/api/session", "", jsonBody(map[string]string{"name": "alice"}))
	_, _ = do(t, c, http.MethodPost, srv.URL+"/api/session/answer", "", jsonBody(map[string]string{"answer": "4"}))

	status, env := do(t, c, http.MethodGet, srv.URL+"/api/leaderboard", "", nil)
	if status != http.StatusOK {
		t.Fatalf("leaderboard: status %d", status)
	}
	var board struct {
		Standings []struct {
			Username string `json:"username"`
			Position int    `json:"position"`
		} `json:"standings"`
	}
	_ = json.Unmarshal(env.Data, &board)
	if len(board.Standings) != 1 || board.Standings[0].Username != "alice" {
		t.Fatalf("unexpected board %s", env.Data)
	}

	status, env = do(t, c, http.MethodGet, srv.URL+"/api/leaderboard/alice", "", nil)
	if status != http.StatusOK {
		t.Fatalf("rank: status %d", status)
	}
	var rank rankResponse
	_ = json.Unmarshal(env.Data, &rank)
	if rank.Position != 1 || rank.Percentile != 100 {
		t.Fatalf("unexpected rank %+v", rank)
	}
}

func TestAdminRoutes(t *testing.T) {
	srv := newTestServer(t)
	admin := newClient(t)
	player := newClient(t)

	status, _ := do(t, admin, http.MethodGet, srv.URL+"/api/admin/questions", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	status, _ = do(t, admin, http.MethodPost, srv.URL+"/api/admin/login", "", jsonBody(map[string]string{"username": "admin", "password": "nope"}))
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", status)
	}

	status, env := do(t, admin, http.MethodPost, srv.URL+"/api/admin/login", "", jsonBody(map[string]string{"username": "admin", "password": "admin2025"}))
	if status != http.StatusOK {
		t.Fatalf("login: status %d", status)
	}
	var login loginResponse
	_ = json.Unmarshal(env.Data, &login)
	if login.Token == "" {
		t.Fatalf("expected token")
	}
	token := login.Token

	status, _ = do(t, admin, http.MethodPut, srv.URL+"/api/admin/questions/2", token,
		jsonBody(map[string]any{"question": "Color of the sky?", "answer": "blue", "hints": []string{"look up", "nan", ""}}))
	if status != http.StatusOK {
		t.Fatalf("put question: status %d", status)
	}
	status, env = do(t, admin, http.MethodGet, srv.URL+"/api/admin/questions/2", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get question: status %d", status)
	}
	var q struct {
		Hints []string `json:"hints"`
	}
	_ = json.Unmarshal(env.Data, &q)
	if len(q.Hints) != 1 {
		t.Fatalf("expected blank hints dropped, got %v", q.Hints)
	}

	status, _ = do(t, admin, http.MethodPost, srv.URL+"/api/admin/questions", token,
		jsonBody(map[string]any{"level": -1, "question": "bad", "answer": "bad"}))
	if status != http.StatusBadRequest {
		t.Fatalf("negative level: expected 400, got %d", status)
	}

	csv := "Round,Question,Answer,Hint1\n2,Replaced?,no,\nfour,Bad round,no,\n3,New one,yes,https://example.com\n"
	status, env = do(t, admin, http.MethodPost, srv.URL+"/api/admin/questions/import", token, strings.NewReader(csv))
	if status != http.StatusOK {
		t.Fatalf("import: status %d (%s)", status, env.Message)
	}
	var imported struct {
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
		Invalid  int `json:"invalid"`
	}
	_ = json.Unmarshal(env.Data, &imported)
	if imported.Inserted != 1 || imported.Skipped != 1 || imported.Invalid != 1 {
		t.Fatalf("unexpected import result %s", env.Data)
	}

	status, _ = do(t, admin, http.MethodDelete, srv.URL+"/api/admin/questions/3", token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete question: status %d", status)
	}
	status, _ = do(t, admin, http.MethodGet, srv.URL+"/api/admin/questions/3", token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("deleted question: expected 404, got %d", status)
	}

	_, _ = do(t, player, http.MethodPost, srv.URL+"/api/session", "", jsonBody(map[string]string{"name": "carol"}))
	_, _ = do(t, player, http.MethodPost, srv.URL+"/api/session/answer", "", jsonBody(map[string]string{"answer": "4"}))

	status, env = do(t, admin, http.MethodGet, srv.URL+"/api/admin/players", token, nil)
	if status != http.StatusOK || !strings.Contains(string(env.Data), "carol") {
		t.Fatalf("players: status %d body %s", status, env.Data)
	}

	status, _ = do(t, admin, http.MethodPost, srv.URL+"/api/admin/players/carol/reset", token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("reset: status %d", status)
	}
	status, _ = do(t, player, http.MethodGet, srv.URL+"/api/leaderboard/carol", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("reset player should be unranked, got %d", status)
	}
	if logs := srv.logs.String(); !strings.Contains(logs, "action=reset_player by=admin username=carol") {
		t.Fatalf("expected reset attributed to admin in logs, got:\n%s", logs)
	}

	status, _ = do(t, admin, http.MethodDelete, srv.URL+"/api/admin/players/carol", token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete player: status %d", status)
	}
	status, _ = do(t, admin, http.MethodDelete, srv.URL+"/api/admin/players/carol", token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("second delete should be idempotent, got %d", status)
	}
}

func TestHealthAndQR(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/qr.png")
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected png, got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Fatalf("expected PNG signature")
	}
}
