package domain

import (
	"math"
	"sort"
)

// RankEvents derives standings from raw leaderboard events. Each player is
// represented by their highest level, reached at the earliest time for that
// level. Rows are ordered by level desc, time asc, username asc.
func RankEvents(events []LeaderboardEvent) []Standing {
	best := make(map[string]LeaderboardEvent, len(events))
	for _, ev := range events {
		cur, ok := best[ev.Username]
		if !ok || ev.Level > cur.Level || (ev.Level == cur.Level && ev.ReachedAt.Before(cur.ReachedAt)) {
			best[ev.Username] = ev
		}
	}

	standings := make([]Standing, 0, len(best))
	for _, ev := range best {
		standings = append(standings, Standing{
			Username:  ev.Username,
			Level:     ev.Level,
			ReachedAt: ev.ReachedAt,
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Level != standings[j].Level {
			return standings[i].Level > standings[j].Level
		}
		if !standings[i].ReachedAt.Equal(standings[j].ReachedAt) {
			return standings[i].ReachedAt.Before(standings[j].ReachedAt)
		}
		return standings[i].Username < standings[j].Username
	})
	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}

// PositionOf returns the standing for username, if present.
func PositionOf(standings []Standing, username string) (Standing, bool) {
	for _, s := range standings {
		if s.Username == username {
			return s, true
		}
	}
	return Standing{}, false
}

// Medal returns the podium emoji for positions 1-3.
func Medal(position int) string {
	switch position {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	}
	return ""
}

// Percentile is the "top N%" figure shown next to a player's rank.
func Percentile(position, total int) int {
	if total <= 0 || position <= 0 {
		return 0
	}
	return int(math.Round(float64(position) / float64(total) * 100))
}
