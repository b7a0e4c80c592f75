package http

import (
	"net/http"
	"strings"

	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// QRHandler serves a PNG QR code pointing players at the hunt.
func (a *API) QRHandler(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(a.joinURL(r), qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// joinURL prefers the configured public URL and falls back to the request host.
func (a *API) joinURL(r *http.Request) string {
	if a.deps.PublicURL != "" {
		return a.deps.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + strings.TrimSuffix(r.Host, "/") + "/"
}
