package http

import (
	"fmt"
	"net/http"

	"freefall-server/internal/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// NewRouter serves the websocket endpoint, challenge invite codes, metrics and health.
// gatherer may be nil to skip /metrics.
func NewRouter(service *app.GameService, ws *WSHandler, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("GET /challenges/{id}/qr", func(w http.ResponseWriter, r *http.Request) {
		serveInviteQR(service, w, r)
	})
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func serveInviteQR(service *app.GameService, w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := service.ChallengeSnapshot(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	invite := fmt.Sprintf("%s://%s/?challenge=%s", scheme, r.Host, id)
	png, err := qrcode.Encode(invite, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
