package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /v1/webhook", h.VerifyWebhook)
	mux.HandleFunc("POST /v1/webhook", h.ReceiveWebhook)

	mux.HandleFunc("POST /v1/messages", h.SendMessage)
	mux.HandleFunc("GET /v1/messages/sent", h.ListSentMessages)

	mux.HandleFunc("GET /v1/dispatcher/status", h.DispatcherStatus)
	mux.HandleFunc("POST /v1/dispatcher/start", h.DispatcherStart)
	mux.HandleFunc("POST /v1/dispatcher/stop", h.DispatcherStop)

	mux.HandleFunc("POST /v1/welcome", h.SetupWelcome)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("messenger-transport"))
	})

	return mux
}
