package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/LeventeLantos/messenger-transport/internal/builder"
	"github.com/LeventeLantos/messenger-transport/internal/dispatcher"
	"github.com/LeventeLantos/messenger-transport/internal/model"
	"github.com/LeventeLantos/messenger-transport/internal/normalizer"
	"github.com/LeventeLantos/messenger-transport/internal/repo"
	"github.com/LeventeLantos/messenger-transport/internal/service"
)

// WelcomeClient registers the new-thread welcome message.
type WelcomeClient interface {
	SetupWelcomeMessage(ctx context.Context, appID string, callToActions any) error
}

type Handler struct {
	svc         *service.Transport
	disp        *dispatcher.Dispatcher
	journal     repo.DeliveryJournal
	welcome     WelcomeClient
	verifyToken string
}

func NewHandler(svc *service.Transport, d *dispatcher.Dispatcher, verifyToken string) *Handler {
	return &Handler{svc: svc, disp: d, verifyToken: verifyToken}
}

// WithJournal enables the sent-messages listing.
func (h *Handler) WithJournal(j repo.DeliveryJournal) *Handler {
	h.journal = j
	return h
}

// WithWelcomeClient enables the welcome-message endpoint.
func (h *Handler) WithWelcomeClient(c WelcomeClient) *Handler {
	h.welcome = c
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// VerifyWebhook answers the platform's subscription handshake: echo the
// challenge only for a subscribe request carrying the right token.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	http.Error(w, "Bad Request", http.StatusNotFound)
}

func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	// A challenge on the event endpoint bypasses normalization entirely.
	if challenge := r.URL.Query().Get("hub.challenge"); challenge != "" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	published, entryErrs, err := h.svc.HandleInbound(r.Context(), body)
	if err != nil {
		if errors.Is(err, normalizer.ErrParse) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"events": published}
	if len(entryErrs) > 0 {
		resp["errors"] = entryErrs
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var msg model.OutboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	queued, err := h.svc.Send(r.Context(), msg)
	if err != nil {
		if errors.Is(err, builder.ErrUnsupportedMessage) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"queued": queued})
}

func (h *Handler) DispatcherStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.disp.IsRunning()})
}

func (h *Handler) DispatcherStart(w http.ResponseWriter, r *http.Request) {
	h.disp.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.disp.IsRunning()})
}

func (h *Handler) DispatcherStop(w http.ResponseWriter, r *http.Request) {
	h.disp.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.disp.IsRunning()})
}

func (h *Handler) ListSentMessages(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		http.Error(w, "delivery journal disabled", http.StatusServiceUnavailable)
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.journal.ListSent(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type welcomeRequest struct {
	AppID         string `json:"app_id"`
	CallToActions any    `json:"call_to_actions"`
}

func (h *Handler) SetupWelcome(w http.ResponseWriter, r *http.Request) {
	if h.welcome == nil {
		http.Error(w, "welcome client disabled", http.StatusServiceUnavailable)
		return
	}

	var req welcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AppID == "" {
		http.Error(w, "app_id is required", http.StatusBadRequest)
		return
	}

	if err := h.welcome.SetupWelcomeMessage(r.Context(), req.AppID, req.CallToActions); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
