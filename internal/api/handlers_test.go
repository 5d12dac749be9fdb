package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LeventeLantos/messenger-transport/internal/client"
	"github.com/LeventeLantos/messenger-transport/internal/dispatcher"
	"github.com/LeventeLantos/messenger-transport/internal/host"
	"github.com/LeventeLantos/messenger-transport/internal/model"
	"github.com/LeventeLantos/messenger-transport/internal/service"
)

type stubQueue struct {
	items []model.OutboundRequest
}

func (q *stubQueue) Push(_ context.Context, req model.OutboundRequest) (int64, error) {
	q.items = append(q.items, req)
	return int64(len(q.items)), nil
}

func (q *stubQueue) PopBatch(context.Context, int) ([]model.OutboundRequest, error) {
	return nil, nil
}

func (q *stubQueue) PushFront(context.Context, ...model.OutboundRequest) error { return nil }

func (q *stubQueue) Length(context.Context) (int64, error) { return int64(len(q.items)), nil }

type stubCaller struct{}

func (stubCaller) Call(context.Context, []model.OutboundRequest) (*client.BatchResponse, error) {
	return &client.BatchResponse{Status: 200}, nil
}

type fakeJournal struct {
	records []model.DeliveryRecord
	listErr error
}

func (j *fakeJournal) Record(context.Context, string, string) error { return nil }

func (j *fakeJournal) MarkSent(context.Context, string, string) error { return nil }

func (j *fakeJournal) MarkFailed(context.Context, string, string) error { return nil }

func (j *fakeJournal) ListSent(context.Context, int, int) ([]model.DeliveryRecord, error) {
	if j.listErr != nil {
		return nil, j.listErr
	}
	return j.records, nil
}

type fakeWelcome struct {
	appID string
	ctas  any
	err   error
}

func (w *fakeWelcome) SetupWelcomeMessage(_ context.Context, appID string, callToActions any) error {
	w.appID = appID
	w.ctas = callToActions
	return w.err
}

func newTestHandler(t *testing.T) (*Handler, *stubQueue) {
	t.Helper()

	q := &stubQueue{}
	h := host.LogHost{}
	svc := service.NewTransport(h, q)

	d, err := dispatcher.New(
		dispatcher.Config{Interval: time.Hour, BatchSize: 10},
		q, stubCaller{}, dispatcher.NewCorrelator(h, q),
	)
	if err != nil {
		t.Fatalf("dispatcher.New() error: %v", err)
	}
	t.Cleanup(func() { d.Stop() })

	return NewHandler(svc, d, "verify-me"), q
}

func decodeJSON(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()

	Router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeJSON(t, rec.Body); got["ok"] != true {
		t.Fatalf("unexpected body: %v", got)
	}
}

func TestVerifyWebhook(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	router := Router(h)

	t.Run("valid token echoes challenge", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			"/v1/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=ch-42", nil)

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if rec.Body.String() != "ch-42" {
			t.Fatalf("body = %q, want challenge echoed", rec.Body.String())
		}
	})

	t.Run("wrong token rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			"/v1/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=ch-42", nil)

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("missing mode rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/webhook?hub.verify_token=verify-me", nil)

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestReceiveWebhook(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	router := Router(h)

	payload := `{
	  "object": "page",
	  "entry": [{"id": "P", "time": 1, "messaging": [
	    {"sender": {"id": "U"}, "recipient": {"id": "P"}, "timestamp": 1457764197627,
	     "message": {"mid": "mid.1", "text": "hello"}}
	  ]}]
	}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/webhook", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeJSON(t, rec.Body); got["events"] != float64(1) {
		t.Fatalf("unexpected body: %v", got)
	}
}

func TestReceiveWebhook_ChallengeBypass(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()

	Router(h).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/webhook?hub.challenge=ch-7", strings.NewReader("ignored")))

	if rec.Code != http.StatusOK || rec.Body.String() != "ch-7" {
		t.Fatalf("status = %d body = %q, want 200 with challenge", rec.Code, rec.Body.String())
	}
}

func TestReceiveWebhook_BadPayload(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()

	Router(h).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/webhook", strings.NewReader("not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	h, q := newTestHandler(t)
	rec := httptest.NewRecorder()

	body := `{"messageId":"u-1","to":"+1","content":"hi"}`
	Router(h).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeJSON(t, rec.Body); got["queued"] != float64(1) {
		t.Fatalf("unexpected body: %v", got)
	}
	if len(q.items) != 1 || q.items[0].MessageID != "u-1" {
		t.Fatalf("unexpected queue contents: %+v", q.items)
	}
}

func TestSendMessage_Unsupported(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()

	body := `{"to":"+1","content":"x","messenger":{"template_type":"button","buttons":[{"type":"nope"}]}}`
	Router(h).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
	}
}

func TestSendMessage_BadJSON(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()

	Router(h).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader("{")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDispatcherEndpoints(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	router := Router(h)

	status := func(t *testing.T) bool {
		t.Helper()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/dispatcher/status", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status endpoint = %d, want 200", rec.Code)
		}
		running, _ := decodeJSON(t, rec.Body)["running"].(bool)
		return running
	}

	if status(t) {
		t.Fatalf("dispatcher should start stopped")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/dispatcher/start", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("start endpoint = %d, want 200", rec.Code)
	}
	if !status(t) {
		t.Fatalf("dispatcher should be running after start")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/dispatcher/stop", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stop endpoint = %d, want 200", rec.Code)
	}
	if status(t) {
		t.Fatalf("dispatcher should be stopped after stop")
	}
}

func TestListSentMessages_JournalDisabled(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()

	Router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/messages/sent", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestListSentMessages(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	h.WithJournal(&fakeJournal{records: []model.DeliveryRecord{
		{MessageID: "u-1", Recipient: "+1", Status: model.Sent},
	}})

	rec := httptest.NewRecorder()
	Router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/messages/sent?limit=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	items, ok := decodeJSON(t, rec.Body)["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestSetupWelcome(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	wc := &fakeWelcome{}
	h.WithWelcomeClient(wc)

	rec := httptest.NewRecorder()
	body := `{"app_id":"app-1","call_to_actions":[{"message":{"text":"hello"}}]}`
	Router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/welcome", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if wc.appID != "app-1" {
		t.Fatalf("welcome client got app id %q", wc.appID)
	}
}

func TestSetupWelcome_MissingAppID(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	h.WithWelcomeClient(&fakeWelcome{})

	rec := httptest.NewRecorder()
	Router(h).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/welcome", strings.NewReader(`{"call_to_actions":[]}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSetupWelcome_UpstreamError(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	h.WithWelcomeClient(&fakeWelcome{err: errors.New("platform said no")})

	rec := httptest.NewRecorder()
	Router(h).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/welcome", strings.NewReader(`{"app_id":"a"}`)))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestRoot(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()

	Router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "messenger-transport" {
		t.Fatalf("unexpected root response: %d %q", rec.Code, rec.Body.String())
	}
}
