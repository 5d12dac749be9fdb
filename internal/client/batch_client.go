package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// BatchClient multiplexes many sub-requests into one HTTP call against
// the platform's batch endpoint.
type BatchClient struct {
	url         string
	accessToken string
	client      *http.Client
}

func NewBatchClient(url, accessToken string, timeout time.Duration) *BatchClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BatchClient{
		url:         strings.TrimRight(url, "/"),
		accessToken: accessToken,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// BatchResponse carries the overall status plus the positional
// sub-results, when the body held any. Items stays nil when the body
// was a single error object.
type BatchResponse struct {
	Status int
	Items  []*model.BatchResultItem
}

type batchItem struct {
	Method      string `json:"method"`
	RelativeURL string `json:"relative_url"`
	Body        string `json:"body"`
}

// Call submits the requests as one batched POST. It returns an error
// only for transport-level failures; a non-200 status comes back in
// the response so the caller can still mine partial per-item results.
func (c *BatchClient) Call(ctx context.Context, reqs []model.OutboundRequest) (*BatchResponse, error) {
	items := make([]batchItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, batchItem{
			Method:      r.Method,
			RelativeURL: r.RelativeURL,
			Body:        r.Body,
		})
	}

	batch, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("access_token", c.accessToken)
	form.Set("include_headers", "false")
	form.Set("batch", string(batch))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read batch response: %w", err)
	}

	out := &BatchResponse{Status: resp.StatusCode}

	// The body is either a positional result array or a lone error
	// object; the latter simply leaves Items nil.
	var results []*model.BatchResultItem
	if err := json.Unmarshal(body, &results); err == nil {
		out.Items = results
	}
	return out, nil
}

type welcomePayload struct {
	SettingType   string `json:"setting_type"`
	ThreadState   string `json:"thread_state"`
	CallToActions any    `json:"call_to_actions"`
}

// SetupWelcomeMessage registers the new-thread welcome message for an
// app via the thread settings endpoint.
func (c *BatchClient) SetupWelcomeMessage(ctx context.Context, appID string, callToActions any) error {
	body, err := json.Marshal(welcomePayload{
		SettingType:   "call_to_actions",
		ThreadState:   "new_thread",
		CallToActions: callToActions,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/thread_settings?access_token=%s",
		c.url, appID, url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(respBody))
	}
	return nil
}
