package builder

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// SendPath is the relative URL every message sub-request targets.
const SendPath = "me/messages"

// WrapRequest form-encodes a rendered payload into a batch sub-request:
// each top-level payload key becomes a form field holding compact JSON.
// The recipient id stays recoverable from the encoded body, which is
// what the dispatcher's dedup pass relies on.
func WrapRequest(messageID string, payload map[string]any) (model.OutboundRequest, error) {
	vals := url.Values{}
	for k, v := range payload {
		b, err := json.Marshal(v)
		if err != nil {
			return model.OutboundRequest{}, fmt.Errorf("encode %s: %w", k, err)
		}
		vals.Set(k, string(b))
	}
	return model.OutboundRequest{
		MessageID:   messageID,
		Method:      http.MethodPost,
		RelativeURL: SendPath,
		Body:        vals.Encode(),
	}, nil
}
