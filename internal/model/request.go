package model

import "encoding/json"

// OutboundRequest is one pending batch sub-request. Body is the
// platform-encoded form string; whoever holds the request (queue or an
// in-flight pending list) owns it exclusively.
type OutboundRequest struct {
	MessageID   string `json:"messageId"`
	Method      string `json:"method"`
	RelativeURL string `json:"relative_url"`
	Body        string `json:"body"`
}

// BatchResultItem is one positional sub-result of a batch call. A nil
// *BatchResultItem means the sub-request did not complete. Body may be
// an inline JSON object or a JSON-encoded string holding one.
type BatchResultItem struct {
	Code int             `json:"code"`
	Body json.RawMessage `json:"body,omitempty"`
}

// DecodeBody unwraps Body into a generic map, accepting both the inline
// and string-wrapped encodings the batch API has been seen to return.
func (it *BatchResultItem) DecodeBody() (map[string]any, error) {
	if len(it.Body) == 0 {
		return nil, nil
	}
	raw := it.Body
	var wrapped string
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		raw = []byte(wrapped)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
