package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// ErrParse is returned only when the webhook payload cannot be decoded
// at the top level. Anything wrong below that is reported per entry.
var ErrParse = errors.New("cannot decode webhook payload")

// adsSource marks a referral as originating from an ad; only then does
// the ad id survive into the normalized event.
const adsSource = "ADS"

type payload struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []messagingEntry `json:"messaging"`
}

type messagingEntry struct {
	Sender         *party         `json:"sender"`
	Recipient      *party         `json:"recipient"`
	Timestamp      int64          `json:"timestamp"`
	Message        *messageBlock  `json:"message"`
	Optin          map[string]any `json:"optin"`
	Delivery       map[string]any `json:"delivery"`
	Postback       *postbackBlock `json:"postback"`
	Referral       map[string]any `json:"referral"`
	AccountLinking map[string]any `json:"account_linking"`
}

type party struct {
	ID string `json:"id"`
}

type messageBlock struct {
	MID         string          `json:"mid"`
	Text        string          `json:"text"`
	QuickReply  *quickReplyHint `json:"quick_reply"`
	Attachments []any           `json:"attachments"`
}

type quickReplyHint struct {
	Payload string `json:"payload"`
}

type postbackBlock struct {
	Payload  string         `json:"payload"`
	Referral map[string]any `json:"referral"`
}

// Parse normalizes a raw webhook payload into ordered events plus
// per-entry error strings. A single bad messaging entry never aborts
// the rest; the only hard failure is an undecodable payload.
func Parse(raw []byte) ([]model.InboundEvent, []string, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var events []model.InboundEvent
	var errs []string

	for _, e := range p.Entry {
		for _, m := range e.Messaging {
			evs, err := classify(m)
			if err != "" {
				errs = append(errs, err)
				continue
			}
			events = append(events, evs...)
		}
	}
	return events, errs, nil
}

// classify applies the first-match-wins precedence over the known
// messaging entry shapes. It returns either one or two events, or a
// human-readable reason the entry was skipped.
func classify(m messagingEntry) ([]model.InboundEvent, string) {
	if m.Sender == nil || m.Recipient == nil {
		return nil, fmt.Sprintf("messaging entry missing sender or recipient: %s", describe(m))
	}

	base := model.InboundEvent{
		ToAddr:    m.Recipient.ID,
		FromAddr:  m.Sender.ID,
		Timestamp: time.UnixMilli(m.Timestamp).UTC(),
		Extra:     map[string]any{},
	}

	switch {
	case m.Message != nil && m.Message.QuickReply != nil:
		ev := base
		ev.MID = optional(m.Message.MID)
		ev.Content = m.Message.Text

		fields := map[string]any{}
		if err := json.Unmarshal([]byte(m.Message.QuickReply.Payload), &fields); err != nil {
			return nil, fmt.Sprintf("bad quick reply payload %q: %v", m.Message.QuickReply.Payload, err)
		}
		if irt, ok := fields["in_reply_to"].(string); ok {
			ev.InReplyTo = &irt
			delete(fields, "in_reply_to")
		}
		ev.Extra = fields
		return []model.InboundEvent{ev}, ""

	case m.Message != nil && m.Message.Text != "":
		ev := base
		ev.MID = optional(m.Message.MID)
		ev.Content = m.Message.Text
		return []model.InboundEvent{ev}, ""

	case m.Message != nil && len(m.Message.Attachments) > 0:
		ev := base
		ev.MID = optional(m.Message.MID)
		ev.Extra = map[string]any{"attachments": m.Message.Attachments}
		return []model.InboundEvent{ev}, ""

	case m.Optin != nil:
		ev := base
		ev.Extra = map[string]any{"optin": m.Optin}
		return []model.InboundEvent{ev}, ""

	case m.Delivery != nil:
		return nil, fmt.Sprintf("delivery receipts not supported: %s", describe(m))

	case m.Postback != nil:
		fields := map[string]any{}
		if err := json.Unmarshal([]byte(m.Postback.Payload), &fields); err != nil {
			return nil, fmt.Sprintf("bad postback payload %q: %v", m.Postback.Payload, err)
		}

		ev := base
		if content, ok := fields["content"].(string); ok {
			ev.Content = content
		}
		delete(fields, "content")
		if irt, ok := fields["in_reply_to"].(string); ok {
			ev.InReplyTo = &irt
		}
		delete(fields, "in_reply_to")
		ev.Extra = fields

		events := []model.InboundEvent{ev}
		if m.Postback.Referral != nil {
			ref := base
			ref.Extra = map[string]any{"referral": m.Postback.Referral}
			events = append(events, ref)
		}
		return events, ""

	case m.Referral != nil:
		ev := base
		ev.Extra = map[string]any{"referral": referralFields(m.Referral)}
		return []model.InboundEvent{ev}, ""

	case m.AccountLinking != nil:
		ev := base
		ev.Extra = map[string]any{"account_linking": m.AccountLinking}
		return []model.InboundEvent{ev}, ""
	}

	return nil, fmt.Sprintf("unrecognized messaging entry: %s", describe(m))
}

// referralFields keeps the source and ref of a standalone referral and
// the ad id only when the referral came in through an ad.
func referralFields(block map[string]any) map[string]any {
	out := map[string]any{
		"source": block["source"],
		"ref":    block["ref"],
	}
	if src, ok := block["source"].(string); ok && src == adsSource {
		if adID, ok := block["ad_id"]; ok {
			out["ad_id"] = adID
		}
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func describe(m messagingEntry) string {
	b, err := json.Marshal(m)
	if err != nil {
		return "<unencodable>"
	}
	return string(b)
}
