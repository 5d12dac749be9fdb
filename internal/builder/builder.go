package builder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// ErrUnsupportedMessage means the metadata references a button or quick
// reply kind the platform does not know. Surfaced to the send caller;
// the message is never enqueued.
var ErrUnsupportedMessage = errors.New("unsupported message")

const (
	templateButton  = "button"
	templateGeneric = "generic"
	templateList    = "list"
	templateReceipt = "receipt"
)

var mediaKinds = map[string]bool{
	"image": true,
	"video": true,
	"audio": true,
	"file":  true,
}

// ConstructReply renders an outbound message into the platform JSON
// payload. Decision order: bare sender action, declared template,
// media attachment, plain text. Quick replies attach to whichever
// message-bearing payload was chosen.
func ConstructReply(msg model.OutboundMessage) (map[string]any, error) {
	md := msg.Metadata

	if md != nil && md.SenderAction != "" && msg.Content == "" {
		return map[string]any{
			"recipient":     recipient(msg.To),
			"sender_action": md.SenderAction,
		}, nil
	}

	var (
		message map[string]any
		err     error
	)

	switch {
	case md == nil:
		message = map[string]any{"text": msg.Content}
	case md.TemplateType == templateButton:
		message, err = buttonTemplate(msg.Content, md)
	case md.TemplateType == templateGeneric:
		message, err = genericTemplate(md.Elements)
	case md.TemplateType == templateList:
		message, err = listTemplate(md)
	case md.TemplateType == templateReceipt:
		message = receiptTemplate(md)
	case md.Media != nil && mediaKinds[md.Media.Type]:
		message = map[string]any{
			"attachment": map[string]any{
				"type":    md.Media.Type,
				"payload": map[string]any{"url": md.Media.URL},
			},
		}
	default:
		// Unrecognized media kinds fall back to plain text on purpose.
		message = map[string]any{"text": msg.Content}
	}
	if err != nil {
		return nil, err
	}

	if md != nil && len(md.QuickReplies) > 0 {
		qrs, err := renderQuickReplies(md.QuickReplies)
		if err != nil {
			return nil, err
		}
		message["quick_replies"] = qrs
	}

	return map[string]any{
		"recipient": recipient(msg.To),
		"message":   message,
	}, nil
}

func recipient(id string) map[string]any {
	return map[string]any{"id": id}
}

func buttonTemplate(text string, md *model.MessengerMetadata) (map[string]any, error) {
	buttons, err := renderButtons(md.Buttons)
	if err != nil {
		return nil, err
	}

	sharable := true
	if md.Sharable != nil {
		sharable = *md.Sharable
	}

	return templateMessage(map[string]any{
		"template_type": templateButton,
		"sharable":      sharable,
		"text":          text,
		"buttons":       buttons,
	}), nil
}

func genericTemplate(elements []model.Element) (map[string]any, error) {
	payload, err := genericPayload(elements)
	if err != nil {
		return nil, err
	}
	return templateMessage(payload), nil
}

func genericPayload(elements []model.Element) (map[string]any, error) {
	els, err := renderElements(elements)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"template_type": templateGeneric,
		"elements":      els,
	}, nil
}

func listTemplate(md *model.MessengerMetadata) (map[string]any, error) {
	els, err := renderElements(md.Elements)
	if err != nil {
		return nil, err
	}

	style := md.TopElementStyle
	if style == "" {
		style = "compact"
	}

	payload := map[string]any{
		"template_type":     templateList,
		"top_element_style": style,
		"elements":          els,
	}
	if len(md.Buttons) > 0 {
		buttons, err := renderButtons(md.Buttons)
		if err != nil {
			return nil, err
		}
		payload["buttons"] = buttons
	}
	return templateMessage(payload), nil
}

// receiptTemplate always emits the required order fields and copies the
// optional whitelist through only when present; an absent source field
// must not appear in the output at all.
func receiptTemplate(md *model.MessengerMetadata) map[string]any {
	summary := map[string]any{}
	if md.Summary != nil {
		summary["total_cost"] = md.Summary.TotalCost
		if md.Summary.Subtotal != nil {
			summary["subtotal"] = *md.Summary.Subtotal
		}
		if md.Summary.TotalTax != nil {
			summary["total_tax"] = *md.Summary.TotalTax
		}
		if md.Summary.ShippingCost != nil {
			summary["shipping_cost"] = *md.Summary.ShippingCost
		}
	}

	payload := map[string]any{
		"template_type":  templateReceipt,
		"recipient_name": md.RecipientName,
		"order_number":   md.OrderNumber,
		"currency":       md.Currency,
		"payment_method": md.PaymentMethod,
		"summary":        summary,
	}

	if md.MerchantName != "" {
		payload["merchant_name"] = md.MerchantName
	}
	if md.OrderURL != "" {
		payload["order_url"] = md.OrderURL
	}
	if md.Timestamp != "" {
		payload["timestamp"] = md.Timestamp
	}
	if len(md.Adjustments) > 0 {
		adjustments := make([]map[string]any, 0, len(md.Adjustments))
		for _, a := range md.Adjustments {
			adjustments = append(adjustments, map[string]any{
				"name":   a.Name,
				"amount": a.Amount,
			})
		}
		payload["adjustments"] = adjustments
	}

	if len(md.Elements) > 0 {
		els := make([]map[string]any, 0, len(md.Elements))
		for _, el := range md.Elements {
			els = append(els, receiptElement(el))
		}
		payload["elements"] = els
	}
	if md.Address != nil {
		payload["address"] = map[string]any{
			"street_1":    md.Address.Street1,
			"street_2":    md.Address.Street2,
			"city":        md.Address.City,
			"postal_code": md.Address.PostalCode,
			"state":       md.Address.State,
			"country":     md.Address.Country,
		}
	}

	return templateMessage(payload)
}

func receiptElement(el model.Element) map[string]any {
	quantity := 1
	if el.Quantity != nil {
		quantity = *el.Quantity
	}
	price := 0.0
	if el.Price != nil {
		price = *el.Price
	}
	return map[string]any{
		"title":     el.Title,
		"subtitle":  el.Subtitle,
		"quantity":  quantity,
		"price":     price,
		"currency":  el.Currency,
		"image_url": el.ImageURL,
	}
}

func renderElements(elements []model.Element) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(elements))
	for _, el := range elements {
		rendered := map[string]any{"title": el.Title}
		if el.Subtitle != "" {
			rendered["subtitle"] = el.Subtitle
		}
		if el.ImageURL != "" {
			rendered["image_url"] = el.ImageURL
		}
		if el.ItemURL != "" {
			rendered["item_url"] = el.ItemURL
		}
		if el.DefaultAction != nil {
			action := map[string]any{"type": "web_url"}
			webURLFields(action, el.DefaultAction.URL,
				el.DefaultAction.WebviewHeightRatio,
				el.DefaultAction.MessengerExtensions,
				el.DefaultAction.FallbackURL)
			rendered["default_action"] = action
		}
		if len(el.Buttons) > 0 {
			buttons, err := renderButtons(el.Buttons)
			if err != nil {
				return nil, err
			}
			rendered["buttons"] = buttons
		}
		out = append(out, rendered)
	}
	return out, nil
}

func renderButtons(buttons []model.Button) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		rendered, err := renderButton(b)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered)
	}
	return out, nil
}

func renderButton(b model.Button) (map[string]any, error) {
	switch b.Type {
	case "postback":
		payload, err := encodePayload(b.Payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"type":    "postback",
			"title":   b.Title,
			"payload": payload,
		}, nil

	case "web_url":
		rendered := map[string]any{
			"type":  "web_url",
			"title": b.Title,
		}
		webURLFields(rendered, b.URL, b.WebviewHeightRatio, b.MessengerExtensions, b.FallbackURL)
		return rendered, nil

	case "phone_number":
		return map[string]any{
			"type":    "phone_number",
			"title":   b.Title,
			"payload": rawString(b.Payload),
		}, nil

	case "element_share":
		rendered := map[string]any{"type": "element_share"}
		if b.ShareContents != nil {
			if b.ShareContents.TemplateType != "" && b.ShareContents.TemplateType != templateGeneric {
				return nil, fmt.Errorf("%w: share contents must be a generic template, got %q",
					ErrUnsupportedMessage, b.ShareContents.TemplateType)
			}
			payload, err := genericPayload(b.ShareContents.Elements)
			if err != nil {
				return nil, err
			}
			rendered["share_contents"] = templateMessage(payload)
		}
		return rendered, nil

	case "account_link":
		return map[string]any{
			"type": "account_link",
			"url":  b.URL,
		}, nil

	case "account_unlink":
		return map[string]any{"type": "account_unlink"}, nil
	}

	return nil, fmt.Errorf("%w: unknown button type %q", ErrUnsupportedMessage, b.Type)
}

func renderQuickReplies(qrs []model.QuickReply) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(qrs))
	for _, qr := range qrs {
		switch qr.ContentType {
		case "text":
			payload, err := encodePayload(qr.Payload)
			if err != nil {
				return nil, err
			}
			rendered := map[string]any{
				"content_type": "text",
				"title":        qr.Title,
				"payload":      payload,
			}
			if qr.ImageURL != "" {
				rendered["image_url"] = qr.ImageURL
			}
			out = append(out, rendered)

		case "location":
			out = append(out, map[string]any{"content_type": "location"})

		default:
			return nil, fmt.Errorf("%w: unknown quick reply type %q", ErrUnsupportedMessage, qr.ContentType)
		}
	}
	return out, nil
}

func webURLFields(dst map[string]any, url, heightRatio string, extensions *bool, fallback string) {
	dst["url"] = url
	if heightRatio != "" {
		dst["webview_height_ratio"] = heightRatio
	}
	if extensions != nil {
		dst["messenger_extensions"] = *extensions
	}
	if fallback != "" {
		dst["fallback_url"] = fallback
	}
}

func templateMessage(payload map[string]any) map[string]any {
	return map[string]any{
		"attachment": map[string]any{
			"type":    "template",
			"payload": payload,
		},
	}
}

// encodePayload re-emits a payload object as a compact JSON string, the
// encoding the platform expects inside button and quick reply fields.
func encodePayload(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("bad payload %q: %w", string(raw), err)
	}
	return buf.String(), nil
}

// rawString unwraps a JSON string payload (phone numbers travel as the
// bare string, not re-encoded JSON).
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
