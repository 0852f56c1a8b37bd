// Package webhook receives platform events and drives the bot's replies:
// cart postbacks, service commands, and product URL lookups.
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
)

const (
	EventTypeMessage  = "message"
	EventTypePostback = "postback"
)

// InboundEvent is the normalized form of one platform webhook event.
type InboundEvent struct {
	Type         string
	UserID       string
	ReplyToken   string
	IsRedelivery bool
	Text         string
	PostbackData url.Values
}

type webhookBody struct {
	Events []struct {
		Type       string `json:"type"`
		ReplyToken string `json:"replyToken"`
		Source     struct {
			UserID string `json:"userId"`
		} `json:"source"`
		DeliveryContext struct {
			IsRedelivery bool `json:"isRedelivery"`
		} `json:"deliveryContext"`
		Message struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"message"`
		Postback struct {
			Data string `json:"data"`
		} `json:"postback"`
	} `json:"events"`
}

// ParseEvents decodes a webhook request body. Message events other than
// text are dropped here so handlers only ever see text and postbacks.
func ParseEvents(body io.Reader) ([]InboundEvent, error) {
	var payload webhookBody
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}

	events := make([]InboundEvent, 0, len(payload.Events))
	for _, raw := range payload.Events {
		ev := InboundEvent{
			Type:         raw.Type,
			UserID:       raw.Source.UserID,
			ReplyToken:   raw.ReplyToken,
			IsRedelivery: raw.DeliveryContext.IsRedelivery,
		}
		switch raw.Type {
		case EventTypeMessage:
			if raw.Message.Type != "text" {
				continue
			}
			ev.Text = raw.Message.Text
		case EventTypePostback:
			data, err := url.ParseQuery(raw.Postback.Data)
			if err != nil {
				continue
			}
			ev.PostbackData = data
		default:
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
