// Package whatsapp delivers text messages through the Meta WhatsApp Cloud API.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/broiler/internal/config"
)

// MaxTextLength is the longest text body the Cloud API accepts, in runes.
const MaxTextLength = 4096

// Client sends text to a WhatsApp recipient.
type Client interface {
	SendText(ctx context.Context, msg TextMessage) (*Delivery, error)
}

// APIClient is the resty-backed Client.
type APIClient struct {
	http          *resty.Client
	phoneNumberID string
}

// NewClient builds a Cloud API client for the configured business number.
// Throttled and server-side failures are retried twice.
func NewClient(cfg config.WhatsAppConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	rc := resty.New().
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &APIClient{http: rc, phoneNumberID: cfg.PhoneNumberID}
}

// TextMessage is a plain-text message such as a command reply or a cycle
// report. Bodies longer than MaxTextLength go out as several messages.
type TextMessage struct {
	To         string
	Body       string
	PreviewURL bool
}

// Delivery lists the ids Meta assigned, one per message part sent.
type Delivery struct {
	To         string
	MessageIDs []string
}

// Parts is the number of messages the body was sent as.
func (d *Delivery) Parts() int {
	return len(d.MessageIDs)
}

// APIError is a non-2xx answer from the Cloud API.
type APIError struct {
	Status  int
	Code    int
	Message string
	TraceID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d code=%d message=%s", e.Status, e.Code, e.Message)
}

type textPayload struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type sendResponse struct {
	Contacts []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorPayload struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// SendText sends msg, split on line boundaries when it is too long for one
// message. Parts go out in order; on failure the returned Delivery holds the
// parts already accepted.
func (c *APIClient) SendText(ctx context.Context, msg TextMessage) (*Delivery, error) {
	if msg.To == "" {
		return nil, errors.New("send whatsapp text: recipient is required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return nil, errors.New("send whatsapp text: body is empty")
	}

	parts := splitText(msg.Body, MaxTextLength)
	delivery := &Delivery{To: msg.To, MessageIDs: make([]string, 0, len(parts))}
	for i, part := range parts {
		id, err := c.sendPart(ctx, msg.To, part, msg.PreviewURL)
		if err != nil {
			if len(parts) == 1 {
				return delivery, err
			}
			return delivery, fmt.Errorf("part %d of %d: %w", i+1, len(parts), err)
		}
		delivery.MessageIDs = append(delivery.MessageIDs, id)
	}
	return delivery, nil
}

func (c *APIClient) sendPart(ctx context.Context, to, body string, previewURL bool) (string, error) {
	result := new(sendResponse)
	apiErr := new(errorPayload)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(textPayload{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               to,
			Type:             "text",
			Text:             textBody{Body: body, PreviewURL: previewURL},
		}).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/messages", c.phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("send whatsapp message: %w", err)
	}

	if resp.IsError() {
		code := resp.StatusCode()
		if apiErr.Error.Code != 0 {
			code = apiErr.Error.Code
		}
		return "", &APIError{Status: resp.StatusCode(), Code: code, Message: apiErr.Error.Message, TraceID: apiErr.Error.FBTraceID}
	}
	if len(result.Messages) == 0 {
		return "", errors.New("send whatsapp message: response carried no message id")
	}
	return result.Messages[0].ID, nil
}

// splitText cuts body into chunks of at most limit runes, preferring line
// breaks. A single line longer than limit is cut mid-line.
func splitText(body string, limit int) []string {
	if utf8.RuneCountInString(body) <= limit {
		return []string{body}
	}

	var (
		parts   []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			parts = append(parts, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(body, "\n") {
		for utf8.RuneCountInString(line) > limit {
			flush()
			runes := []rune(line)
			parts = append(parts, string(runes[:limit]))
			line = string(runes[limit:])
		}
		n := utf8.RuneCountInString(line)
		if size+n > limit {
			flush()
		}
		current.WriteString(line)
		size += n
	}
	flush()
	return parts
}
