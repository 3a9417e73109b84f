// Package whatsapp delivers send actions through the WhatsApp Cloud API.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/logging"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// ErrNoRecipient is returned when a send action carries no phone number.
var ErrNoRecipient = errors.New("whatsapp message has no recipient")

// Config holds the Cloud API settings.
type Config struct {
	BaseURL       string        `mapstructure:"base_url" default:"https://graph.facebook.com/v19.0" validate:"required,url"`
	PhoneNumberID string        `mapstructure:"phone_number_id" validate:"required"`
	Token         string        `mapstructure:"token" validate:"required"`
	Timeout       time.Duration `mapstructure:"timeout" default:"10s" validate:"gte=1s"`
	MaxRetries    int           `mapstructure:"max_retries" default:"2" validate:"gte=0,lte=10"`
	RetryWaitMS   int           `mapstructure:"retry_wait_ms" default:"200" validate:"gte=0,lte=10000"`
	// DefaultLanguage is used for templates without a language.
	DefaultLanguage string `mapstructure:"default_language" default:"es"`

	// VerifyToken answers the webhook subscription handshake.
	VerifyToken string `mapstructure:"verify_token"`
	// AppSecret signs webhook notifications. Empty skips the signature check.
	AppSecret string `mapstructure:"app_secret"`
}

// Dispatcher implements ports.ActionDispatcher for the WhatsApp send kinds.
// Other action kinds are ignored.
type Dispatcher struct {
	cfg    Config
	client *resty.Client
	logger *slog.Logger
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher. cfg is expected to be validated already.
func New(cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:    cfg,
		logger: logging.NewNop(),
		client: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetAuthToken(cfg.Token).
			SetTimeout(cfg.Timeout).
			SetRetryCount(cfg.MaxRetries).
			SetRetryWaitTime(time.Duration(cfg.RetryWaitMS) * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
			}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type textBody struct {
	Body string `json:"body"`
}

type language struct {
	Code string `json:"code"`
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []parameter `json:"parameters"`
}

type template struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components,omitempty"`
}

type message struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             *textBody `json:"text,omitempty"`
	Template         *template `json:"template,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Dispatch sends send_whatsapp and send_whatsapp_template actions.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, action domain.Action) error {
	var msg message
	switch p := action.Payload.(type) {
	case domain.SendWhatsApp:
		msg = message{To: p.To, Type: "text", Text: &textBody{Body: p.Text}}
	case domain.SendWhatsAppTemplate:
		lang := p.Language
		if lang == "" {
			lang = d.cfg.DefaultLanguage
		}
		t := &template{Name: p.Template, Language: language{Code: lang}}
		if params := bodyParameters(p.Variables); len(params) > 0 {
			t.Components = []component{{Type: "body", Parameters: params}}
		}
		msg = message{To: p.To, Type: "template", Template: t}
	default:
		return nil
	}
	if msg.To == "" {
		return fmt.Errorf("session %q, %s: %w", sessionID, action.Kind, ErrNoRecipient)
	}
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"

	var ok sendResponse
	var failed apiError
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(msg).
		SetResult(&ok).
		SetError(&failed).
		SetPathParam("phone_number_id", d.cfg.PhoneNumberID).
		Post("/{phone_number_id}/messages")
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("whatsapp api returned %s: %s (code %d)", resp.Status(), failed.Error.Message, failed.Error.Code)
	}

	var id string
	if len(ok.Messages) > 0 {
		id = ok.Messages[0].ID
	}
	d.logger.InfoContext(ctx, "whatsapp message sent",
		"session_id", sessionID,
		"kind", action.Kind,
		"message_id", id,
	)
	return nil
}

// bodyParameters orders template variables by their numeric placeholder.
// Non-numeric keys sort after numeric ones, lexically.
func bodyParameters(vars map[string]string) []parameter {
	if len(vars) == 0 {
		return nil
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	params := make([]parameter, len(keys))
	for i, k := range keys {
		params[i] = parameter{Type: "text", Text: vars[k]}
	}
	return params
}
