package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/whatsapp"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// WebhookSessionPrefix prefixes the session id derived from a contact number.
const WebhookSessionPrefix = "wa-"

const maxWebhookBody = 1 << 20

// Webhook configures the WhatsApp Cloud API webhook.
type Webhook struct {
	// Flow is started for contacts without an open session.
	Flow        string
	VerifyToken string
	// AppSecret enables the X-Hub-Signature-256 check.
	AppSecret string
}

// WithWebhook mounts the WhatsApp webhook on /webhooks/whatsapp.
func WithWebhook(cfg Webhook) Option {
	return func(s *Server) { s.webhook = &cfg }
}

// VerifyWebhook handles GET /webhooks/whatsapp, the subscription handshake.
func (s *Server) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	challenge, ok := whatsapp.VerifyChallenge(r.URL.Query(), s.webhook.VerifyToken)
	if !ok {
		s.writeError(w, r, http.StatusForbidden, errors.New("webhook verification failed"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, challenge)
}

// ReceiveWebhook handles POST /webhooks/whatsapp. Each inbound message
// starts a session for the contact or answers the question it waits on.
// Per-message failures are logged and acknowledged so the Cloud API does not
// redeliver messages that were already applied.
func (s *Server) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, err)
		return
	}
	if s.webhook.AppSecret != "" && !whatsapp.VerifySignature(body, r.Header.Get("X-Hub-Signature-256"), s.webhook.AppSecret) {
		s.writeError(w, r, http.StatusUnauthorized, errors.New("invalid webhook signature"))
		return
	}

	msgs, err := whatsapp.ParseWebhook(body)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	processed := 0
	for _, msg := range msgs {
		res, err := s.inbound(r.Context(), msg)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "failed to process inbound message",
				"message_id", msg.ID,
				"from", msg.From,
				"err", err,
			)
			continue
		}
		if res != nil {
			s.publish(res)
			processed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"received": len(msgs), "processed": processed})
}

// inbound applies one message to the contact's session. It returns nil
// without error when the message was ignored.
func (s *Server) inbound(ctx context.Context, msg whatsapp.InboundMessage) (*domain.RunResult, error) {
	text, err := s.sanitizer.Clean(msg.Text)
	if err != nil {
		return nil, err
	}
	bindings := map[string]any{domain.KeyPhone: msg.From}
	if msg.Name != "" {
		bindings[domain.KeyName] = msg.Name
	}
	return s.Runtime.Inbound(ctx, s.webhook.Flow, WebhookSessionPrefix+msg.From, text, msg.OptionID, bindings)
}
