package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// InboundMessage is a message a contact sent to the business number.
type InboundMessage struct {
	ID   string
	From string
	// Name is the contact's profile name, when the payload carries it.
	Name string
	Text string
	// OptionID is the id of the reply button or list row the contact picked.
	OptionID string
}

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []inboundPayload `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type inboundPayload struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Button struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
	Interactive struct {
		Type        string `json:"type"`
		ButtonReply reply  `json:"button_reply"`
		ListReply   reply  `json:"list_reply"`
	} `json:"interactive"`
}

// ParseWebhook extracts the inbound messages of a Cloud API webhook
// notification. Status updates and unsupported message types are skipped.
func ParseWebhook(body []byte) ([]InboundMessage, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	var out []InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				msg := InboundMessage{ID: m.ID, From: m.From, Name: names[m.From]}
				switch m.Type {
				case "text":
					msg.Text = m.Text.Body
				case "button":
					msg.Text = m.Button.Text
				case "interactive":
					r := m.Interactive.ButtonReply
					if m.Interactive.Type == "list_reply" {
						r = m.Interactive.ListReply
					}
					msg.Text, msg.OptionID = r.Title, r.ID
				default:
					continue
				}
				out = append(out, msg)
			}
		}
	}
	return out, nil
}

// VerifyChallenge answers the subscription handshake. It returns the
// challenge to echo and whether the verify token matched.
func VerifyChallenge(query url.Values, verifyToken string) (string, bool) {
	if verifyToken == "" || query.Get("hub.mode") != "subscribe" {
		return "", false
	}
	if !hmac.Equal([]byte(query.Get("hub.verify_token")), []byte(verifyToken)) {
		return "", false
	}
	return query.Get("hub.challenge"), true
}

// VerifySignature checks the X-Hub-Signature-256 header of a notification
// against the app secret.
func VerifySignature(body []byte, header, appSecret string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
