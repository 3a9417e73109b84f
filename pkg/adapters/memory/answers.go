package memory

import (
	"context"
	"sync"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// AnswerLog implements ports.AnswerLog in memory.
type AnswerLog struct {
	mu      sync.Mutex
	answers []domain.Answer
}

func NewAnswerLog() *AnswerLog {
	return &AnswerLog{}
}

func (l *AnswerLog) AppendAnswer(ctx context.Context, answer domain.Answer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.answers = append(l.answers, answer)
	return nil
}

// Answers returns the answers recorded for sessionID in append order.
func (l *AnswerLog) Answers(sessionID string) []domain.Answer {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Answer
	for _, a := range l.answers {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out
}

// CustomFields implements ports.CustomFieldStore in memory.
type CustomFields struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

func NewCustomFields() *CustomFields {
	return &CustomFields{values: make(map[string]map[string]string)}
}

func (c *CustomFields) UpsertCustomFieldValue(ctx context.Context, contactKey, fieldID, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fields, ok := c.values[contactKey]
	if !ok {
		fields = make(map[string]string)
		c.values[contactKey] = fields
	}
	fields[fieldID] = value
	return nil
}

// Value returns the stored value of fieldID for contactKey.
func (c *CustomFields) Value(contactKey, fieldID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[contactKey][fieldID]
	return v, ok
}
