package ports

import (
	"context"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

// AnswerLog records answers to question steps.
// The engine calls it best-effort: failures are logged, never propagated.
type AnswerLog interface {
	AppendAnswer(ctx context.Context, answer domain.Answer) error
}

// CustomFieldStore mirrors answers into contact custom fields.
// contactKey identifies the contact, usually its phone number.
type CustomFieldStore interface {
	UpsertCustomFieldValue(ctx context.Context, contactKey, fieldID, value string) error
}
