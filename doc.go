/*
Package whatsflow is a runtime for WhatsApp conversation flows: directed graphs
of typed steps (messages, questions, conditions, waits, templates, handoffs)
that are executed turn by turn as a contact replies.

The engine never talks to WhatsApp itself. Every call returns the actions to
perform (send a message, schedule a wake-up, assign the conversation) together
with a snapshot of the session, and the host decides how to perform them. A
session is a durable cursor: between turns it is persisted and suspended on a
question or a wait, so any replica can pick up the next webhook.

# Usage

	flows, _ := memory.NewFlowStore(flow)
	eng, err := whatsflow.New(whatsflow.WithFlowStore(flows))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	res, err := eng.Start(ctx, "welcome", "session-123", map[string]any{"phone": "+34600111222"})
	if err != nil {
		log.Fatal(err)
	}
	// res.Actions: messages up to the first question.

	res, err = eng.Resume(ctx, "session-123", res.Session.CurrentStepID, "Ana", "")

# Adapters

Session stores live in pkg/adapters (memory, file, redis), flows are loaded
from JSON or YAML documents (pkg/adapters/file) or built in code (pkg/dsl).
pkg/adapters/http exposes the engine over HTTP and pkg/adapters/whatsapp
delivers send actions through the WhatsApp Cloud API.

# Concurrency

Calls on the same session are serialized by a per-session mutex, optionally
backed by a distributed lock (WithLocker). Stores version every save; a call
that loses a race fails with domain.ErrConflict unless WithConflictRetries
allows it to run again on the fresh session.
*/
package whatsflow
