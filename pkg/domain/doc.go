/*
Package domain contains the core domain models of the whatsflow runtime.

It defines the step graph a marketing team authors in the flow builder, the
durable session cursor that walks it, and the actions the engine asks the host
to perform. The package is kept pure and free of I/O and persistence, following
the same hexagonal split as the adapters in pkg/adapters.

# Key Entities

  - Flow, Step, Connection: the authored graph. Step configs are a closed sum type.
  - Session: the persisted cursor of one run (current step, bindings, status).
  - Bindings: the immutable variable set threaded through a run.
  - Action: a side-effect description (send a WhatsApp text, wait, assign...).
*/
package domain
