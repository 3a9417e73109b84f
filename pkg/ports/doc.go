/*
Package ports defines the driven ports (interfaces) of the whatsflow runtime.

These interfaces decouple the engine from external implementations, allowing
it to work with various flow sources, session backends and messaging providers.

# Key Interfaces

  - FlowStore: resolves a Flow by id or key (memory, file, cached).
  - SessionStore: persists and loads Sessions with optimistic versioning.
  - AnswerLog, CustomFieldStore: best-effort side collaborators fed by question answers.
  - DistributedLocker: serializes access to one session across replicas.
  - ActionDispatcher: performs the actions the engine returns.
  - Runtime: the engine entry points consumed by driving adapters (HTTP, scheduler, console).
*/
package ports
