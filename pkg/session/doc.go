/*
Package session implements per-session serialization on top of a SessionStore.

Concurrent webhook turns for the same conversation are queued behind an
in-process mutex keyed by session id and, when a DistributedLocker is
configured, behind a lock shared by every replica. Stores additionally reject
stale writes with domain.ErrConflict.
*/
package session
