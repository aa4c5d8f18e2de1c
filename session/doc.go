// Package session maps thread identifiers to persisted conversations.
//
// Store implementations (InMemoryStore, SQLiteStore) only load and save
// threads. Registry layers exclusive access on top: a thread is handed out as
// a Lease to at most one loop execution at a time and a second Resolve for the
// same identifier fails immediately with core.ErrThreadBusy. A lease is either
// committed, persisting the final conversation, or released without any change
// to the stored thread.
//
// Add additional backends (Redis, Postgres, etc.) by implementing Store;
// only the wiring layer needs to decide which implementation to instantiate.
package session
