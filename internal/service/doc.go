// Package service holds the task tracker's use cases. Services enforce the
// admin and assignee rules, run check-then-write sequences inside a store
// transaction and announce every successful mutation through a Notifier so
// other running clients reload.
//
// Notification is best effort and happens after the write: a failed
// broadcast never undoes the local change.
package service
