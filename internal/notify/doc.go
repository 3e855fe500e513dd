// Package notify is the client side of the notification hub.
//
// A Client owns at most one hub connection per process. Incoming change
// events are posted to the UI dispatcher and raised there to subscribers
// in subscription order. Outgoing notifications are best effort: they are
// skipped while disconnected and send failures are only logged, because
// the database write they announce has already happened.
package notify
