// Package events is the in-process publish/subscribe registry that turns
// hub change signals into callbacks. Handlers run synchronously, in
// subscription order, on whatever goroutine calls Publish; the notify
// client calls it from the UI dispatcher.
package events
