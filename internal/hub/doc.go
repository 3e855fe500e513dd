// Package hub implements the notification hub: a WebSocket endpoint that
// relays change signals from one connected client to every other client.
//
// Clients send invocations ("NotifyTaskChanged", "NotifyUserChanged"); the
// hub answers by broadcasting the matching event ("TaskChanged",
// "UserChanged") to all peers except the caller. Delivery is best effort:
// each peer has a bounded outbox and a peer whose outbox is full misses
// the signal. Nothing is stored for clients that connect later.
package hub
