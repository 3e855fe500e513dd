// Package api holds the HTTP plumbing shared by the hub host: request
// tracing, token authentication for the WebSocket endpoint and JSON
// responses.
package api
