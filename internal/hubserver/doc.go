// Package hubserver mounts the notification hub on an HTTP router and runs
// it with graceful shutdown. Both the standalone hub binary and a console
// client started with --host-hub use it.
package hubserver
