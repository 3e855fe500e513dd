// Package domain contains the core business entities of the task tracker:
// tasks, users, sessions and the change kinds broadcast between clients.
// It has no dependency on storage or transport.
package domain
