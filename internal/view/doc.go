// Package view holds the console's live collections. Each collection
// loads a snapshot, subscribes to the matching change kind and reloads
// the whole snapshot on every signal.
package view
