// Package ui provides the dispatcher that stands in for a UI thread: state
// owned by the front-end is only touched from functions posted to it.
package ui
