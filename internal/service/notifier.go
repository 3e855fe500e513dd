package service

import "context"

// Notifier announces changes to other clients. Calls are best effort and
// never report failure; *notify.Client satisfies it.
type Notifier interface {
	NotifyTaskChanged(ctx context.Context)
	NotifyUserChanged(ctx context.Context)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) NotifyTaskChanged(context.Context) {}
func (NopNotifier) NotifyUserChanged(context.Context) {}
