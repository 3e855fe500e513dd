package mocks

import (
	"context"
	"sync"
)

// MockNotifier implements service.Notifier and records every call.
// It is safe for concurrent use.
type MockNotifier struct {
	NotifyTaskChangedFn func(ctx context.Context)
	NotifyUserChangedFn func(ctx context.Context)

	mu        sync.Mutex
	taskCalls int
	userCalls int
}

// NotifyTaskChanged implements service.Notifier
func (m *MockNotifier) NotifyTaskChanged(ctx context.Context) {
	m.mu.Lock()
	m.taskCalls++
	m.mu.Unlock()
	if m.NotifyTaskChangedFn != nil {
		m.NotifyTaskChangedFn(ctx)
	}
}

// NotifyUserChanged implements service.Notifier
func (m *MockNotifier) NotifyUserChanged(ctx context.Context) {
	m.mu.Lock()
	m.userCalls++
	m.mu.Unlock()
	if m.NotifyUserChangedFn != nil {
		m.NotifyUserChangedFn(ctx)
	}
}

// TaskCalls returns how many times NotifyTaskChanged was called.
func (m *MockNotifier) TaskCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taskCalls
}

// UserCalls returns how many times NotifyUserChanged was called.
func (m *MockNotifier) UserCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userCalls
}
