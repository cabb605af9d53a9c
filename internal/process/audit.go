package process

import (
	"sync"

	"stereoguard/internal/domain"
)

// AuditCapacity bounds the audit log; the oldest entry is evicted first.
const AuditCapacity = 100

// AuditLog is the append-only termination trail. It has its own lock so
// appends never wait on the guard's operation lock.
type AuditLog struct {
	mu      sync.Mutex
	entries []domain.TerminationAttempt
}

func NewAuditLog() *AuditLog {
	return &AuditLog{entries: make([]domain.TerminationAttempt, 0, AuditCapacity)}
}

func (l *AuditLog) Append(attempt domain.TerminationAttempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == AuditCapacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:AuditCapacity-1]
	}
	l.entries = append(l.entries, attempt)
}

// Entries returns a copy, oldest first.
func (l *AuditLog) Entries() []domain.TerminationAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.TerminationAttempt(nil), l.entries...)
}
