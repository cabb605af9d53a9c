package mock

import (
	"context"
	"sort"
	"sync"

	"stereoguard/internal/domain"
)

// Process is one entry of the in-memory process table.
type Process struct {
	PID            uint32
	Name           string
	Identity       string
	IdentityErr    error
	NeedsElevation bool
	ElevationErr   error
	TerminateErr   error
}

// ProcessSystem is an in-memory process table with a termination record.
type ProcessSystem struct {
	mu                sync.Mutex
	processes         map[uint32]Process
	systemIdentity    string
	systemIdentityErr error
	listErr           error
	terminated        []uint32
	onTerminate       func(pid uint32)
}

func NewProcessSystem() *ProcessSystem {
	return &ProcessSystem{
		processes:      make(map[uint32]Process),
		systemIdentity: "uid:0",
	}
}

// AddProcess inserts or replaces a process. An empty identity means a
// regular user account.
func (p *ProcessSystem) AddProcess(proc Process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if proc.Identity == "" {
		proc.Identity = "uid:1000"
	}
	p.processes[proc.PID] = proc
}

func (p *ProcessSystem) RemoveProcess(pid uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.processes, pid)
}

func (p *ProcessSystem) FailSystemIdentity(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.systemIdentityErr = err
}

func (p *ProcessSystem) FailList(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErr = err
}

// OnTerminate runs fn after a successful termination, outside the lock.
func (p *ProcessSystem) OnTerminate(fn func(pid uint32)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTerminate = fn
}

// Terminated returns the pids terminated so far, in order.
func (p *ProcessSystem) Terminated() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint32(nil), p.terminated...)
}

func (p *ProcessSystem) ListProcesses(_ context.Context) ([]domain.ProcessInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	out := make([]domain.ProcessInfo, 0, len(p.processes))
	for _, proc := range p.processes {
		out = append(out, domain.ProcessInfo{PID: proc.PID, Name: proc.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func (p *ProcessSystem) TokenIdentity(_ context.Context, pid uint32) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	proc, ok := p.processes[pid]
	if !ok {
		return "", errNotFound
	}
	if proc.IdentityErr != nil {
		return "", proc.IdentityErr
	}
	return proc.Identity, nil
}

func (p *ProcessSystem) SystemIdentity() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.systemIdentityErr != nil {
		return "", p.systemIdentityErr
	}
	return p.systemIdentity, nil
}

func (p *ProcessSystem) RequiresElevation(_ context.Context, pid uint32) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	proc, ok := p.processes[pid]
	if !ok {
		return false, errNotFound
	}
	if proc.ElevationErr != nil {
		return false, proc.ElevationErr
	}
	return proc.NeedsElevation, nil
}

func (p *ProcessSystem) Terminate(_ context.Context, pid uint32) error {
	p.mu.Lock()
	proc, ok := p.processes[pid]
	if !ok {
		p.mu.Unlock()
		return errNotFound
	}
	if proc.TerminateErr != nil {
		p.mu.Unlock()
		return proc.TerminateErr
	}
	delete(p.processes, pid)
	p.terminated = append(p.terminated, pid)
	hook := p.onTerminate
	p.mu.Unlock()

	if hook != nil {
		hook(pid)
	}
	return nil
}
