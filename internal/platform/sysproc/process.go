// Package sysproc implements the process subsystem with gopsutil.
package sysproc

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"stereoguard/internal/domain"
)

// SystemIdentity is the identity of the superuser.
const SystemIdentity = "uid:0"

var errNoUIDs = errors.New("process reports no uids")

// Processes implements ports.ProcessSystem. Identities are effective uids
// rendered as "uid:<n>".
type Processes struct {
	log zerolog.Logger
	// euid returns the caller's effective uid. Swapped in tests.
	euid func() (int, error)
}

func New(log zerolog.Logger) *Processes {
	return &Processes{log: log, euid: currentEUID}
}

func (p *Processes) ListProcesses(ctx context.Context) ([]domain.ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := make([]domain.ProcessInfo, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			// exited between listing and reading
			continue
		}
		out = append(out, domain.ProcessInfo{PID: uint32(proc.Pid), Name: name})
	}
	return out, nil
}

func (p *Processes) TokenIdentity(ctx context.Context, pid uint32) (string, error) {
	uid, err := effectiveUID(ctx, pid)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("uid:%d", uid), nil
}

func (p *Processes) SystemIdentity() (string, error) {
	return SystemIdentity, nil
}

// RequiresElevation is true when the process cannot be inspected, or when
// the caller is not root and the process runs under another uid.
func (p *Processes) RequiresElevation(ctx context.Context, pid uint32) (bool, error) {
	target, err := effectiveUID(ctx, pid)
	if err != nil {
		return true, err
	}
	self, err := p.euid()
	if err != nil {
		return true, err
	}
	if self == 0 {
		return false, nil
	}
	return int(target) != self, nil
}

// Terminate sends SIGTERM.
func (p *Processes) Terminate(ctx context.Context, pid uint32) error {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	if err := proc.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminate process %d: %w", pid, err)
	}
	p.log.Debug().Uint32("pid", pid).Msg("sent SIGTERM")
	return nil
}

func effectiveUID(ctx context.Context, pid uint32) (int32, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return 0, fmt.Errorf("open process %d: %w", pid, err)
	}
	uids, err := proc.UidsWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read uids of %d: %w", pid, err)
	}
	switch len(uids) {
	case 0:
		return 0, errNoUIDs
	case 1:
		return uids[0], nil
	default:
		return uids[1], nil
	}
}
