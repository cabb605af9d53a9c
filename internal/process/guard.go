package process

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"stereoguard/internal/domain"
	"stereoguard/internal/metrics"
	"stereoguard/internal/ports"
)

// MicScanner lists the apps currently holding a capture session.
type MicScanner interface {
	MicUsingApps(ctx context.Context) ([]domain.MicUsingApp, error)
}

// Deps are the collaborators of a Guard.
type Deps struct {
	Processes ports.ProcessSystem
	Confirmer ports.Confirmer
	Elevator  ports.Elevator
	Clock     ports.Clock
	Metrics   *metrics.Recorder
	Log       zerolog.Logger
}

// Guard validates and executes termination requests.
//
// The operation lock is shared between PublishMicApps and the whole of
// Terminate, so the pid being acted on is always checked against the
// snapshot that was current when the request was validated.
type Guard struct {
	processes ports.ProcessSystem
	confirm   ports.Confirmer
	elevator  ports.Elevator
	clock     ports.Clock
	metrics   *metrics.Recorder
	log       zerolog.Logger
	audit     *AuditLog

	opMu    sync.Mutex
	micApps []domain.MicUsingApp
}

func NewGuard(deps Deps) *Guard {
	clock := deps.Clock
	if clock == nil {
		clock = ports.RealClock()
	}
	return &Guard{
		processes: deps.Processes,
		confirm:   deps.Confirmer,
		elevator:  deps.Elevator,
		clock:     clock,
		metrics:   deps.Metrics,
		log:       deps.Log,
		audit:     NewAuditLog(),
	}
}

type target struct {
	pid            uint32
	name           string
	needsElevation bool
}

// PublishMicApps replaces the mic-using snapshot terminations are checked against.
func (g *Guard) PublishMicApps(apps []domain.MicUsingApp) {
	snapshot := append([]domain.MicUsingApp(nil), apps...)
	g.opMu.Lock()
	g.micApps = snapshot
	g.opMu.Unlock()
}

// Terminate runs the validation pipeline for pid and, if it passes and the
// operator agrees, terminates it or hands it to the elevated helper.
// A declined confirmation returns nil.
func (g *Guard) Terminate(ctx context.Context, pid uint32, requireConfirmation bool) error {
	g.opMu.Lock()
	defer g.opMu.Unlock()
	return g.terminateLocked(ctx, pid, requireConfirmation, false)
}

// TerminateElevated is the entry point of the elevated helper. It trusts
// nothing about pid: the mic-using list is re-scanned, every check runs
// again and the operator is asked again.
func (g *Guard) TerminateElevated(ctx context.Context, scanner MicScanner, pid uint32) error {
	g.log.Info().Uint32("pid", pid).Msg("elevated termination requested")

	apps, err := scanner.MicUsingApps(ctx)
	if err != nil {
		g.record(pid, fmt.Sprintf("PID %d", pid), domain.OutcomeFailed, "could not verify mic-using applications")
		return domain.WrapError(domain.ErrorCodeAudioSubsystem, err, "could not verify mic-using applications")
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()
	g.micApps = apps
	return g.terminateLocked(ctx, pid, true, true)
}

func (g *Guard) terminateLocked(ctx context.Context, pid uint32, requireConfirmation bool, elevated bool) error {
	t, err := g.validate(ctx, pid)
	if err != nil {
		g.record(pid, t.name, domain.OutcomeBlocked, err.Error())
		return err
	}

	if requireConfirmation {
		ok, err := g.confirm.ConfirmTermination(ctx, t.pid, t.name)
		if err != nil {
			g.record(t.pid, t.name, domain.OutcomeFailed, "confirmation unavailable: "+err.Error())
			return domain.WrapError(domain.ErrorCodeTerminateFailed, err, "could not confirm termination of '%s'", t.name)
		}
		if !ok {
			g.record(t.pid, t.name, domain.OutcomeUserCancelled, "User cancelled termination dialog")
			return nil
		}
	}

	if t.needsElevation {
		g.record(t.pid, t.name, domain.OutcomeElevationRequired, "Process requires elevation to terminate")
		if elevated {
			g.record(t.pid, t.name, domain.OutcomeFailed, "still lacking privilege in elevated helper")
			return domain.NewError(domain.ErrorCodeElevationFailed, "process '%s' cannot be terminated even with elevation", t.name)
		}
		return g.launchElevated(ctx, t)
	}

	return g.kill(ctx, t)
}

func (g *Guard) validate(ctx context.Context, pid uint32) (target, error) {
	t := target{pid: pid, name: fmt.Sprintf("PID %d", pid)}

	name, err := g.lookupName(ctx, pid)
	if err != nil {
		return t, err
	}
	t.name = name

	if IsBlacklisted(name) {
		return t, domain.NewError(domain.ErrorCodeProtectedProcess, "process '%s' is a protected system process and cannot be terminated", name)
	}

	if g.isSystemProcess(ctx, pid) {
		return t, domain.NewError(domain.ErrorCodeSystemProcess, "process '%s' is running as the system account and cannot be terminated", name)
	}

	needs, err := g.processes.RequiresElevation(ctx, pid)
	if err != nil {
		g.log.Debug().Err(err).Uint32("pid", pid).Msg("cannot query process, assuming elevation required")
		needs = true
	}
	t.needsElevation = needs

	if !g.inSnapshot(pid) {
		return t, domain.NewError(domain.ErrorCodeNotUsingMicrophone, "process '%s' is not currently using the microphone", name)
	}
	return t, nil
}

func (g *Guard) lookupName(ctx context.Context, pid uint32) (string, error) {
	list, err := g.processes.ListProcesses(ctx)
	if err != nil {
		return "", domain.WrapError(domain.ErrorCodeProcessNotFound, err, "could not list processes")
	}
	for _, p := range list {
		if p.PID == pid {
			return p.Name, nil
		}
	}
	return "", domain.NewError(domain.ErrorCodeProcessNotFound, "could not find process with ID %d", pid)
}

// isSystemProcess fails closed: any error answers true.
func (g *Guard) isSystemProcess(ctx context.Context, pid uint32) bool {
	system, err := g.processes.SystemIdentity()
	if err != nil {
		g.log.Warn().Err(err).Msg("system identity unavailable, treating process as system")
		return true
	}
	identity, err := g.processes.TokenIdentity(ctx, pid)
	if err != nil {
		g.log.Debug().Err(err).Uint32("pid", pid).Msg("token identity unavailable, treating process as system")
		return true
	}
	if identity == system {
		g.log.Info().Uint32("pid", pid).Msg("process detected as system process")
		return true
	}
	return false
}

func (g *Guard) inSnapshot(pid uint32) bool {
	for _, app := range g.micApps {
		if app.ProcessID == pid {
			return true
		}
	}
	return false
}

func (g *Guard) launchElevated(ctx context.Context, t target) error {
	ok, err := g.confirm.ConfirmElevation(ctx, t.pid, t.name)
	if err != nil {
		g.record(t.pid, t.name, domain.OutcomeFailed, "elevation confirmation unavailable: "+err.Error())
		return domain.WrapError(domain.ErrorCodeElevationFailed, err, "could not confirm elevation for '%s'", t.name)
	}
	if !ok {
		g.record(t.pid, t.name, domain.OutcomeUserCancelled, "User declined elevation")
		return nil
	}
	if err := g.elevator.LaunchElevated(ctx, t.pid); err != nil {
		g.record(t.pid, t.name, domain.OutcomeFailed, "failed to launch elevated helper: "+err.Error())
		return domain.WrapError(domain.ErrorCodeElevationFailed, err, "failed to launch elevated helper")
	}
	g.log.Info().Uint32("pid", t.pid).Str("process", t.name).Msg("launched elevated helper")
	return nil
}

func (g *Guard) kill(ctx context.Context, t target) error {
	if err := g.processes.Terminate(ctx, t.pid); err != nil {
		g.record(t.pid, t.name, domain.OutcomeFailed, "terminate failed: "+err.Error())
		return domain.WrapError(domain.ErrorCodeTerminateFailed, err, "failed to terminate process '%s'", t.name)
	}
	g.record(t.pid, t.name, domain.OutcomeSuccess, "Process terminated successfully")
	return nil
}

func (g *Guard) record(pid uint32, name string, outcome domain.TerminationOutcome, reason string) {
	g.log.Info().
		Uint32("pid", pid).
		Str("process", name).
		Str("outcome", outcome.String()).
		Str("reason", reason).
		Msg("termination attempt")
	g.audit.Append(domain.TerminationAttempt{
		Timestamp:   g.clock.Now(),
		ProcessID:   pid,
		ProcessName: name,
		Outcome:     outcome,
		Reason:      reason,
	})
	g.metrics.Termination(outcome)
}

// AuditLog returns the termination trail, oldest first.
func (g *Guard) AuditLog() []domain.TerminationAttempt {
	return g.audit.Entries()
}
