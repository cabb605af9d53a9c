package sysproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// HelperFlag starts the binary in elevated helper mode.
const HelperFlag = "--terminate-elevated"

// forwarded survive pkexec's environment reset so the helper can show a dialog.
var forwarded = []string{"DISPLAY", "WAYLAND_DISPLAY", "XAUTHORITY", "XDG_RUNTIME_DIR"}

// Elevator relaunches this binary through pkexec in helper mode.
type Elevator struct {
	command    string
	executable string
	log        zerolog.Logger
}

func NewElevator(command string, log zerolog.Logger) (*Elevator, error) {
	if command == "" {
		command = "pkexec"
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &Elevator{command: command, executable: exe, log: log}, nil
}

// Args is the argv handed to the elevation command.
func (e *Elevator) Args(pid uint32) []string {
	args := []string{"env"}
	for _, key := range forwarded {
		if v, ok := os.LookupEnv(key); ok {
			args = append(args, key+"="+v)
		}
	}
	return append(args, e.executable, HelperFlag, strconv.FormatUint(uint64(pid), 10))
}

// LaunchElevated starts the helper and returns once it is running. The
// helper runs the whole validation again on its own.
func (e *Elevator) LaunchElevated(_ context.Context, pid uint32) error {
	cmd := exec.Command(e.command, e.Args(pid)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.command, err)
	}
	e.log.Info().Uint32("pid", pid).Int("helper_pid", cmd.Process.Pid).Msg("elevated helper started")

	go func() {
		err := cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			e.log.Info().Uint32("pid", pid).Msg("elevated helper finished")
		case errors.As(err, &exitErr):
			e.log.Warn().Uint32("pid", pid).Int("exit_code", exitErr.ExitCode()).Msg("elevated helper failed")
		default:
			e.log.Warn().Err(err).Uint32("pid", pid).Msg("elevated helper wait failed")
		}
	}()
	return nil
}

// ParseHelperArgs returns the pid when args request helper mode.
func ParseHelperArgs(args []string) (uint32, bool, error) {
	for i, arg := range args {
		if arg != HelperFlag {
			continue
		}
		if i+1 >= len(args) {
			return 0, true, fmt.Errorf("%s needs a process id", HelperFlag)
		}
		pid, err := strconv.ParseUint(args[i+1], 10, 32)
		if err != nil || pid == 0 {
			return 0, true, fmt.Errorf("invalid process id %q", args[i+1])
		}
		return uint32(pid), true, nil
	}
	return 0, false, nil
}

// DialogConfirmer asks through zenity when a display is reachable and on
// the terminal otherwise.
type DialogConfirmer struct {
	zenity string
	in     *bufio.Reader
	out    io.Writer
}

func NewDialogConfirmer(in io.Reader, out io.Writer) *DialogConfirmer {
	c := &DialogConfirmer{in: bufio.NewReader(in), out: out}
	if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
		if path, err := exec.LookPath("zenity"); err == nil {
			c.zenity = path
		}
	}
	return c
}

func (c *DialogConfirmer) ConfirmTermination(ctx context.Context, pid uint32, name string) (bool, error) {
	return c.ask(ctx, fmt.Sprintf("Terminate %s (PID %d)? It is using the microphone and forcing hands-free mode.", name, pid))
}

func (c *DialogConfirmer) ConfirmElevation(ctx context.Context, pid uint32, name string) (bool, error) {
	return c.ask(ctx, fmt.Sprintf("%s (PID %d) needs administrator rights to terminate. Continue?", name, pid))
}

func (c *DialogConfirmer) ask(ctx context.Context, question string) (bool, error) {
	if c.zenity != "" {
		err := exec.CommandContext(ctx, c.zenity, "--question", "--title=StereoGuard", "--text="+question).Run()
		if err == nil {
			return true, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("zenity: %w", err)
	}

	if _, err := fmt.Fprintf(c.out, "%s [y/N] ", question); err != nil {
		return false, err
	}
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
