package connectivity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

var ErrNotReachable = errors.New("host not reachable")

type Prober interface {
	// Probe returns nil if host answered within timeout, and ErrNotReachable if it did not.
	Probe(ctx context.Context, host string, timeout time.Duration) error
}

// PingProber sends a single ICMP echo using the system ping command.
type PingProber struct {
	// GOOS selects the command line flavour. Defaults to runtime.GOOS.
	GOOS string
}

var _ Prober = &PingProber{}

func (p *PingProber) Probe(ctx context.Context, host string, timeout time.Duration) error {
	name, args := p.command(host, timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	err := exec.CommandContext(ctx, name, args...).Run()
	if err == nil {
		return nil
	}

	if parent := context.Cause(ctx); parent != nil && !errors.Is(parent, context.DeadlineExceeded) {
		return parent
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrNotReachable, host)
	}
	return fmt.Errorf("run %s: %w", name, err)
}

func (p *PingProber) command(host string, timeout time.Duration) (string, []string) {
	goos := p.GOOS
	if len(goos) == 0 {
		goos = runtime.GOOS
	}

	seconds := int(math.Ceil(timeout.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	if goos == "darwin" {
		return "ping6", []string{"-c", "1", "-i", strconv.Itoa(seconds * 1000), host}
	}
	return "ping", []string{"-c", "1", "-W", strconv.Itoa(seconds), host}
}
