// Package devnode supervises a local Ethereum dev-node (anvil) and applies
// the snapshot persistence toggle: a node started with no snapshot file runs
// fresh but dumps state continuously; a node started with one loads it and
// keeps dumping to the same path, so contracts and balances survive restarts.
package devnode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// stopGrace bounds how long a cancelled node gets to dump state and exit
// before it is killed.
const stopGrace = 10 * time.Second

// BootMode is decided once at process start and never changes afterwards.
type BootMode int

const (
	// Fresh means no snapshot file exists: start empty, dump continuously.
	Fresh BootMode = iota
	// Restored means a snapshot file exists: load it, keep dumping to it.
	Restored
)

func (m BootMode) String() string {
	if m == Restored {
		return "restored"
	}
	return "fresh"
}

// Options configures the supervised dev-node process.
type Options struct {
	Binary       string // dev-node executable, e.g. "anvil"
	Host         string
	Port         string
	StateFile    string // snapshot path, owned by the node once running
	DumpInterval int    // seconds between state dumps
}

// Supervisor runs the dev-node with the persistence toggle applied.
type Supervisor struct {
	opts Options
	mode BootMode
	log  *logrus.Logger
}

// DecideBootMode checks whether the snapshot file exists. The check happens
// exactly once; the returned mode holds for the whole process lifetime.
func DecideBootMode(stateFile string) (BootMode, error) {
	_, err := os.Stat(stateFile)
	if os.IsNotExist(err) {
		return Fresh, nil
	}
	if err != nil {
		return Fresh, fmt.Errorf("failed to stat state file %s: %w", stateFile, err)
	}
	return Restored, nil
}

// NewSupervisor decides the boot mode for opts.StateFile and returns a
// supervisor ready to run.
func NewSupervisor(opts Options, log *logrus.Logger) (*Supervisor, error) {
	if opts.Binary == "" {
		return nil, fmt.Errorf("dev-node binary not configured")
	}
	if opts.StateFile == "" {
		return nil, fmt.Errorf("dev-node state file not configured")
	}
	mode, err := DecideBootMode(opts.StateFile)
	if err != nil {
		return nil, err
	}
	return &Supervisor{opts: opts, mode: mode, log: log}, nil
}

// Mode returns the boot mode decided at construction.
func (s *Supervisor) Mode() BootMode {
	return s.mode
}

// Args builds the dev-node command line. State dumping is always on;
// --load-state is added only when a snapshot was found.
func (s *Supervisor) Args() []string {
	args := []string{
		"--host", s.opts.Host,
		"--port", s.opts.Port,
		"--dump-state", s.opts.StateFile,
		"--state-interval", strconv.Itoa(s.opts.DumpInterval),
	}
	if s.mode == Restored {
		args = append(args, "--load-state", s.opts.StateFile)
	}
	return args
}

// command builds the dev-node process. A cancelled context sends SIGTERM
// rather than the default SIGKILL: the node dumps state on a clean exit, and
// killing it outright would lose everything since the last interval dump.
// SIGKILL follows after stopGrace if the node hangs.
func (s *Supervisor) command(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, s.opts.Binary, s.Args()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = stopGrace
	return cmd
}

// Run launches the dev-node and blocks until it exits or ctx is cancelled.
// Restarting a crashed node is the orchestration layer's job, so a node exit
// is returned, not retried.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.opts.StateFile), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	s.log.Infof("Starting dev-node in %s mode, snapshot at %s", s.mode, s.opts.StateFile)

	if err := s.command(ctx).Run(); err != nil {
		if ctx.Err() != nil {
			s.log.Info("Dev-node stopped")
			return nil
		}
		return fmt.Errorf("dev-node exited: %w", err)
	}
	return nil
}
