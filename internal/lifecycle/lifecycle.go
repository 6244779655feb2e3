// Package lifecycle owns the background listener, the consumer end of the
// command queue and the single-instance lock for one viewer process.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rbright/molview/internal/frame"
	"github.com/rbright/molview/internal/fsm"
	"github.com/rbright/molview/internal/remote"
)

// ErrAlreadyRunning reports that another viewer holds the instance lock.
var ErrAlreadyRunning = errors.New("molview viewer already running")

// Options configures a Manager.
type Options struct {
	Remote remote.Config
	// LockPath is the single-instance lock file; empty disables locking.
	LockPath string
	Logger   *slog.Logger
}

// Manager starts the listener once and stops it once.
type Manager struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	state  fsm.State
	handle *remote.Handle
	rx     *frame.Receiver
	tx     *frame.Sender
	lock   *flock.Flock
}

// New returns an idle manager.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{opts: opts, logger: logger, state: fsm.StateIdle}
}

// Start acquires the instance lock, creates the command queue and binds the
// listener. It returns the consumer end for the main loop.
func (m *Manager) Start(ctx context.Context) (*frame.Receiver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := fsm.Transition(m.state, fsm.EventStart); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock, err := acquireLock(m.opts.LockPath)
	if err != nil {
		return nil, err
	}

	rx, tx := frame.NewQueue()
	handle, err := remote.Listen(m.opts.Remote, tx, m.logger)
	if err != nil {
		rx.Close()
		tx.Close()
		releaseLock(lock)
		return nil, err
	}

	next, _ := fsm.Transition(m.state, fsm.EventStart)
	m.state = next
	m.handle = handle
	m.rx = rx
	m.tx = tx
	m.lock = lock
	m.logger.Info("lifecycle started", "state", string(m.state), "http", handle.HTTPAddr(), "grpc", handle.GRPCAddr())
	return rx, nil
}

// Stop aborts the listener, discards undrained commands and releases the
// lock. Later calls are no-ops.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fsm.Transition(m.state, fsm.EventStop)
	if err != nil {
		return
	}

	if m.handle != nil {
		m.handle.Stop()
	}
	pending := 0
	if m.rx != nil {
		pending = m.rx.Pending()
		m.rx.Close()
	}
	if m.tx != nil {
		m.tx.Close()
	}
	releaseLock(m.lock)

	m.handle = nil
	m.lock = nil
	m.state = next
	m.logger.Info("lifecycle stopped", "discarded", pending)
}

// State returns the listener state.
func (m *Manager) State() fsm.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Receiver returns the consumer end, or nil before Start.
func (m *Manager) Receiver() *frame.Receiver {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx
}

// Handle returns the running listener, or nil when not listening.
func (m *Manager) Handle() *remote.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// DefaultLockPath places the lock under XDG_RUNTIME_DIR, falling back to the
// system temp dir.
func DefaultLockPath() string {
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "molview", "viewer.lock")
}

func acquireLock(path string) (*flock.Flock, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure lock dir: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock held: %s)", ErrAlreadyRunning, path)
	}
	return lock, nil
}

func releaseLock(lock *flock.Flock) {
	if lock == nil {
		return
	}
	_ = lock.Unlock()
}
