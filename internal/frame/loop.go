package frame

import (
	"log/slog"

	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/scene"
)

// Loop binds the consumer end of the queue to the scene it mutates. All
// methods must be called from the main loop goroutine.
type Loop struct {
	rx     *Receiver
	scene  *scene.State
	logger *slog.Logger

	events []Event
	ticks  uint64
}

// NewLoop constructs a loop. A nil receiver yields a loop that only applies
// local commands.
func NewLoop(rx *Receiver, st *scene.State, logger *slog.Logger) *Loop {
	if st == nil {
		st = scene.New()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{rx: rx, scene: st, logger: logger}
}

// Tick runs one non-blocking drain followed by dispatch. It returns the
// number of commands handled.
func (l *Loop) Tick() int {
	l.ticks++
	l.events = Drain(l.rx, l.events[:0])
	if len(l.events) == 0 {
		return 0
	}
	Dispatch(l.logger, l.scene, l.events)
	n := len(l.events)
	clear(l.events)
	return n
}

// Apply dispatches cmd immediately, bypassing the queue.
func (l *Loop) Apply(cmd command.RemoteCommand) command.Outcome {
	return Dispatch(l.logger, l.scene, []Event{NewEvent(cmd)})[0]
}

// Scene exposes the state for read-only rendering.
func (l *Loop) Scene() *scene.State { return l.scene }

// Ticks returns how many times Tick ran.
func (l *Loop) Ticks() uint64 { return l.ticks }
