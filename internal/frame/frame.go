// Package frame drains the command queue once per tick and dispatches each
// command onto the scene owned by the main loop.
package frame

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/scene"
	"github.com/rbright/molview/internal/task"
)

// ErrHandlerPanic marks a command whose handler panicked.
var ErrHandlerPanic = errors.New("command handler panicked")

// Entry is one queued command with its optional reply slot.
type Entry = task.RemoteIO[command.RemoteCommand, command.Outcome]

// Receiver is the consumer end of the command queue.
type Receiver = task.Receiver[command.RemoteCommand, command.Outcome]

// Sender is the producer end of the command queue.
type Sender = task.Sender[command.RemoteCommand, command.Outcome]

// NewQueue creates the capacity-1 command queue.
func NewQueue() (*Receiver, *Sender) {
	return task.New[command.RemoteCommand, command.Outcome]()
}

// Event is one drained command.
type Event struct {
	Command command.RemoteCommand

	entry *Entry
}

// NewEvent wraps cmd as an event with no waiting caller.
func NewEvent(cmd command.RemoteCommand) Event {
	return Event{Command: cmd}
}

// Drain pulls, without blocking, every entry queued at call time and appends
// one Event per entry to buf in pull order.
func Drain(rx *Receiver, buf []Event) []Event {
	if rx == nil {
		return buf
	}
	for entry := range rx.TryIter() {
		buf = append(buf, Event{Command: entry.Input, entry: entry})
	}
	return buf
}

// Dispatch applies events in order to st and resolves their reply slots.
// Failures are logged and never abort the remaining events.
func Dispatch(logger *slog.Logger, st *scene.State, events []Event) []command.Outcome {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	outcomes := make([]command.Outcome, 0, len(events))
	for _, ev := range events {
		out := dispatchOne(logger, st, ev.Command)
		outcomes = append(outcomes, out)
		if ev.entry != nil {
			ev.entry.Reply(out)
		}
	}
	return outcomes
}

func dispatchOne(logger *slog.Logger, st *scene.State, cmd command.RemoteCommand) (out command.Outcome) {
	h := &sceneHandler{state: st}
	if cmd != nil {
		out.Command = cmd.Kind()
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			logger.Error("command dropped", "command", string(out.Command), "error", err.Error())
			out = outcomeFor(out.Command, st, false, err)
		}
	}()

	err := command.Apply(cmd, h)
	switch {
	case errors.Is(err, scene.ErrEmptyPayload):
		logger.Warn("load ignored", "command", string(out.Command), "error", err.Error())
	case err != nil:
		logger.Error("command rejected", "command", string(out.Command), "error", err.Error())
	default:
		sum := st.Summary()
		logger.Debug("command applied",
			"command", string(out.Command),
			"changed", h.changed,
			"frames", sum.Frames,
			"labels", sum.Labels,
		)
	}
	return outcomeFor(out.Command, st, h.changed, err)
}

func outcomeFor(kind command.Kind, st *scene.State, changed bool, err error) command.Outcome {
	var sum scene.Summary
	if st != nil {
		sum = st.Summary()
	}
	out := command.Outcome{
		Command: kind,
		Changed: changed,
		Frames:  sum.Frames,
		Visible: sum.Visible,
		Title:   sum.Title,
		Labels:  sum.Labels,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// sceneHandler is the exhaustive command.Handler bound to one scene.
type sceneHandler struct {
	state   *scene.State
	changed bool
}

func (h *sceneHandler) HandleLoad(c command.Load) error {
	if err := h.state.Replace(c.Molecules); err != nil {
		return err
	}
	h.changed = true
	return nil
}

func (h *sceneHandler) HandleDelete(command.Delete) error {
	h.changed = h.state.Clear()
	return nil
}

func (h *sceneHandler) HandleLabel(c command.Label) error {
	h.changed = h.state.SetLabels(!c.Delete)
	return nil
}
