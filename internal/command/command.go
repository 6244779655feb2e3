// Package command defines the closed set of operations a remote caller may
// apply to the viewer, their wire encoding, and the exhaustive handler contract.
package command

import (
	"errors"

	"github.com/rbright/molview/internal/molecule"
)

// Kind names a RemoteCommand variant on the wire and in logs.
type Kind string

const (
	KindLoad   Kind = "Load"
	KindDelete Kind = "Delete"
	KindLabel  Kind = "Label"
)

// RemoteCommand is one of Load, Delete or Label. The set is closed: the
// unexported apply method keeps other packages from adding variants.
type RemoteCommand interface {
	Kind() Kind
	apply(Handler) error
}

// Handler applies each variant. Adding a variant adds a method here, so every
// implementation that misses it stops compiling.
type Handler interface {
	HandleLoad(Load) error
	HandleDelete(Delete) error
	HandleLabel(Label) error
}

// Load replaces the active scene with Molecules; the first entry is shown.
type Load struct {
	Molecules []molecule.Molecule
}

// Delete clears the active scene.
type Delete struct{}

// Label shows atom labels, or hides them when Delete is set.
type Label struct {
	Delete bool `json:"delete"`
}

func (Load) Kind() Kind   { return KindLoad }
func (Delete) Kind() Kind { return KindDelete }
func (Label) Kind() Kind  { return KindLabel }

func (c Load) apply(h Handler) error   { return h.HandleLoad(c) }
func (c Delete) apply(h Handler) error { return h.HandleDelete(c) }
func (c Label) apply(h Handler) error  { return h.HandleLabel(c) }

// Apply routes cmd to the matching Handler method.
func Apply(cmd RemoteCommand, h Handler) error {
	if cmd == nil {
		return errors.New("nil remote command")
	}
	return cmd.apply(h)
}

// Outcome is the reply a waiting caller receives once its command was dispatched.
type Outcome struct {
	Command Kind   `json:"command"`
	Changed bool   `json:"changed"`
	Frames  int    `json:"frames"`
	Visible int    `json:"visible"`
	Title   string `json:"title,omitempty"`
	Labels  bool   `json:"labels"`
	Error   string `json:"error,omitempty"`
}

// Err returns the handler failure carried by the outcome, if any.
func (o Outcome) Err() error {
	if o.Error == "" {
		return nil
	}
	return errors.New(o.Error)
}
