// Package scene holds the viewer's single "currently displayed" state.
//
// State is owned by the main loop goroutine and is never shared; remote
// callers reach it only through commands dispatched by package frame.
package scene

import (
	"errors"
	"fmt"

	"github.com/rbright/molview/internal/molecule"
)

// ErrEmptyPayload reports a Load that carried no molecules.
var ErrEmptyPayload = errors.New("load carried no molecules")

// ErrNothingToSave reports a save of an empty scene.
var ErrNothingToSave = errors.New("no molecules loaded")

// State is at most one active scene: an ordered set of molecules (frames), the
// visible frame, the camera focus and the label flag.
type State struct {
	molecules  []molecule.Molecule
	visible    int
	focus      molecule.Vec3
	labels     bool
	generation uint64
}

// New returns an empty state.
func New() *State {
	return &State{}
}

// Replace evicts the active scene and installs mols. Every molecule is
// validated first; on error the previous scene is left untouched.
func (s *State) Replace(mols []molecule.Molecule) error {
	if len(mols) == 0 {
		return ErrEmptyPayload
	}
	for i := range mols {
		if err := mols[i].Validate(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}

	next := make([]molecule.Molecule, len(mols))
	for i := range mols {
		next[i] = mols[i].Clone()
	}

	s.molecules = next
	s.visible = 0
	s.focus = next[0].Centroid()
	s.generation++
	return nil
}

// Clear evicts the active scene. It reports whether anything was evicted.
func (s *State) Clear() bool {
	if len(s.molecules) == 0 {
		return false
	}
	s.molecules = nil
	s.visible = 0
	s.focus = molecule.Vec3{}
	s.generation++
	return true
}

// SetLabels sets the label display flag and reports whether it changed.
func (s *State) SetLabels(on bool) bool {
	if s.labels == on {
		return false
	}
	s.labels = on
	return true
}

func (s *State) Empty() bool { return len(s.molecules) == 0 }

func (s *State) Len() int { return len(s.molecules) }

func (s *State) Labels() bool { return s.labels }

func (s *State) Focus() molecule.Vec3 { return s.focus }

// Generation increases each time the active scene is replaced or cleared.
func (s *State) Generation() uint64 { return s.generation }

// VisibleIndex returns the visible frame index; 0 when empty.
func (s *State) VisibleIndex() int { return s.visible }

// Visible returns the visible frame, or nil when the scene is empty.
func (s *State) Visible() *molecule.Molecule {
	if len(s.molecules) == 0 {
		return nil
	}
	return &s.molecules[s.visible]
}

// Molecules returns a copy of the active frames.
func (s *State) Molecules() []molecule.Molecule {
	if len(s.molecules) == 0 {
		return nil
	}
	out := make([]molecule.Molecule, len(s.molecules))
	copy(out, s.molecules)
	return out
}

// NextFrame makes the following frame visible, wrapping past the end.
func (s *State) NextFrame() int { return s.step(1) }

// PrevFrame makes the preceding frame visible, wrapping past the start.
func (s *State) PrevFrame() int { return s.step(-1) }

func (s *State) step(delta int) int {
	n := len(s.molecules)
	if n == 0 {
		return 0
	}
	s.visible = euclidMod(s.visible+delta, n)
	return s.visible
}

func euclidMod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// Summary is a read-only snapshot used for replies and rendering.
type Summary struct {
	Frames  int
	Visible int
	Title   string
	Atoms   int
	Bonds   int
	Focus   molecule.Vec3
	Labels  bool
}

// Summary snapshots the state.
func (s *State) Summary() Summary {
	sum := Summary{
		Frames:  len(s.molecules),
		Visible: s.visible,
		Focus:   s.focus,
		Labels:  s.labels,
	}
	if m := s.Visible(); m != nil {
		sum.Title = m.Title
		sum.Atoms = len(m.Atoms)
		sum.Bonds = len(m.Bonds)
	}
	return sum
}

// SaveAs writes every frame of the active scene to path as JSON, or YAML for
// .yaml/.yml paths.
func (s *State) SaveAs(path string) error {
	if len(s.molecules) == 0 {
		return ErrNothingToSave
	}
	return molecule.WriteFile(path, s.molecules)
}
