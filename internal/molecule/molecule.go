// Package molecule defines the molecule interchange payload carried by Load commands.
package molecule

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Vec3 is a Cartesian position in Angstrom.
type Vec3 [3]float64

// Atom is one atom of a molecule frame.
type Atom struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Position Vec3   `json:"position" yaml:"position"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Bond connects two atoms by zero-based index.
type Bond struct {
	I     int     `json:"i" yaml:"i"`
	J     int     `json:"j" yaml:"j"`
	Order float64 `json:"order,omitempty" yaml:"order,omitempty"`
}

// Lattice holds the three cell vectors of a periodic structure.
type Lattice [3]Vec3

// Molecule is one frame of a loaded trajectory.
type Molecule struct {
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Atoms   []Atom   `json:"atoms" yaml:"atoms"`
	Bonds   []Bond   `json:"bonds,omitempty" yaml:"bonds,omitempty"`
	Lattice *Lattice `json:"lattice,omitempty" yaml:"lattice,omitempty"`
}

// Centroid returns the geometric center of all atom positions.
func (m Molecule) Centroid() Vec3 {
	var c Vec3
	if len(m.Atoms) == 0 {
		return c
	}
	for _, a := range m.Atoms {
		c[0] += a.Position[0]
		c[1] += a.Position[1]
		c[2] += a.Position[2]
	}
	n := float64(len(m.Atoms))
	return Vec3{c[0] / n, c[1] / n, c[2] / n}
}

// AtomLabel returns the display label of atom i, falling back to its serial number.
func (m Molecule) AtomLabel(i int) string {
	if i < 0 || i >= len(m.Atoms) {
		return ""
	}
	if label := strings.TrimSpace(m.Atoms[i].Label); label != "" {
		return label
	}
	return fmt.Sprintf("%d", i+1)
}

// Validate reports structural problems that would leave a scene half-built.
func (m Molecule) Validate() error {
	if len(m.Atoms) == 0 {
		return errors.New("molecule has no atoms")
	}
	for i, a := range m.Atoms {
		if strings.TrimSpace(a.Symbol) == "" {
			return fmt.Errorf("atom %d: empty element symbol", i)
		}
		if !finite(a.Position) {
			return fmt.Errorf("atom %d: non-finite position %v", i, a.Position)
		}
	}
	for k, b := range m.Bonds {
		if b.I < 0 || b.I >= len(m.Atoms) || b.J < 0 || b.J >= len(m.Atoms) {
			return fmt.Errorf("bond %d: atom index out of range (%d, %d) for %d atoms", k, b.I, b.J, len(m.Atoms))
		}
		if b.I == b.J {
			return fmt.Errorf("bond %d: atom %d bonded to itself", k, b.I)
		}
	}
	if m.Lattice != nil {
		for k, v := range m.Lattice {
			if !finite(v) {
				return fmt.Errorf("lattice vector %d: non-finite value %v", k, v)
			}
		}
	}
	return nil
}

func finite(v Vec3) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so a stored frame never aliases caller memory.
func (m Molecule) Clone() Molecule {
	out := Molecule{Title: m.Title}
	if m.Atoms != nil {
		out.Atoms = append([]Atom(nil), m.Atoms...)
	}
	if m.Bonds != nil {
		out.Bonds = append([]Bond(nil), m.Bonds...)
	}
	if m.Lattice != nil {
		lat := *m.Lattice
		out.Lattice = &lat
	}
	return out
}
