package scene

import (
	"path/filepath"
	"testing"

	"github.com/rbright/molview/internal/molecule"
	"github.com/stretchr/testify/require"
)

func mol(title string, x float64) molecule.Molecule {
	return molecule.Molecule{
		Title: title,
		Atoms: []molecule.Atom{
			{Symbol: "C", Position: molecule.Vec3{x, 0, 0}},
			{Symbol: "O", Position: molecule.Vec3{x + 2, 0, 0}},
		},
		Bonds: []molecule.Bond{{I: 0, J: 1, Order: 2}},
	}
}

func TestReplaceInstallsFramesAndFocusesFirst(t *testing.T) {
	s := New()
	require.True(t, s.Empty())

	require.NoError(t, s.Replace([]molecule.Molecule{mol("m1", 0), mol("m2", 10)}))
	require.Equal(t, 2, s.Len())
	require.Equal(t, 0, s.VisibleIndex())
	require.Equal(t, "m1", s.Visible().Title)
	require.Equal(t, molecule.Vec3{1, 0, 0}, s.Focus())
	require.Equal(t, uint64(1), s.Generation())

	got := s.Molecules()
	require.Equal(t, []molecule.Molecule{mol("m1", 0), mol("m2", 10)}, got)
}

func TestReplaceDoesNotAliasCallerSlice(t *testing.T) {
	s := New()
	in := []molecule.Molecule{mol("m1", 0)}
	require.NoError(t, s.Replace(in))

	in[0].Title = "mutated"
	in[0].Atoms[0].Symbol = "N"
	require.Equal(t, "m1", s.Visible().Title)
	require.Equal(t, "C", s.Visible().Atoms[0].Symbol)
}

func TestReplaceEmptyPayloadLeavesScene(t *testing.T) {
	s := New()
	require.NoError(t, s.Replace([]molecule.Molecule{mol("keep", 0)}))

	require.ErrorIs(t, s.Replace(nil), ErrEmptyPayload)
	require.Equal(t, "keep", s.Visible().Title)
	require.Equal(t, uint64(1), s.Generation())
}

func TestReplaceInvalidFrameLeavesScene(t *testing.T) {
	s := New()
	require.NoError(t, s.Replace([]molecule.Molecule{mol("keep", 0)}))

	bad := mol("bad", 0)
	bad.Bonds[0].J = 9
	err := s.Replace([]molecule.Molecule{mol("ok", 0), bad})
	require.Error(t, err)
	require.Contains(t, err.Error(), "frame 1")
	require.Equal(t, 1, s.Len())
	require.Equal(t, "keep", s.Visible().Title)
}

func TestClearIsRepeatable(t *testing.T) {
	s := New()
	require.False(t, s.Clear())
	require.False(t, s.Clear())
	require.Zero(t, s.Generation())

	require.NoError(t, s.Replace([]molecule.Molecule{mol("m", 4)}))
	require.True(t, s.Clear())
	require.True(t, s.Empty())
	require.Nil(t, s.Visible())
	require.Equal(t, molecule.Vec3{}, s.Focus())
	require.False(t, s.Clear())
}

func TestLabelsDoNotTouchMolecules(t *testing.T) {
	s := New()
	require.NoError(t, s.Replace([]molecule.Molecule{mol("m", 0)}))
	gen := s.Generation()

	require.True(t, s.SetLabels(true))
	require.False(t, s.SetLabels(true))
	require.True(t, s.SetLabels(false))
	require.False(t, s.Labels())
	require.Equal(t, gen, s.Generation())
	require.Equal(t, "m", s.Visible().Title)
}

func TestFrameSteppingWraps(t *testing.T) {
	s := New()
	require.Equal(t, 0, s.NextFrame())
	require.Equal(t, 0, s.PrevFrame())

	require.NoError(t, s.Replace([]molecule.Molecule{mol("a", 0), mol("b", 1), mol("c", 2)}))
	require.Equal(t, 2, s.PrevFrame())
	require.Equal(t, "c", s.Visible().Title)
	require.Equal(t, 0, s.NextFrame())
	require.Equal(t, 1, s.NextFrame())
	require.Equal(t, 2, s.NextFrame())
	require.Equal(t, 0, s.NextFrame())
}

func TestSummary(t *testing.T) {
	s := New()
	require.Equal(t, Summary{}, s.Summary())

	require.NoError(t, s.Replace([]molecule.Molecule{mol("a", 0), mol("b", 1)}))
	s.NextFrame()
	s.SetLabels(true)

	sum := s.Summary()
	require.Equal(t, 2, sum.Frames)
	require.Equal(t, 1, sum.Visible)
	require.Equal(t, "b", sum.Title)
	require.Equal(t, 2, sum.Atoms)
	require.Equal(t, 1, sum.Bonds)
	require.True(t, sum.Labels)
	require.Equal(t, molecule.Vec3{1, 0, 0}, sum.Focus)
}

func TestSaveAsWritesEveryFrame(t *testing.T) {
	st := New()
	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.ErrorIs(t, st.SaveAs(path), ErrNothingToSave)

	require.NoError(t, st.Replace([]molecule.Molecule{mol("a", 0), mol("b", 1)}))
	st.NextFrame()
	require.NoError(t, st.SaveAs(path))

	got, err := molecule.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, st.Molecules(), got)
	require.Equal(t, 1, st.VisibleIndex())
}
