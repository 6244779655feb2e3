package frame

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/molecule"
	"github.com/rbright/molview/internal/scene"
	"github.com/rbright/molview/internal/task"
	"github.com/stretchr/testify/require"
)

func mol(title string) molecule.Molecule {
	return molecule.Molecule{
		Title: title,
		Atoms: []molecule.Atom{
			{Symbol: "N", Position: molecule.Vec3{0, 0, 0}},
			{Symbol: "N", Position: molecule.Vec3{1.1, 0, 0}},
		},
		Bonds: []molecule.Bond{{I: 0, J: 1, Order: 3}},
	}
}

func TestDrainEmptyQueueReturnsBuffer(t *testing.T) {
	rx, _ := NewQueue()
	buf := make([]Event, 0, 4)
	require.Empty(t, Drain(rx, buf))
	require.Empty(t, Drain(nil, buf))
}

func TestDeleteWithoutSceneIsRepeatableNoop(t *testing.T) {
	loop := NewLoop(nil, nil, nil)

	for i := 0; i < 3; i++ {
		out := loop.Apply(command.Delete{})
		require.NoError(t, out.Err())
		require.False(t, out.Changed)
		require.Equal(t, command.KindDelete, out.Command)
		require.True(t, loop.Scene().Empty())
	}
}

func TestLoadInstallsExactFrames(t *testing.T) {
	rx, tx := NewQueue()
	loop := NewLoop(rx, scene.New(), nil)

	require.NoError(t, tx.Post(context.Background(), command.Load{Molecules: []molecule.Molecule{mol("m1"), mol("m2")}}))
	require.Equal(t, 1, loop.Tick())

	st := loop.Scene()
	require.Equal(t, []molecule.Molecule{mol("m1"), mol("m2")}, st.Molecules())
	require.Equal(t, 0, st.VisibleIndex())
	require.Equal(t, 0, loop.Tick())
	require.Equal(t, uint64(2), loop.Ticks())
}

func TestLabelTogglesWithoutTouchingMolecules(t *testing.T) {
	loop := NewLoop(nil, nil, nil)
	loop.Apply(command.Load{Molecules: []molecule.Molecule{mol("keep")}})

	out := loop.Apply(command.Label{Delete: false})
	require.True(t, out.Labels)
	require.True(t, out.Changed)

	out = loop.Apply(command.Label{Delete: true})
	require.False(t, out.Labels)
	require.True(t, out.Changed)
	require.False(t, loop.Scene().Labels())
	require.Equal(t, []molecule.Molecule{mol("keep")}, loop.Scene().Molecules())
}

func TestEmptyLoadIsWarnedAndIgnored(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	loop := NewLoop(nil, nil, logger)
	loop.Apply(command.Load{Molecules: []molecule.Molecule{mol("keep")}})

	out := loop.Apply(command.Load{})
	require.ErrorContains(t, out.Err(), "no molecules")
	require.False(t, out.Changed)
	require.Equal(t, "keep", out.Title)
	require.Contains(t, logs.String(), `"level":"WARN"`)
	require.Contains(t, logs.String(), `"msg":"load ignored"`)
}

func TestInvalidLoadKeepsPreviousScene(t *testing.T) {
	loop := NewLoop(nil, nil, nil)
	loop.Apply(command.Load{Molecules: []molecule.Molecule{mol("keep")}})

	bad := mol("bad")
	bad.Atoms = nil
	bad.Bonds = nil
	out := loop.Apply(command.Load{Molecules: []molecule.Molecule{bad}})
	require.Error(t, out.Err())
	require.Equal(t, "keep", loop.Scene().Visible().Title)
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	outs := Dispatch(logger, nil, []Event{NewEvent(command.Delete{}), NewEvent(command.Label{})})
	require.Len(t, outs, 2)
	require.Contains(t, outs[0].Error, ErrHandlerPanic.Error())
	require.Contains(t, outs[1].Error, ErrHandlerPanic.Error())
	require.Contains(t, logs.String(), `"msg":"command dropped"`)
}

func TestSendReceivesOutcome(t *testing.T) {
	rx, tx := NewQueue()
	loop := NewLoop(rx, nil, nil)

	type result struct {
		out command.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := tx.Send(context.Background(), command.Load{Molecules: []molecule.Molecule{mol("sent")}})
		done <- result{out, err}
	}()

	require.Eventually(t, func() bool { return rx.Pending() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 1, loop.Tick())

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, command.KindLoad, res.out.Command)
	require.True(t, res.out.Changed)
	require.Equal(t, 1, res.out.Frames)
	require.Equal(t, "sent", res.out.Title)
}

func TestConcurrentLoadsLandOnePerTick(t *testing.T) {
	rx, tx := NewQueue()
	loop := NewLoop(rx, nil, nil)

	var wg sync.WaitGroup
	titles := make(chan string, 2)
	for _, name := range []string{"a", "b"} {
		wg.Add(1)
		go func(sender *Sender, name string) {
			defer wg.Done()
			defer sender.Close()
			out, err := sender.Send(context.Background(), command.Load{Molecules: []molecule.Molecule{mol(name)}})
			if err == nil {
				titles <- out.Title
			}
		}(tx.Clone(), name)
	}

	require.Eventually(t, func() bool { return rx.Pending() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 1, loop.Tick())
	first := loop.Scene().Visible().Title
	require.Contains(t, []string{"a", "b"}, first)
	require.Equal(t, first, <-titles)

	require.Eventually(t, func() bool { return rx.Pending() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 1, loop.Tick())
	second := loop.Scene().Visible().Title
	require.NotEqual(t, first, second)
	require.Equal(t, second, <-titles)

	wg.Wait()
}

func TestClosedQueueDiscardsUndrainedCommand(t *testing.T) {
	rx, tx := NewQueue()
	loop := NewLoop(rx, nil, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := tx.Send(context.Background(), command.Load{Molecules: []molecule.Molecule{mol("late")}})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return rx.Pending() == 1 }, time.Second, time.Millisecond)
	rx.Close()

	require.ErrorIs(t, <-errCh, task.ErrChannelClosed)
	require.Equal(t, 0, loop.Tick())
	require.True(t, loop.Scene().Empty())
}
