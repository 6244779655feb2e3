package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/frame"
	"github.com/rbright/molview/internal/fsm"
	"github.com/rbright/molview/internal/molecule"
	"github.com/rbright/molview/internal/remote"
	"github.com/rbright/molview/internal/task"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Remote:   remote.Config{HTTPAddr: "127.0.0.1:0", ReplyTimeout: 2 * time.Second},
		LockPath: filepath.Join(t.TempDir(), "viewer.lock"),
	}
}

func TestStartServesAndStopTearsDown(t *testing.T) {
	m := New(testOptions(t))
	require.Equal(t, fsm.StateIdle, m.State())
	require.Nil(t, m.Receiver())

	rx, err := m.Start(context.Background())
	require.NoError(t, err)
	require.Same(t, rx, m.Receiver())
	require.Equal(t, fsm.StateListening, m.State())

	addr := m.Handle().HTTPAddr()
	client := remote.NewClient(addr, time.Second)
	require.NoError(t, client.Delete(context.Background()))

	loop := frame.NewLoop(rx, nil, nil)
	require.Equal(t, 1, loop.Tick())

	m.Stop()
	require.Equal(t, fsm.StateStopped, m.State())
	require.Nil(t, m.Handle())
	require.True(t, rx.Closed())

	ok, err := client.Health(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStartTwiceAndRestartFail(t *testing.T) {
	m := New(testOptions(t))
	_, err := m.Start(context.Background())
	require.NoError(t, err)

	_, err = m.Start(context.Background())
	require.ErrorContains(t, err, "invalid transition")

	m.Stop()
	m.Stop()
	_, err = m.Start(context.Background())
	require.ErrorContains(t, err, "invalid transition")
}

func TestSecondManagerIsLockedOut(t *testing.T) {
	opts := testOptions(t)
	first := New(opts)
	_, err := first.Start(context.Background())
	require.NoError(t, err)
	defer first.Stop()

	second := New(opts)
	_, err = second.Start(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.Equal(t, fsm.StateIdle, second.State())

	first.Stop()
	_, err = second.Start(context.Background())
	require.NoError(t, err)
	second.Stop()
}

func TestStopDiscardsUndrainedCommand(t *testing.T) {
	m := New(testOptions(t))
	rx, err := m.Start(context.Background())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := remote.NewClient(m.Handle().HTTPAddr(), 2*time.Second).Apply(context.Background(), command.Delete{})
		errCh <- err
	}()
	require.Eventually(t, func() bool { return rx.Pending() == 1 }, time.Second, time.Millisecond)

	m.Stop()
	require.Error(t, <-errCh)
	require.Zero(t, rx.Pending())

	_, err = rx.Recv(context.Background())
	require.ErrorIs(t, err, task.ErrChannelClosed)
}

func TestStopDiscardsAcknowledgedPost(t *testing.T) {
	m := New(testOptions(t))
	rx, err := m.Start(context.Background())
	require.NoError(t, err)

	loop := frame.NewLoop(rx, nil, nil)
	out := loop.Apply(command.Load{Molecules: []molecule.Molecule{{Title: "kept", Atoms: []molecule.Atom{{Symbol: "C"}}}}})
	require.NoError(t, out.Err())

	client := remote.NewClient(m.Handle().HTTPAddr(), time.Second)
	require.NoError(t, client.Delete(context.Background()))
	require.Equal(t, 1, rx.Pending())

	m.Stop()
	require.Zero(t, loop.Tick())
	require.Equal(t, 1, loop.Scene().Len())
	require.Equal(t, "kept", loop.Scene().Visible().Title)
}

func TestListenFailureReleasesLock(t *testing.T) {
	opts := testOptions(t)
	opts.Remote.HTTPAddr = "256.0.0.1:bad"
	m := New(opts)
	_, err := m.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, fsm.StateIdle, m.State())

	opts.Remote.HTTPAddr = "127.0.0.1:0"
	other := New(opts)
	_, err = other.Start(context.Background())
	require.NoError(t, err)
	other.Stop()
}

func TestStartHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testOptions(t)).Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDefaultLockPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	require.Equal(t, filepath.Join(dir, "molview", "viewer.lock"), DefaultLockPath())
}
