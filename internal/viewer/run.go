package viewer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rbright/molview/internal/frame"
)

// Options selects how the program is attached to the terminal.
type Options struct {
	Interval time.Duration
	Headless bool
	// SavePath is where the save key writes the trajectory.
	SavePath string
	Input    io.Reader
	Output   io.Writer
}

// Run drives loop until the user quits or ctx ends.
func Run(ctx context.Context, loop *frame.Loop, opts Options) (Model, error) {
	m := NewModel(loop, opts.Interval).WithSavePath(opts.SavePath)

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Headless {
		programOpts = append(programOpts,
			tea.WithoutRenderer(),
			tea.WithoutSignalHandler(),
			tea.WithInput(bytes.NewReader(nil)),
			tea.WithOutput(io.Discard),
		)
	} else {
		programOpts = append(programOpts, tea.WithAltScreen())
		if opts.Input != nil {
			programOpts = append(programOpts, tea.WithInput(opts.Input))
		}
		if opts.Output != nil {
			programOpts = append(programOpts, tea.WithOutput(opts.Output))
		}
	}

	final, err := tea.NewProgram(m, programOpts...).Run()
	if fm, ok := final.(Model); ok {
		m = fm
	}
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled)) && ctx.Err() != nil {
		return m, nil
	}
	return m, err
}
