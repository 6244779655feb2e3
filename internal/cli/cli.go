// Package cli defines the molview command tree. Commands parse flags and
// arguments, then hand off to an Actions implementation.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Globals are the flags shared by every command.
type Globals struct {
	ConfigPath string
	Addr       string
}

// ServeOptions configures the viewer process.
type ServeOptions struct {
	Files    []string
	Headless bool
	// SavePath receives the trajectory on the save key and on exit.
	SavePath string
}

// Actions executes parsed commands.
type Actions interface {
	Serve(context.Context, Globals, ServeOptions) error
	View(ctx context.Context, g Globals, files []string) error
	Delete(context.Context, Globals) error
	Label(ctx context.Context, g Globals, hide bool) error
	Apply(ctx context.Context, g Globals, raw string, viaHTTP bool) error
	Status(context.Context, Globals) error
	Doctor(context.Context, Globals) error
	Version() error
}

// UsageError marks an invalid invocation.
type UsageError struct {
	Err error
}

func (e UsageError) Error() string { return e.Err.Error() }

func (e UsageError) Unwrap() error { return e.Err }

// IsUsage reports whether err came from argument or flag parsing.
func IsUsage(err error) bool {
	var u UsageError
	return errors.As(err, &u)
}

// NewRoot builds the command tree bound to actions.
func NewRoot(actions Actions, stdout, stderr io.Writer, versionText string) *cobra.Command {
	g := &Globals{}

	root := &cobra.Command{
		Use:   "molview",
		Short: "Molecule viewer with a remote command bridge",
		Long: `molview shows molecules in the terminal and accepts Load, Delete and
Label commands from other processes over HTTP and gRPC.

Start the viewer with "molview serve", then drive it from another shell with
"molview view FILE", "molview label" or "molview delete".`,
		Version:       versionText,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return UsageError{Err: fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return UsageError{Err: err}
	})
	root.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/molview/config.toml)")
	root.PersistentFlags().StringVar(&g.Addr, "addr", "", "viewer HTTP address, overriding listen.http")

	var serveOpts ServeOptions
	serve := &cobra.Command{
		Use:   "serve [FILE|DIR...]",
		Short: "Run the viewer and listen for remote commands",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serveOpts.Files = append([]string(nil), args...)
			return actions.Serve(cmd.Context(), *g, serveOpts)
		},
	}
	serve.Flags().BoolVar(&serveOpts.Headless, "headless", false, "run the main loop without a terminal view")
	serve.Flags().StringVar(&serveOpts.SavePath, "save", "", "write the displayed trajectory here (JSON, or YAML for .yaml/.yml)")

	view := &cobra.Command{
		Use:   "view FILE|DIR...",
		Short: "Send molecules from JSON or YAML files (or directories of them) to a running viewer",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return actions.View(cmd.Context(), *g, args)
		},
	}

	del := &cobra.Command{
		Use:   "delete",
		Short: "Clear the viewer scene",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return actions.Delete(cmd.Context(), *g)
		},
	}

	var hide bool
	label := &cobra.Command{
		Use:   "label",
		Short: "Show atom labels (or hide them with --hide)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return actions.Label(cmd.Context(), *g, hide)
		},
	}
	label.Flags().BoolVar(&hide, "hide", false, "hide labels instead of showing them")

	var viaHTTP bool
	apply := &cobra.Command{
		Use:   "apply JSON",
		Short: "Send a raw command and print the viewer's outcome",
		Example: `  molview apply '"Delete"'
  molview apply '{"Label":{"delete":true}}'`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return actions.Apply(cmd.Context(), *g, args[0], viaHTTP)
		},
	}
	apply.Flags().BoolVar(&viaHTTP, "http", false, "use the HTTP /command route instead of gRPC")

	status := &cobra.Command{
		Use:   "status",
		Short: "Print whether a viewer is listening",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return actions.Status(cmd.Context(), *g)
		},
	}

	doctor := &cobra.Command{
		Use:   "doctor",
		Short: "Run configuration and environment checks",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return actions.Doctor(cmd.Context(), *g)
		},
	}

	ver := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(*cobra.Command, []string) error {
			return actions.Version()
		},
	}

	root.AddCommand(serve, view, del, label, apply, status, doctor, ver)
	return root
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return UsageError{Err: err}
		}
		return nil
	}
}
