package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/molview/internal/cli"
	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/config"
	"github.com/rbright/molview/internal/doctor"
	"github.com/rbright/molview/internal/frame"
	"github.com/rbright/molview/internal/lifecycle"
	"github.com/rbright/molview/internal/logging"
	"github.com/rbright/molview/internal/molecule"
	"github.com/rbright/molview/internal/remote"
	"github.com/rbright/molview/internal/scene"
	"github.com/rbright/molview/internal/version"
	"github.com/rbright/molview/internal/viewer"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	probeTimeout = 500 * time.Millisecond
	dialTimeout  = 2 * time.Second
)

var errDoctorFailed = errors.New("doctor checks failed")

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// LockPath overrides the single-instance lock location.
	LockPath string
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	root := cli.NewRoot(r, r.Stdout, r.Stderr, version.String())
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	if cli.IsUsage(err) {
		fmt.Fprintf(r.Stderr, "\n%s", root.UsageString())
		return 2
	}
	return 1
}

// env is the per-command runtime: loaded config plus an open logger.
type env struct {
	loaded config.Loaded
	logger *slog.Logger
	close  func()
}

func (r Runner) setup(g cli.Globals, name string) (env, error) {
	loaded, err := config.Load(g.ConfigPath)
	if err != nil {
		return env{}, err
	}
	level, err := config.ParseLevel(loaded.Config.Log.Level)
	if err != nil {
		return env{}, err
	}

	logger := r.Logger
	closeFn := func() {}
	if logger == nil {
		logPath, err := config.ExpandHome(strings.TrimSpace(loaded.Config.Log.File))
		if err != nil {
			return env{}, err
		}
		rt, err := logging.New(logging.Options{Level: level, Path: logPath})
		if err != nil {
			return env{}, fmt.Errorf("setup logging: %w", err)
		}
		logger = rt.Logger
		closeFn = func() { _ = rt.Close() }
	}

	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	logger.Info("command start", "command", name, "config", loaded.Path)

	return env{loaded: loaded, logger: logger, close: closeFn}, nil
}

func (r Runner) lockPath() string {
	if r.LockPath != "" {
		return r.LockPath
	}
	return lifecycle.DefaultLockPath()
}

func httpAddr(g cli.Globals, cfg config.Config) string {
	if addr := strings.TrimSpace(g.Addr); addr != "" {
		return addr
	}
	return cfg.Listen.HTTP
}

// clientTimeout leaves room past the server's reply bound so its 500 wins.
// An unbounded server falls back to the client default.
func clientTimeout(cfg config.Config) time.Duration {
	d := cfg.ReplyTimeout()
	if d <= 0 {
		return 0
	}
	return d + 5*time.Second
}

func (r Runner) Serve(ctx context.Context, g cli.Globals, opts cli.ServeOptions) error {
	e, err := r.setup(g, "serve")
	if err != nil {
		return err
	}
	defer e.close()
	cfg := e.loaded.Config

	preload, err := readMolecules(opts.Files)
	if err != nil {
		return err
	}

	mgr := lifecycle.New(lifecycle.Options{
		Remote: remote.Config{
			HTTPAddr:     httpAddr(g, cfg),
			GRPCAddr:     cfg.Listen.GRPC,
			MaxBodyBytes: cfg.Listen.MaxBodyBytes,
			ReplyTimeout: cfg.ReplyTimeout(),
		},
		LockPath: r.lockPath(),
		Logger:   e.logger,
	})
	rx, err := mgr.Start(ctx)
	if err != nil {
		return err
	}
	defer mgr.Stop()

	handle := mgr.Handle()
	fmt.Fprintf(r.Stderr, "listening on http://%s\n", handle.HTTPAddr())
	if grpcAddr := handle.GRPCAddr(); grpcAddr != "" {
		fmt.Fprintf(r.Stderr, "listening on grpc %s\n", grpcAddr)
	}

	loop := frame.NewLoop(rx, scene.New(), e.logger)
	if len(preload) > 0 {
		out := loop.Apply(command.Load{Molecules: preload})
		if err := out.Err(); err != nil {
			return fmt.Errorf("preload: %w", err)
		}
		fmt.Fprintf(r.Stderr, "loaded %d frame(s)\n", out.Frames)
	}

	final, err := viewer.Run(ctx, loop, viewer.Options{
		Interval: cfg.TickInterval(),
		Headless: opts.Headless || cfg.Headless(),
		SavePath: opts.SavePath,
	})
	e.logger.Info("viewer exited",
		"ticks", loop.Ticks(),
		"handled", final.Handled(),
		"frames", loop.Scene().Len(),
	)
	if err != nil {
		return err
	}

	if opts.SavePath != "" && !loop.Scene().Empty() {
		if err := loop.Scene().SaveAs(opts.SavePath); err != nil {
			return err
		}
		fmt.Fprintf(r.Stderr, "saved %d frame(s) to %s\n", loop.Scene().Len(), opts.SavePath)
	}
	return nil
}

func (r Runner) View(ctx context.Context, g cli.Globals, files []string) error {
	e, err := r.setup(g, "view")
	if err != nil {
		return err
	}
	defer e.close()

	mols, err := readMolecules(files)
	if err != nil {
		return err
	}
	client := remote.NewClient(httpAddr(g, e.loaded.Config), clientTimeout(e.loaded.Config))
	if err := client.ViewMolecules(ctx, mols); err != nil {
		return err
	}
	fmt.Fprintf(r.Stdout, "sent %d molecule(s) to %s\n", len(mols), client.BaseURL())
	return nil
}

func (r Runner) Delete(ctx context.Context, g cli.Globals) error {
	e, err := r.setup(g, "delete")
	if err != nil {
		return err
	}
	defer e.close()

	client := remote.NewClient(httpAddr(g, e.loaded.Config), clientTimeout(e.loaded.Config))
	return client.Delete(ctx)
}

func (r Runner) Label(ctx context.Context, g cli.Globals, hide bool) error {
	e, err := r.setup(g, "label")
	if err != nil {
		return err
	}
	defer e.close()

	client := remote.NewClient(httpAddr(g, e.loaded.Config), clientTimeout(e.loaded.Config))
	return client.Label(ctx, hide)
}

func (r Runner) Apply(ctx context.Context, g cli.Globals, raw string, viaHTTP bool) error {
	e, err := r.setup(g, "apply")
	if err != nil {
		return err
	}
	defer e.close()
	cfg := e.loaded.Config

	var out command.Outcome
	if viaHTTP || strings.TrimSpace(cfg.Listen.GRPC) == "" {
		cmd, err := command.Decode([]byte(raw))
		if err != nil {
			return err
		}
		out, err = remote.NewClient(httpAddr(g, cfg), clientTimeout(cfg)).Apply(ctx, cmd)
		if err != nil {
			return err
		}
	} else {
		client, err := remote.DialGRPC(ctx, cfg.Listen.GRPC, dialTimeout)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		out, err = client.ApplyJSON(ctx, []byte(raw))
		if err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	fmt.Fprintln(r.Stdout, string(data))
	if err := out.Err(); err != nil {
		return fmt.Errorf("viewer rejected %s: %w", out.Command, err)
	}
	return nil
}

func (r Runner) Status(ctx context.Context, g cli.Globals) error {
	e, err := r.setup(g, "status")
	if err != nil {
		return err
	}
	defer e.close()
	cfg := e.loaded.Config

	ok, err := remote.NewClient(httpAddr(g, cfg), probeTimeout).Health(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(r.Stdout, "stopped")
		return nil
	}
	fmt.Fprintln(r.Stdout, "listening")

	if strings.TrimSpace(cfg.Listen.GRPC) == "" {
		return nil
	}
	if st := grpcStatus(ctx, cfg.Listen.GRPC); st != healthpb.HealthCheckResponse_SERVING {
		fmt.Fprintf(r.Stderr, "warning: grpc %s reports %s\n", cfg.Listen.GRPC, st)
	}
	return nil
}

func grpcStatus(ctx context.Context, addr string) healthpb.HealthCheckResponse_ServingStatus {
	client, err := remote.DialGRPC(ctx, addr, probeTimeout)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	defer func() { _ = client.Close() }()

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	st, err := client.Health(probeCtx)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return st
}

func (r Runner) Doctor(ctx context.Context, g cli.Globals) error {
	e, err := r.setup(g, "doctor")
	if err != nil {
		return err
	}
	defer e.close()

	report := doctor.Run(ctx, e.loaded, doctor.Options{
		HTTPAddr: httpAddr(g, e.loaded.Config),
		LockPath: r.lockPath(),
	})
	fmt.Fprintln(r.Stdout, report.String())
	if !report.OK() {
		return errDoctorFailed
	}
	return nil
}

func (r Runner) Version() error {
	fmt.Fprintln(r.Stdout, version.String())
	return nil
}

func readMolecules(files []string) ([]molecule.Molecule, error) {
	var all []molecule.Molecule
	for _, path := range files {
		mols, err := molecule.ReadPath(path)
		if err != nil {
			return nil, err
		}
		all = append(all, mols...)
	}
	return all, nil
}
