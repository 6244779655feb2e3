// Package doctor runs readiness diagnostics for config, endpoints, and the instance lock.
package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/molview/internal/config"
	"github.com/rbright/molview/internal/remote"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Options points the endpoint and lock checks at concrete locations.
type Options struct {
	// HTTPAddr overrides listen.http for the endpoint probe.
	HTTPAddr string
	LockPath string
	Timeout  time.Duration
}

// Run executes config/endpoint/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, opts Options) Report {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	httpAddr := strings.TrimSpace(opts.HTTPAddr)
	if httpAddr == "" {
		httpAddr = cfg.Config.Listen.HTTP
	}

	checks := []Check{checkConfig(cfg)}
	checks = append(checks, checkAddr("listen.http", cfg.Config.Listen.HTTP))
	if strings.TrimSpace(cfg.Config.Listen.GRPC) != "" {
		checks = append(checks, checkAddr("listen.grpc", cfg.Config.Listen.GRPC))
	}
	checks = append(checks, checkHTTPHealth(ctx, httpAddr, opts.Timeout))
	if strings.TrimSpace(cfg.Config.Listen.GRPC) != "" {
		checks = append(checks, checkGRPCHealth(ctx, cfg.Config.Listen.GRPC, opts.Timeout))
	}
	if opts.LockPath != "" {
		checks = append(checks, checkLockDir(opts.LockPath))
	}

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	if !cfg.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", cfg.Path)}
	}
	msg := fmt.Sprintf("loaded %q", cfg.Path)
	if n := len(cfg.Warnings); n > 0 {
		msg = fmt.Sprintf("%s (%d warnings)", msg, n)
	}
	return Check{Name: "config", Pass: true, Message: msg}
}

// checkAddr validates a host:port listen address.
func checkAddr(name string, addr string) Check {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if host == "" {
		host = "all interfaces"
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("host %s port %s", host, port)}
}

// checkHTTPHealth probes /healthz on a running viewer.
func checkHTTPHealth(ctx context.Context, addr string, timeout time.Duration) Check {
	client := remote.NewClient(addr, timeout)
	ok, err := client.Health(ctx)
	if err != nil {
		return Check{Name: "viewer.http", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	if !ok {
		return Check{Name: "viewer.http", Pass: false, Message: fmt.Sprintf("no viewer listening at %s", client.BaseURL())}
	}
	return Check{Name: "viewer.http", Pass: true, Message: fmt.Sprintf("ready at %s/healthz", client.BaseURL())}
}

// checkGRPCHealth asks the standard health service for the viewer status.
func checkGRPCHealth(ctx context.Context, addr string, timeout time.Duration) Check {
	client, err := remote.DialGRPC(ctx, addr, timeout)
	if err != nil {
		return Check{Name: "viewer.grpc", Pass: false, Message: err.Error()}
	}
	defer client.Close()

	healthCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	st, err := client.Health(healthCtx)
	if err != nil {
		return Check{Name: "viewer.grpc", Pass: false, Message: fmt.Sprintf("health check failed: %v", err)}
	}
	if st != healthpb.HealthCheckResponse_SERVING {
		return Check{Name: "viewer.grpc", Pass: false, Message: fmt.Sprintf("status %s at %s", st, addr)}
	}
	return Check{Name: "viewer.grpc", Pass: true, Message: fmt.Sprintf("serving at %s", addr)}
}

// checkLockDir verifies the instance lock directory is writable.
func checkLockDir(lockPath string) Check {
	dir := filepath.Dir(lockPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "runtime.lock", Pass: false, Message: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Check{Name: "runtime.lock", Pass: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return Check{Name: "runtime.lock", Pass: true, Message: fmt.Sprintf("lock at %s", lockPath)}
}
