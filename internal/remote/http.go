package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/molecule"
)

// RequestIDHeader carries the per-request id on every response.
const RequestIDHeader = "X-Request-Id"

// ErrorPrefix starts the plain-text body of every failed request.
const ErrorPrefix = "Something went wrong: "

// NewHTTPHandler routes the viewer endpoints onto queue.
func NewHTTPHandler(queue Queue, logger *slog.Logger, cfg Config) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &httpService{queue: queue, logger: logger, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /view-molecules", s.handle(decodeMoleculeList))
	mux.HandleFunc("POST /view-molecule", s.handle(decodeSingleMolecule))
	mux.HandleFunc("POST /delete", s.handle(func([]byte) (command.RemoteCommand, error) {
		return command.Delete{}, nil
	}))
	mux.HandleFunc("POST /label", s.handle(decodeLabel))
	mux.HandleFunc("POST /command", s.handleCommand)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	return s.middleware(mux)
}

type httpService struct {
	queue  Queue
	logger *slog.Logger
	cfg    Config
}

type decodeFunc func([]byte) (command.RemoteCommand, error)

// handle serves the fire-and-forget routes: decode, enqueue, empty 200.
func (s *httpService) handle(decode decodeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := s.readBody(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		cmd, err := decode(body)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx, cancel := withReplyTimeout(r.Context(), s.cfg.ReplyTimeout)
		defer cancel()
		if err := s.queue.Post(ctx, cmd); err != nil {
			writeError(w, fmt.Errorf("enqueue %s: %w", cmd.Kind(), err))
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// handleCommand waits for the main loop and returns the Outcome as JSON.
func (s *httpService) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	cmd, err := command.Decode(body)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := withReplyTimeout(r.Context(), s.cfg.ReplyTimeout)
	defer cancel()
	out, err := s.queue.Send(ctx, cmd)
	if err != nil {
		writeError(w, fmt.Errorf("apply %s: %w", cmd.Kind(), err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *httpService) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

// middleware assigns a request id, recovers panics and logs every request.
func (s *httpService) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(RequestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()

		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.logger.Error("remote handler panic", "request_id", id, "path", r.URL.Path, "panic", fmt.Sprint(p))
				if !rec.wrote {
					writeError(rec, fmt.Errorf("internal panic: %v", p))
				}
			}
			attrs := []any{
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"user_agent", r.UserAgent(),
				"duration_ms", time.Since(started).Milliseconds(),
			}
			if rec.status >= http.StatusInternalServerError {
				s.logger.Warn("remote request failed", attrs...)
				return
			}
			s.logger.Info("remote request", attrs...)
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(p)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, ErrorPrefix+err.Error())
}

func decodeMoleculeList(body []byte) (command.RemoteCommand, error) {
	var mols []molecule.Molecule
	if err := json.Unmarshal(body, &mols); err != nil {
		return nil, fmt.Errorf("%w: molecule list: %v", command.ErrDecode, err)
	}
	return command.Load{Molecules: mols}, nil
}

func decodeSingleMolecule(body []byte) (command.RemoteCommand, error) {
	var m molecule.Molecule
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: molecule: %v", command.ErrDecode, err)
	}
	return command.Load{Molecules: []molecule.Molecule{m}}, nil
}

func decodeLabel(body []byte) (command.RemoteCommand, error) {
	label, err := command.DecodeLabel(body)
	if err != nil {
		return nil, fmt.Errorf("%w: label: %v", command.ErrDecode, err)
	}
	return label, nil
}
