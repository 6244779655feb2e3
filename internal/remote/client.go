package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/molecule"
	"github.com/rbright/molview/internal/version"
)

// StatusError is a non-2xx reply from the HTTP endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.Code, e.Message)
}

// Client talks to a running viewer over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for addr ("host:port" or a full http URL).
func NewClient(addr string, timeout time.Duration) *Client {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: base, http: &http.Client{Timeout: timeout}}
}

// BaseURL returns the endpoint root.
func (c *Client) BaseURL() string { return c.baseURL }

// ViewMolecules replaces the viewer scene with mols.
func (c *Client) ViewMolecules(ctx context.Context, mols []molecule.Molecule) error {
	if mols == nil {
		mols = []molecule.Molecule{}
	}
	body, err := json.Marshal(mols)
	if err != nil {
		return fmt.Errorf("encode molecules: %w", err)
	}
	_, err = c.post(ctx, "/view-molecules", body)
	return err
}

// Delete clears the viewer scene.
func (c *Client) Delete(ctx context.Context) error {
	_, err := c.post(ctx, "/delete", nil)
	return err
}

// Label shows atom labels, or hides them when hide is set.
func (c *Client) Label(ctx context.Context, hide bool) error {
	body, err := json.Marshal(command.Label{Delete: hide})
	if err != nil {
		return err
	}
	_, err = c.post(ctx, "/label", body)
	return err
}

// Apply sends cmd and waits for the main loop's Outcome.
func (c *Client) Apply(ctx context.Context, cmd command.RemoteCommand) (command.Outcome, error) {
	body, err := command.Encode(cmd)
	if err != nil {
		return command.Outcome{}, err
	}
	resp, err := c.post(ctx, "/command", body)
	if err != nil {
		return command.Outcome{}, err
	}
	var out command.Outcome
	if err := json.Unmarshal(resp, &out); err != nil {
		return command.Outcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	return out, nil
}

// Health reports whether a viewer answers on the endpoint. A refused
// connection is reported as not listening rather than as an error.
func (c *Client) Health(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return false, nil
		}
		return false, fmt.Errorf("probe %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return false, &StatusError{Code: resp.StatusCode, Message: resp.Status}
	}
	return true, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	return data, nil
}
