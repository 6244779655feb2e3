package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/task"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu      sync.Mutex
	posted  []command.RemoteCommand
	sent    []command.RemoteCommand
	postErr error
	sendErr error
	outcome command.Outcome
	panics  bool
}

func (q *fakeQueue) Post(_ context.Context, cmd command.RemoteCommand) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.panics {
		panic("queue exploded")
	}
	if q.postErr != nil {
		return q.postErr
	}
	q.posted = append(q.posted, cmd)
	return nil
}

func (q *fakeQueue) Send(_ context.Context, cmd command.RemoteCommand) (command.Outcome, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sendErr != nil {
		return command.Outcome{}, q.sendErr
	}
	q.sent = append(q.sent, cmd)
	out := q.outcome
	out.Command = cmd.Kind()
	return out, nil
}

func (q *fakeQueue) Posted() []command.RemoteCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]command.RemoteCommand(nil), q.posted...)
}

func serve(t *testing.T, q Queue, cfg Config, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewHTTPHandler(q, nil, cfg)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestViewMoleculesEnqueuesLoad(t *testing.T) {
	q := &fakeQueue{}
	rec := serve(t, q, Config{}, http.MethodPost, "/view-molecules",
		`[{"title":"a","atoms":[{"symbol":"H","position":[0,0,0]}]},{"title":"b","atoms":[{"symbol":"He","position":[1,1,1]}]}]`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	posted := q.Posted()
	require.Len(t, posted, 1)
	load, ok := posted[0].(command.Load)
	require.True(t, ok)
	require.Len(t, load.Molecules, 2)
	require.Equal(t, "b", load.Molecules[1].Title)
}

func TestViewMoleculeWrapsSingleMolecule(t *testing.T) {
	q := &fakeQueue{}
	rec := serve(t, q, Config{}, http.MethodPost, "/view-molecule", `{"title":"solo","atoms":[{"symbol":"Ar","position":[0,0,0]}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	load := q.Posted()[0].(command.Load)
	require.Len(t, load.Molecules, 1)
	require.Equal(t, "solo", load.Molecules[0].Title)
}

func TestDeleteAndLabelRoutes(t *testing.T) {
	q := &fakeQueue{}
	require.Equal(t, http.StatusOK, serve(t, q, Config{}, http.MethodPost, "/delete", "").Code)
	require.Equal(t, http.StatusOK, serve(t, q, Config{}, http.MethodPost, "/label", `{"delete":true}`).Code)

	require.Equal(t, []command.RemoteCommand{command.Delete{}, command.Label{Delete: true}}, q.Posted())
}

func TestLabelRouteRequiresDeleteField(t *testing.T) {
	q := &fakeQueue{}
	for _, body := range []string{`{}`, `null`, ``} {
		rec := serve(t, q, Config{}, http.MethodPost, "/label", body)
		require.Equal(t, http.StatusInternalServerError, rec.Code, "body %q", body)
		require.True(t, strings.HasPrefix(rec.Body.String(), ErrorPrefix))
	}
	require.Empty(t, q.Posted())
}

func TestDecodeFailureIsPlainText500(t *testing.T) {
	q := &fakeQueue{}
	rec := serve(t, q, Config{}, http.MethodPost, "/view-molecules", `{"not":"a list"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.True(t, strings.HasPrefix(rec.Body.String(), ErrorPrefix))
	require.Contains(t, rec.Body.String(), "molecule list")
	require.Empty(t, q.Posted())
}

func TestClosedQueueIs500(t *testing.T) {
	q := &fakeQueue{postErr: task.ErrChannelClosed}
	rec := serve(t, q, Config{}, http.MethodPost, "/delete", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, ErrorPrefix+"enqueue Delete: task channel closed", rec.Body.String())
}

func TestBodyLimit(t *testing.T) {
	q := &fakeQueue{}
	rec := serve(t, q, Config{MaxBodyBytes: 8}, http.MethodPost, "/label", `{"delete":false}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "exceeds 8 bytes")
	require.Empty(t, q.Posted())
}

func TestPanicInHandlerIs500(t *testing.T) {
	q := &fakeQueue{panics: true}
	rec := serve(t, q, Config{}, http.MethodPost, "/delete", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "queue exploded")
}

func TestCommandRouteReturnsOutcome(t *testing.T) {
	q := &fakeQueue{outcome: command.Outcome{Changed: true, Labels: true}}
	rec := serve(t, q, Config{}, http.MethodPost, "/command", `{"Label":{"delete":false}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out command.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, command.KindLabel, out.Command)
	require.True(t, out.Labels)
}

func TestCommandRouteErrors(t *testing.T) {
	rec := serve(t, &fakeQueue{}, Config{}, http.MethodPost, "/command", `{"Rotate":{}}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown variant")

	rec = serve(t, &fakeQueue{sendErr: context.DeadlineExceeded}, Config{}, http.MethodPost, "/command", `"Delete"`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "apply Delete")
}

func TestHealthzAndMethodRouting(t *testing.T) {
	rec := serve(t, &fakeQueue{}, Config{}, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = serve(t, &fakeQueue{}, Config{}, http.MethodGet, "/delete", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReplyTimeoutAfterAcceptIsDistinct(t *testing.T) {
	rx, tx := task.New[command.RemoteCommand, command.Outcome]()
	defer rx.Close()

	handler := NewHTTPHandler(tx, nil, Config{ReplyTimeout: 20 * time.Millisecond})
	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader(`"Delete"`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, ErrorPrefix+"apply Delete: accepted, no reply: "+context.DeadlineExceeded.Error(), rec.Body.String())
	// The command stays queued for the main loop.
	require.Equal(t, 1, rx.Pending())
}

func TestReplyTimeoutBoundsEnqueue(t *testing.T) {
	rx, tx := task.New[command.RemoteCommand, command.Outcome]()
	defer rx.Close()
	require.NoError(t, tx.Post(context.Background(), command.Delete{}))

	handler := NewHTTPHandler(tx, nil, Config{ReplyTimeout: 20 * time.Millisecond})
	req := httptest.NewRequest(http.MethodPost, "/delete", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), context.DeadlineExceeded.Error())
	require.NotContains(t, rec.Body.String(), "accepted")
}
