package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"kaiheila/internal/domain"
)

type recordedRequest struct {
	path  string
	query string
	body  string
}

// apiRecorder records the requests a fake API server received.
type apiRecorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (r *apiRecorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.reqs...)
}

// fakeAPI serves canned envelopes keyed by request path.
func fakeAPI(t *testing.T, data map[string]any) (*httptest.Server, *apiRecorder) {
	t.Helper()
	rec := &apiRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, recordedRequest{path: r.URL.Path, query: r.URL.RawQuery, body: string(body)})
		rec.mu.Unlock()

		d, ok := data[strings.TrimPrefix(r.URL.Path, "/api/v3")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var code int64
		_ = json.NewEncoder(w).Encode(domain.Envelope[any]{Code: &code, Data: d})
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func run(t *testing.T, srv *httptest.Server, name string, args ...string) (string, error) {
	t.Helper()
	base := []string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--token", "1/abc",
		"--base-url", srv.URL + "/api/v3",
	}
	var out bytes.Buffer
	err := runCommand(context.Background(), name, append(base, args...), &out)
	return out.String(), err
}

func TestRunUnknownCommand(t *testing.T) {
	err := runCommand(context.Background(), "nope", nil, io.Discard)
	assert.ErrorIs(t, err, errUnknownCommand)
}

func TestRunGuilds(t *testing.T) {
	srv, _ := fakeAPI(t, map[string]any{
		"/guild/list": map[string]any{
			"items": []map[string]any{{"id": "1", "name": "Alpha", "master_id": "m", "region": "beijing"}},
			"meta":  map[string]int{"page": 1, "page_total": 1, "page_size": 50, "total": 1},
		},
	})

	out, err := run(t, srv, "guilds")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "beijing")

	out, err = run(t, srv, "guilds", "--json")
	require.NoError(t, err)
	var guilds []domain.Guild
	require.NoError(t, json.Unmarshal([]byte(out), &guilds))
	assert.Equal(t, "Alpha", guilds[0].Name)
}

func TestRunMembersSendsOnlyChangedFlags(t *testing.T) {
	srv, seen := fakeAPI(t, map[string]any{
		"/guild/user-list": map[string]any{
			"items": []map[string]any{{"id": "u1", "username": "alice", "identify_num": "0001", "roles": []int{3}}},
			"meta":  map[string]int{"page": 1, "page_total": 1, "page_size": 50, "total": 1},
		},
	})

	out, err := run(t, srv, "members", "--guild", "g", "--search", "al", "--joined-at=false", "--role", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "alice#0001")
	reqs := seen.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "compress=1&guild_id=g&search=al&role_id=3&joined_at=0", reqs[0].query)

	_, err = run(t, srv, "members")
	assert.ErrorContains(t, err, "--guild is required")
}

func TestRunMute(t *testing.T) {
	srv, seen := fakeAPI(t, map[string]any{
		"/guild-mute/create": []any{},
		"/guild-mute/delete": []any{},
	})

	out, err := run(t, srv, "mute", "--guild", "g", "--user", "u", "--type", "headset")
	require.NoError(t, err)
	assert.Equal(t, "muted u in g\n", out)

	out, err = run(t, srv, "mute", "--guild", "g", "--user", "u", "--delete")
	require.NoError(t, err)
	assert.Equal(t, "unmuted u in g\n", out)

	reqs := seen.all()
	require.Len(t, reqs, 2)
	assert.JSONEq(t, `{"guild_id":"g","user_id":"u","type":2}`, reqs[0].body)
	assert.Equal(t, "/api/v3/guild-mute/delete", reqs[1].path)

	_, err = run(t, srv, "mute", "--guild", "g", "--user", "u", "--type", "both")
	assert.ErrorContains(t, err, "must be mic or headset")
}

func TestRunMutesCodeNotZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":41001,"message":"guild not found","data":null}`))
	}))
	defer srv.Close()

	_, err := run(t, srv, "mutes", "--guild", "missing")
	assert.ErrorIs(t, err, domain.ErrCodeNotZero)
}

func TestRunGatewayResume(t *testing.T) {
	srv, _ := fakeAPI(t, map[string]any{
		"/gateway/index": map[string]string{"url": "wss://ws.example.com/gateway?compress=1&token=tok"},
	})

	out, err := run(t, srv, "gateway")
	require.NoError(t, err)
	assert.Equal(t, "wss://ws.example.com/gateway?compress=1&token=tok\n", out)

	out, err = run(t, srv, "gateway", "--resume-sn", "42", "--session-id", "s-1")
	require.NoError(t, err)
	assert.Equal(t, "wss://ws.example.com/gateway?compress=1&token=tok&resume=1&sn=42&session_id=s-1\n", out)

	_, err = run(t, srv, "gateway", "--resume-sn", "42")
	assert.ErrorIs(t, err, domain.ErrNoSessionID)
}

func TestRunGatewayDial(t *testing.T) {
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		_ = c.Write(r.Context(), websocket.MessageText, []byte(`{"s":1,"d":{"code":0,"session_id":"sess-9"}}`))
		_, _, _ = c.Read(r.Context())
	}))
	defer ws.Close()

	gwURL := "ws" + strings.TrimPrefix(ws.URL, "http") + "/gateway?compress=0&token=tok"
	srv, _ := fakeAPI(t, map[string]any{"/gateway/index": map[string]string{"url": gwURL}})

	out, err := run(t, srv, "gateway", "--dial")
	require.NoError(t, err)
	assert.Equal(t, "HELLO session_id=sess-9 sn=0\n", out)
}

func TestRunRequiresToken(t *testing.T) {
	srv, _ := fakeAPI(t, nil)
	t.Setenv("KAIHEILA_API_TOKEN", "")
	var out bytes.Buffer
	err := runCommand(context.Background(), "guilds", []string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--base-url", srv.URL,
	}, &out)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}
