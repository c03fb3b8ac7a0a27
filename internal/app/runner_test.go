package app

import (
	"context"
	"encoding/json"
	"garminai/clients"
	"garminai/clients/updates"
	"garminai/config"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newAssistantServer fakes the assistant service, including the push
// channel. Frames written to push are delivered to connected clients.
func newAssistantServer(t *testing.T, push <-chan string) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "version": "1.0.0"})
	})
	mux.HandleFunc("/api/activities", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"activities":[{"id":"a1","title":"Morning Run","date":"2024-05-01","type":"running"}]}`))
	})
	mux.HandleFunc("/ws/updates", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			select {
			case <-r.Context().Done():
				return
			case frame, ok := <-push:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
			}
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestRunner(t *testing.T, baseURL string) *Runner {
	t.Helper()

	cfg := config.Defaults()
	cfg.API.BaseURL = baseURL
	runner := NewRunner(clients.NewClients(zap.NewNop(), cfg), cfg)
	t.Cleanup(runner.Shutdown)
	return runner
}

func TestNewRunner(t *testing.T) {
	runner := newTestRunner(t, "http://example.com")

	require.NotNil(t, runner.Sports())
	require.NotNil(t, runner.Board())
	require.NotNil(t, runner.Metrics())
	require.Equal(t, "general", runner.Board().InsightType())
}

func TestRunnerStartProbeAndLoad(t *testing.T) {
	server := newAssistantServer(t, nil)
	runner := newTestRunner(t, server.URL)

	err := runner.Start(context.Background(), StartOptions{Probe: true, LoadActivities: true})
	require.NoError(t, err)

	require.Equal(t, StatusConnected, runner.Sports().Snapshot().Status)
	require.Len(t, runner.Board().Activities(), 1)

	stats := runner.GetStats()
	require.True(t, stats.API.Connected)
	require.Equal(t, 1, stats.Activities.Count)
	require.Equal(t, server.URL, stats.API.BaseURL)
}

func TestRunnerStartUnreachableService(t *testing.T) {
	runner := newTestRunner(t, "http://127.0.0.1:1")

	err := runner.Start(context.Background(), StartOptions{Probe: true, LoadActivities: true})
	require.NoError(t, err, "probe and list failures only change state")

	require.Equal(t, StatusError, runner.Sports().Snapshot().Status)
	require.Equal(t, MsgRefreshFailed, runner.Board().Snapshot().Notice.Text)
}

func TestRunnerPushUpdates(t *testing.T) {
	push := make(chan string, 1)
	server := newAssistantServer(t, push)
	runner := newTestRunner(t, server.URL)

	received := make(chan updates.Update, 1)
	runner.OnUpdate(func(u updates.Update) {
		received <- u
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, runner.Start(ctx, StartOptions{ConnectUpdates: true}))

	push <- `{"type":"analysis_update","formatted":"<b>Great</b> week","suggestions":["Rest"]}`

	select {
	case u := <-received:
		require.Equal(t, updates.TypeAnalysisUpdate, u.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push update")
	}

	pane := runner.Board().Pane()
	require.Equal(t, "Great week", pane.Text)
	require.Equal(t, []string{"Rest"}, pane.Suggestions)

	stats := runner.GetStats()
	require.True(t, stats.Push.Connected)
	require.Equal(t, uint64(1), stats.Push.MessageCount)
}

func TestRunnerPushConnectFailure(t *testing.T) {
	runner := newTestRunner(t, "http://127.0.0.1:1")

	err := runner.Start(context.Background(), StartOptions{ConnectUpdates: true})
	require.Error(t, err)
}

func TestStatusHandler(t *testing.T) {
	server := newAssistantServer(t, nil)
	runner := newTestRunner(t, server.URL)
	require.NoError(t, runner.Start(context.Background(), StartOptions{Probe: true}))

	status := httptest.NewServer(runner.statusHandler())
	defer status.Close()

	resp, err := http.Get(status.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	resp, err = http.Get(status.URL + "/stats")
	require.NoError(t, err)
	var stats StatusStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	require.Equal(t, StatusConnected, stats.API.Status)
	require.Equal(t, BuildCommit, stats.Build.Commit)

	resp, err = http.Get(status.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.True(t, strings.Contains(string(body), `garminai_requests_total{call="health",outcome="ok"} 1`))

	resp, err = http.Get(status.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusHandlerWebSocket(t *testing.T) {
	runner := newTestRunner(t, "http://example.com")

	status := httptest.NewServer(runner.statusHandler())
	defer status.Close()

	wsURL := "ws" + strings.TrimPrefix(status.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var stats StatusStats
	require.NoError(t, conn.ReadJSON(&stats))
	require.Equal(t, StatusChecking, stats.API.Status)
}
