package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket upgrader for real-time stats
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statusHandler builds the status server routes.
func (r *Runner) statusHandler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// JSON stats endpoint
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := r.GetStats()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(stats)
	})

	mux.Handle("/metrics", r.metrics.Handler())

	// WebSocket endpoint for real-time stats
	mux.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, req, nil)
		if err != nil {
			r.clients.Logger.Error("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		// Send stats every second
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-req.Context().Done():
				return
			case <-ticker.C:
				if err := conn.WriteJSON(r.GetStats()); err != nil {
					return // Client disconnected
				}
			}
		}
	})

	// HTML dashboard
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(dashboardHTML))
	})

	return mux
}

// startStatusServer starts the status server in the background.
func (r *Runner) startStatusServer(port int) {
	r.statusServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r.statusHandler(),
	}

	go func() {
		if err := r.statusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.clients.Logger.Error("status server error", zap.Error(err))
		}
	}()
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>garminai status</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, monospace; background: #0d1117; color: #c9d1d9; padding: 20px; }
        h1 { color: #58a6ff; font-size: 24px; margin-bottom: 16px; }
        .card { background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 16px; margin-bottom: 16px; }
        .row { display: flex; justify-content: space-between; padding: 4px 0; border-bottom: 1px solid #21262d; }
        .row:last-child { border-bottom: none; }
        .label { color: #8b949e; }
        .green { color: #3fb950; }
        .red { color: #f85149; }
    </style>
</head>
<body>
    <h1>garminai status</h1>
    <div class="card" id="cards">Connecting...</div>
    <script>
        function row(label, value, cls) {
            const r = document.createElement('div');
            r.className = 'row';
            const l = document.createElement('span');
            l.className = 'label';
            l.textContent = label;
            const v = document.createElement('span');
            if (cls) v.className = cls;
            v.textContent = String(value);
            r.append(l, v);
            return r;
        }
        function render(s) {
            const el = document.getElementById('cards');
            el.replaceChildren(
                row('API', s.api.status, s.api.connected ? 'green' : 'red'),
                row('Selected sport', s.sports.selected || '-'),
                row('Analysis busy', s.sports.busy),
                row('Activities', s.activities.count),
                row('Selected activity', s.activities.selected || '-'),
                row('Push connected', s.push.connected, s.push.connected ? 'green' : 'red'),
                row('Push messages', s.push.message_count),
                row('Uptime', s.uptime),
                row('Commit', s.build.commit)
            );
        }
        const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
        const ws = new WebSocket(proto + '//' + location.host + '/ws');
        ws.onmessage = (e) => render(JSON.parse(e.data));
    </script>
</body>
</html>
`
