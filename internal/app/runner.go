package app

import (
	"context"
	"fmt"
	clts "garminai/clients"
	"garminai/clients/updates"
	"garminai/config"
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Build info - populated from embedded VCS info at init time
var (
	BuildCommit = "dev"
	BuildTime   = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if setting.Value != "" {
					BuildCommit = setting.Value
				}
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	}
}

// StartOptions selects the start-up work for a front-end.
type StartOptions struct {
	Probe          bool // run the connectivity check
	LoadActivities bool // load the activity list
	ConnectUpdates bool // open the push channel
}

// Runner owns both client state machines and their start-up.
type Runner struct {
	clients      *clts.Clients
	cfg          *config.Config
	metrics      *Metrics
	sports       *SportSession
	board        *ActivityBoard
	statusServer *http.Server
	startTime    time.Time

	listenerMu sync.RWMutex
	listeners  []updates.Handler

	pushLost chan struct{}
}

// StatusStats is the snapshot served by the status server.
type StatusStats struct {
	// Build info
	Build struct {
		Commit    string `json:"commit"`
		Time      string `json:"time,omitempty"`
		GoVersion string `json:"go_version"`
	} `json:"build"`

	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_seconds"`

	API struct {
		BaseURL   string `json:"base_url"`
		Status    string `json:"status"`
		Connected bool   `json:"connected"`
	} `json:"api"`

	Sports struct {
		Selected string `json:"selected,omitempty"`
		Busy     bool   `json:"busy"`
		Result   bool   `json:"has_result"`
	} `json:"sports"`

	Activities struct {
		Count    int    `json:"count"`
		Selected string `json:"selected,omitempty"`
		HasPane  bool   `json:"has_pane"`
	} `json:"activities"`

	// Push channel stats
	Push struct {
		Enabled        bool   `json:"enabled"`
		Connected      bool   `json:"connected"`
		MessageCount   uint64 `json:"message_count"`
		LastMessageAt  string `json:"last_message_at,omitempty"`
		LastMessageAgo string `json:"last_message_ago,omitempty"`
	} `json:"push"`

	Notifications struct {
		DiscordEnabled   bool   `json:"discord_enabled"`
		DiscordChannelID string `json:"discord_channel_id,omitempty"`
		TelegramEnabled  bool   `json:"telegram_enabled"`
		TelegramChatID   string `json:"telegram_chat_id,omitempty"`
	} `json:"notifications"`

	Runtime struct {
		Goroutines int    `json:"goroutines"`
		HeapAlloc  uint64 `json:"heap_alloc"`
		NumGC      uint32 `json:"num_gc"`
		GoVersion  string `json:"go_version"`
		GOOS       string `json:"goos"`
		GOARCH     string `json:"goarch"`
	} `json:"runtime"`
}

func NewRunner(clients *clts.Clients, cfg *config.Config) *Runner {
	if clients.Logger == nil {
		clients.Logger = zap.NewNop()
	}
	metrics := NewMetrics()

	return &Runner{
		clients: clients,
		cfg:     cfg,
		metrics: metrics,
		sports: NewSportSession(
			clients.Logger.Named("sports"),
			clients.Assistant,
			clients.Notifier,
			metrics,
			cfg.Analysis,
		),
		board: NewActivityBoard(
			clients.Logger.Named("activities"),
			clients.Assistant,
			clients.Notifier,
			metrics,
			cfg.Analysis.InsightType,
		),
		startTime: time.Now(),
		pushLost:  make(chan struct{}),
	}
}

func (r *Runner) Sports() *SportSession {
	return r.sports
}

func (r *Runner) Board() *ActivityBoard {
	return r.board
}

func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// OnUpdate registers a listener called after a push message has been
// applied to the activity board.
func (r *Runner) OnUpdate(h updates.Handler) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.listeners = append(r.listeners, h)
}

// Start runs the selected start-up work in parallel. Probe and list failures
// only change client state; a push channel that cannot connect is returned.
func (r *Runner) Start(ctx context.Context, opts StartOptions) error {
	logger := r.clients.Logger
	r.startTime = time.Now()

	if r.cfg.StatusServer.Enabled {
		r.startStatusServer(r.cfg.StatusServer.Port)
		logger.Info("status server started", zap.Int("port", r.cfg.StatusServer.Port))
	}

	g, gctx := errgroup.WithContext(ctx)

	if opts.Probe {
		g.Go(func() error {
			status := r.sports.Probe(gctx)
			logger.Info("connectivity", zap.String("status", status))
			return nil
		})
	}

	if opts.LoadActivities {
		g.Go(func() error {
			if err := r.board.Refresh(gctx); err != nil {
				logger.Warn("initial activity load failed", zap.Error(err))
			}
			return nil
		})
	}

	if opts.ConnectUpdates && r.clients.Updates != nil {
		// The handler uses the parent context: gctx is cancelled when Wait returns.
		r.clients.Updates.OnMessage(func(u updates.Update) {
			r.handleUpdate(ctx, u)
		})
		g.Go(func() error {
			if err := r.clients.Updates.Connect(ctx); err != nil {
				return fmt.Errorf("connect push channel: %w", err)
			}
			go r.watchPushErrors(ctx)
			return nil
		})
	}

	return g.Wait()
}

func (r *Runner) handleUpdate(ctx context.Context, u updates.Update) {
	r.board.HandleUpdate(ctx, u)

	r.listenerMu.RLock()
	listeners := make([]updates.Handler, len(r.listeners))
	copy(listeners, r.listeners)
	r.listenerMu.RUnlock()

	for _, h := range listeners {
		h(u)
	}
}

// watchPushErrors logs push channel failures. There is no reconnect.
func (r *Runner) watchPushErrors(ctx context.Context) {
	select {
	case <-ctx.Done():
	case err := <-r.clients.Updates.Errors():
		r.clients.Logger.Warn("push channel disconnected", zap.Error(err))
		close(r.pushLost)
	}
}

// PushLost is closed when an open push channel drops.
func (r *Runner) PushLost() <-chan struct{} {
	return r.pushLost
}

// Shutdown stops the status server and releases the clients.
func (r *Runner) Shutdown() {
	if r.statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.statusServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	if err := r.clients.Close(); err != nil {
		r.clients.Logger.Warn("failed to close clients", zap.Error(err))
	}
}

// GetStats returns the current status snapshot.
func (r *Runner) GetStats() StatusStats {
	var stats StatusStats

	stats.Build.Commit = BuildCommit
	stats.Build.Time = BuildTime
	stats.Build.GoVersion = runtime.Version()

	stats.StartTime = r.startTime.UTC().Format(time.RFC3339)
	uptime := time.Since(r.startTime)
	stats.Uptime = uptime.Round(time.Second).String()
	stats.UptimeSec = int64(uptime.Seconds())

	sport := r.sports.Snapshot()
	stats.API.BaseURL = r.cfg.API.BaseURL
	stats.API.Status = sport.Status
	stats.API.Connected = sport.Connected
	stats.Sports.Selected = sport.Selected
	stats.Sports.Busy = sport.Busy
	stats.Sports.Result = len(sport.Result) > 0

	board := r.board.Snapshot()
	stats.Activities.Count = len(board.Activities)
	stats.Activities.Selected = board.Selected
	stats.Activities.HasPane = board.HasPane

	stats.Push.Enabled = r.clients.Updates != nil
	if r.clients.Updates != nil {
		ws := r.clients.Updates.Stats()
		stats.Push.Connected = ws.Connected
		stats.Push.MessageCount = ws.MessageCount
		if !ws.LastMessageAt.IsZero() {
			stats.Push.LastMessageAt = ws.LastMessageAt.UTC().Format(time.RFC3339)
			stats.Push.LastMessageAgo = time.Since(ws.LastMessageAt).Round(time.Second).String()
		}
	}

	stats.Notifications.DiscordEnabled = r.clients.Discord != nil && r.clients.Discord.Enabled()
	if stats.Notifications.DiscordEnabled {
		stats.Notifications.DiscordChannelID = r.cfg.Discord.ChannelID
	}
	stats.Notifications.TelegramEnabled = r.clients.Telegram != nil && r.clients.Telegram.Enabled()
	if stats.Notifications.TelegramEnabled {
		stats.Notifications.TelegramChatID = r.cfg.Telegram.ChatID
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats.Runtime.Goroutines = runtime.NumGoroutine()
	stats.Runtime.HeapAlloc = memStats.HeapAlloc
	stats.Runtime.NumGC = memStats.NumGC
	stats.Runtime.GoVersion = runtime.Version()
	stats.Runtime.GOOS = runtime.GOOS
	stats.Runtime.GOARCH = runtime.GOARCH

	return stats
}
