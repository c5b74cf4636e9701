package widget

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/link-coach/internal/channel"
	"github.com/ashureev/link-coach/internal/coach"
	"github.com/ashureev/link-coach/internal/conversation"
	"github.com/ashureev/link-coach/internal/domain"
	"github.com/ashureev/link-coach/internal/report"
)

// AppConfig configures the embedded application.
type AppConfig struct {
	Port           channel.Port
	AllowedOrigins []string
	BackendURL     string
	Tokens         TokenStore
	HTTPClient     *http.Client

	// DevFallback enables the development session after FallbackDelay.
	DevFallback   bool
	FallbackDelay time.Duration

	Logger *slog.Logger
}

// App gates the report and the conversation behind the handshake.
type App struct {
	Boot   *Bootstrapper
	Report *report.Acquisition
	Chat   *conversation.Manager

	client *coach.Client
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp wires the widget components over cfg.Port.
func NewApp(cfg AppConfig) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	allowed := cfg.AllowedOrigins
	if len(allowed) == 0 {
		allowed = channel.DefaultAllowedOrigins
	}

	clientOpts := []coach.ClientOption{coach.WithClientLogger(logger)}
	if cfg.HTTPClient != nil {
		clientOpts = append(clientOpts, coach.WithHTTPClient(cfg.HTTPClient))
	}
	client := coach.NewClient(cfg.BackendURL, tokens, clientOpts...)

	bootOpts := []Option{WithLogger(logger)}
	if cfg.DevFallback {
		bootOpts = append(bootOpts, WithDevFallback(cfg.FallbackDelay), WithDevTokenSource(client))
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Boot:   New(cfg.Port, allowed, tokens, bootOpts...),
		client: client,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	a.Report = report.New(client,
		report.WithLogger(logger),
		report.OnReady(func(r domain.Report) {
			client.UseReport(r.ReportID, r.LeadershipType)
		}),
	)
	a.Chat = conversation.NewManager(client, conversation.WithLogger(logger))

	a.Boot.OnReady(func(sess domain.Session) {
		a.Report.Start(a.ctx, sess)
	})
	a.Boot.OnUpdate(func(sess domain.Session) {
		var reportID string
		if r := a.Report.State().Report; r != nil {
			reportID = r.ReportID
		}
		client.UseReport(reportID, sess.LeadershipType)
	})
	return a
}

// Start begins the handshake.
func (a *App) Start(ctx context.Context) error {
	return a.Boot.Start(ctx)
}

// Ask forwards a question once the session is ready.
func (a *App) Ask(ctx context.Context, question string) error {
	if _, err := a.Boot.Session(); err != nil {
		return err
	}
	return a.Chat.Ask(ctx, question)
}

// Close asks the host to remove the widget and shuts the app down.
func (a *App) Close(ctx context.Context) error {
	err := a.Boot.RequestClose(ctx)
	a.Shutdown()
	return err
}

// Shutdown detaches every component. Late results are discarded.
func (a *App) Shutdown() {
	a.Chat.Close()
	a.Report.Close()
	a.Boot.Teardown()
	a.cancel()
}
