// Link-Coach headless widget: joins a host page through the frame relay,
// persists its session token in SQLite and answers questions read from stdin.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/link-coach/internal/channel"
	"github.com/ashureev/link-coach/internal/config"
	"github.com/ashureev/link-coach/internal/logging"
	"github.com/ashureev/link-coach/internal/report"
	"github.com/ashureev/link-coach/internal/store"
	"github.com/ashureev/link-coach/internal/widget"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.LoadWidget()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.Init(cfg.Log)
	defer func() {
		if err := logCloser.Close(); err != nil {
			slog.Error("Failed to close log file", "error", err)
		}
	}()
	if envErr != nil {
		slog.Info("No .env file found, using environment variables")
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("Widget stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Widget stopped")
}

func run(cfg *config.WidgetConfig, logger *slog.Logger) error {
	tokens, err := store.NewSQLite(cfg.TokenDBPath)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer func() {
		if closeErr := tokens.Close(); closeErr != nil {
			slog.Error("Failed to close token store", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	port, err := channel.DialRelay(dialCtx, cfg.RelayURL, cfg.FrameID, channel.SideWidget, cfg.Origin, logger)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := port.Close(); closeErr != nil {
			slog.Debug("Failed to close relay port", "error", closeErr)
		}
	}()
	slog.Info("Connected to relay", "relay", cfg.RelayURL, "frame", cfg.FrameID)

	app := widget.NewApp(widget.AppConfig{
		Port:           port,
		AllowedOrigins: cfg.HostOrigins,
		BackendURL:     cfg.BackendURL,
		Tokens:         tokens,
		DevFallback:    cfg.DevFallback(),
		FallbackDelay:  cfg.FallbackDelay,
		Logger:         logger,
	})
	defer app.Shutdown()
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start widget: %w", err)
	}

	sess, err := app.Boot.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for session: %w", err)
	}
	slog.Info("Session ready", "user_id", sess.UserID, "leadership_type", sess.LeadershipType)

	st, err := app.Report.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for report: %w", err)
	}
	if st.Status == report.StatusReady && st.Report != nil {
		fmt.Println(st.Report.Interpretation)
	} else {
		slog.Warn("Report unavailable", "error", st.Error)
	}

	questions := make(chan string)
	go func() {
		defer close(questions)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			questions <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return closeWidget(app)
		case <-port.Done():
			slog.Warn("Relay connection lost")
			return nil
		case q, ok := <-questions:
			if !ok {
				return closeWidget(app)
			}
			if err := app.Ask(ctx, q); err != nil {
				slog.Warn("Question not sent", "error", err)
				continue
			}
			msgs := app.Chat.Messages()
			fmt.Println(msgs[len(msgs)-1].Content)
		}
	}
}

func closeWidget(app *widget.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		return fmt.Errorf("request close: %w", err)
	}
	return nil
}
