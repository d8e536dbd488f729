package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bulk-email-sender/config"
	"bulk-email-sender/handlers"
	"bulk-email-sender/logger"
	"bulk-email-sender/middleware"
	"bulk-email-sender/services"

	"github.com/spf13/pflag"
)

func main() {
	config.Init()
	cfg := config.AppConfig

	var (
		addr        string
		templateDir string
		opts        batchOptions
	)
	pflag.StringVar(&addr, "addr", cfg.Server.ListenAddr, "HTTP listen address")
	pflag.StringVar(&templateDir, "templates", "templates", "directory holding index.html and login.html")
	pflag.StringVarP(&opts.CSVPath, "csv", "c", "", "recipient CSV (Name, Email, Status); sends to every pending row and exits")
	pflag.StringVarP(&opts.OutPath, "out", "o", "", "where to write the updated CSV (default: overwrite --csv)")
	pflag.StringVarP(&opts.ReportPath, "report", "r", "", "optional CSV file receiving one line per send attempt")
	pflag.BoolVar(&opts.DryRun, "dry-run", false, "render every pending message without sending")
	pflag.Parse()

	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)
	slog.SetDefault(log)

	emailService, err := services.NewEmailService(cfg.Email, log)
	if err != nil {
		log.Error("load email template", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.CSVPath != "" {
		report, err := runBatch(ctx, emailService, emailService, opts, log)
		if err != nil {
			log.Error("batch failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("%d emails sent successfully, %d failed (of %d pending)\n", report.Sent, report.Failed, report.Total)
		return
	}

	if err := serve(ctx, addr, templateDir, emailService, cfg.Server.Username, cfg.Server.Password, cfg.Server.SessionTTL, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, addr, templateDir string, emailService *services.EmailService,
	username, password string, ttl time.Duration, log *slog.Logger) error {
	if password == "" {
		log.Warn("APP_PASSWORD is empty, logins are disabled")
	}

	workspaces := services.NewWorkspaceStore()
	sessions := middleware.NewSessionManager(username, password, ttl, workspaces.Delete)
	sessions.StartCleanup(ctx, time.Hour)

	wsService := services.NewWebSocketService(log)
	defer wsService.Close()

	handler := handlers.NewHandler(emailService, wsService, sessions, workspaces, templateDir, log)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", addr, "provider", emailService.Config().Provider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
