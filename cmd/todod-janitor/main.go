// The janitor runs the background cleanup jobs that the API server does
// not: purging expired invitations and pruning old audit events. It is
// a separate binary so it can run as a singleton next to a fleet of API
// servers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmhill/demo-todo-sub000/pkg/audit"
	"github.com/jmhill/demo-todo-sub000/pkg/config"
	"github.com/jmhill/demo-todo-sub000/pkg/observability"
	"github.com/jmhill/demo-todo-sub000/pkg/orgs"
	"github.com/jmhill/demo-todo-sub000/pkg/storage/postgres"
)

func main() {
	runOnce := flag.Bool("run-once", false, "run all cleanup jobs once and exit")
	flag.Parse()

	if err := run(*runOnce); err != nil {
		fmt.Fprintf(os.Stderr, "todod-janitor: %v\n", err)
		os.Exit(1)
	}
}

func run(runOnce bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("TODOD_POSTGRES_URL is required")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	orgService := orgs.NewService(orgs.NewPostgresOrganizationStore(db), orgs.NewPostgresMembershipStore(db), nil, nil, logger)
	inviteService := orgs.NewInvitationService(orgs.NewPostgresInvitationStore(db), orgService, nil, nil, cfg.Auth.InvitationTTL)
	auditLogger, err := audit.NewDBLogger(db, logger, nil)
	if err != nil {
		return fmt.Errorf("audit logger: %w", err)
	}

	metrics := observability.NewMetrics()

	purgeInvitations := func() {
		jobCtx, jobCancel := context.WithTimeout(ctx, time.Minute)
		defer jobCancel()

		n, err := inviteService.PurgeExpired(jobCtx)
		if err != nil {
			logger.Error("invitation purge failed", slog.String("error", err.Error()))
			return
		}
		metrics.JanitorPurged.WithLabelValues("invitations").Add(float64(n))
		logger.Info("purged expired invitations", slog.Int("count", n))
	}

	pruneAudit := func() {
		jobCtx, jobCancel := context.WithTimeout(ctx, 5*time.Minute)
		defer jobCancel()

		cutoff := time.Now().UTC().Add(-cfg.Janitor.AuditRetention)
		n, err := auditLogger.DeleteBefore(jobCtx, cutoff)
		if err != nil {
			logger.Error("audit prune failed", slog.String("error", err.Error()))
			return
		}
		metrics.JanitorPurged.WithLabelValues("audit_events").Add(float64(n))
		logger.Info("pruned audit events", slog.Int64("count", n), slog.Time("cutoff", cutoff))
	}

	if runOnce {
		purgeInvitations()
		pruneAudit()
		return nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Janitor.InvitationPurgeSchedule, purgeInvitations); err != nil {
		return fmt.Errorf("schedule invitation purge: %w", err)
	}
	// Audit pruning runs daily, offset from midnight so it does not
	// collide with other batch work.
	if _, err := scheduler.AddFunc("30 3 * * *", pruneAudit); err != nil {
		return fmt.Errorf("schedule audit prune: %w", err)
	}

	health := observability.NewHealth(observability.DBChecker{DB: db})
	opsMux := http.NewServeMux()
	opsMux.HandleFunc("/healthz", health.LivenessHandler())
	opsMux.HandleFunc("/readyz", health.ReadinessHandler())
	opsMux.Handle("/metrics", metrics.Handler())
	opsServer := &http.Server{Addr: cfg.Server.HealthAddr(), Handler: opsMux}
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server failed", slog.String("error", err.Error()))
		}
	}()

	scheduler.Start()
	logger.Info("janitor started",
		slog.String("invitation_schedule", cfg.Janitor.InvitationPurgeSchedule),
		slog.Duration("audit_retention", cfg.Janitor.AuditRetention),
	)

	sig := observability.WaitForSignal(ctx)
	if sig != nil {
		logger.Info("received signal", slog.String("signal", sig.String()))
	}

	<-scheduler.Stop().Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown failed", slog.String("error", err.Error()))
	}
	return nil
}
