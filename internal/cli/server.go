package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"pubquiz-ledger/internal/app"
	"pubquiz-ledger/internal/config"
	"pubquiz-ledger/internal/infra/memory"
	pgarchive "pubquiz-ledger/internal/infra/postgres"
	redismirror "pubquiz-ledger/internal/infra/redis"
	transport "pubquiz-ledger/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the ledger server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ledger := app.NewLedger()

	var archive app.LedgerArchive
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pg := pgarchive.NewLedgerArchive(pool)
		archive = pg

		state, found, err := pg.LoadState(ctx)
		if err != nil {
			return err
		}
		if found {
			ledger.RestoreState(state)
			log.Printf("restored %d quizzes and %d teams from archive", len(state.Quizzes), len(state.Teams))
		}
	}

	var mirror app.SnapshotMirror = memory.NewSnapshotMirror()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 0)
		mirror = redismirror.NewSnapshotMirror(redisClient, redisTTL)
	}

	service := app.NewLedgerService(ledger, mirror)
	syncManager := app.NewSyncManager(ledger, mirror)

	if cfg.Redis.Addr != "" {
		if err := syncManager.SyncAll(ctx); err != nil {
			log.Printf("initial sync failed: %v", err)
		}
	}

	standingsTTL := config.TTLDuration(cfg.Standings.TTL, 5*time.Second)
	cache := memory.NewStandingsCache(service, standingsTTL)

	wsHandler := transport.NewWSHandler(service)
	restHandler := transport.NewRESTHandler(cache, syncManager)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	restHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting ledger server on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if archive != nil {
		if err := archive.SaveState(shutdownCtx, ledger.ExportState()); err != nil {
			log.Printf("failed to archive ledger: %v", err)
		}
	}
	return server.Shutdown(shutdownCtx)
}
