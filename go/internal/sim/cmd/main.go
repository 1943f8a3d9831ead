package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/knockouthq/knockout/go/internal/answer"
	"github.com/knockouthq/knockout/go/internal/contest"
	"github.com/knockouthq/knockout/go/internal/dbconfig"
	"github.com/knockouthq/knockout/go/internal/outbox"
	"github.com/knockouthq/knockout/go/internal/participant"
	"github.com/knockouthq/knockout/go/internal/question"
	"github.com/knockouthq/knockout/go/internal/sim"
)

func main() {
	scriptPath := flag.String("script", "contest.yaml", "contest script to run")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	script, err := sim.LoadScript(*scriptPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *scriptPath).Msg("load contest script")
	}

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("create connection pool")
	}
	defer pool.Close()
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	contests := contest.NewApp(contest.NewRepository(pool))
	participants := participant.NewApp(participant.NewRepository(pool))
	clock := clockwork.NewRealClock()
	questions := question.NewApp(question.NewRepository(pool))
	answers := answer.NewApp(answer.NewRepository(pool), clock)

	hub := sim.NewHub(sim.DefaultHubConfig())
	server := sim.NewServer(getEnv("SIM_PORT", "8091"), hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Entity changes flow through the contest outbox. Mode "inline" relays the
	// rows to the websocket hub in process; "external" leaves the draining to
	// the standalone relay daemon; "direct" skips the outbox and feeds the hub
	// straight from the simulator.
	relayMode := getEnv("SIM_RELAY", "inline")
	var emitter sim.Emitter
	switch relayMode {
	case "direct":
		emitter = sim.NewSinkEmitter(hub, nil)
	case "inline", "external":
		db, err := sql.Open("postgres", cfg.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("open outbox database")
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("ping outbox database")
		}
		repo := outbox.NewRepository(db)
		emitter = outbox.NewEmitter(db, repo)

		if relayMode == "inline" {
			ltCfg := outbox.DefaultListenerConfig()
			ltCfg.DatabaseURL = cfg.DSN()
			relay, err := outbox.NewListener(repo, outbox.NewFeedPublisher(hub), ltCfg)
			if err != nil {
				log.Fatal().Err(err).Msg("start outbox relay")
			}
			go func() {
				if err := relay.Start(ctx); err != nil {
					log.Error().Err(err).Msg("outbox relay exited")
				}
			}()
		}
	default:
		log.Fatal().Str("mode", relayMode).Msg("unknown SIM_RELAY mode")
	}
	log.Info().Str("mode", relayMode).Msg("change relay configured")

	created, err := contests.CreateContest(context.Background(), contest.CreateContestRequest{
		Name:      script.Name,
		StartTime: time.Now().Add(time.Duration(script.LobbyDuration)),
		Price:     script.Price,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create contest")
	}
	log.Info().
		Str("contest_id", created.ID.String()).
		Str("name", created.Name).
		Msg("contest created")

	simulator := sim.NewSimulator(
		contests,
		questions,
		participants,
		answers,
		emitter,
		clock,
		script.Config(),
	)

	go hub.Run(ctx)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting change feed server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("change feed server exited")
			stop()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- simulator.Run(ctx, created.ID)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("simulation ended with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("graceful shutdown complete")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
