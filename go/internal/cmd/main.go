package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/knockouthq/knockout/go/internal/answer"
	"github.com/knockouthq/knockout/go/internal/contest"
	"github.com/knockouthq/knockout/go/internal/dbconfig"
	"github.com/knockouthq/knockout/go/internal/models"
	"github.com/knockouthq/knockout/go/internal/notify"
	"github.com/knockouthq/knockout/go/internal/participant"
	"github.com/knockouthq/knockout/go/internal/question"
	"github.com/knockouthq/knockout/go/internal/realtime"
	"github.com/knockouthq/knockout/go/internal/router"
	"github.com/knockouthq/knockout/go/internal/session"
	"github.com/knockouthq/knockout/go/internal/users"
)

// staticSession is the client's authenticated user for this run.
type staticSession struct {
	userID uuid.UUID
}

func (s staticSession) CurrentUserID() (uuid.UUID, bool) {
	return s.userID, s.userID != uuid.Nil
}

// client ties the engine's snapshots to the navigation guard for whatever
// screen is currently showing.
type client struct {
	contestID uuid.UUID
	nav       *terminalNavigator
	intents   *router.IntentStore
	engine    *session.Engine

	mu    sync.Mutex
	guard *router.Guard
}

// moveTo rebuilds the guard for a newly shown path. Paths outside the
// contest scheme (login, contest list) are unguarded.
func (c *client) moveTo(path string) {
	c.mu.Lock()
	state, _, ok := router.ParsePath(path)
	if ok {
		c.guard = router.NewGuard(state, path, c.nav, c.intents)
	} else {
		c.guard = nil
	}
	c.mu.Unlock()

	if c.engine != nil {
		c.evaluate(c.engine.Snapshot())
	}
}

// evaluate runs the guard against one snapshot and renders when allowed.
func (c *client) evaluate(snap session.Snapshot) {
	c.mu.Lock()
	guard := c.guard
	path := c.nav.CurrentPath()
	c.mu.Unlock()
	if guard == nil {
		return
	}

	in := router.Input{ContestID: c.contestID, State: snap.State, Loading: snap.Loading}
	ev := guard.Decide(in)
	guard.Commit(in, ev)

	if ev.Decision == router.DecisionRender {
		render(path, snap)
	}
}

func main() {
	configPath := flag.String("config", "client.yaml", "client config file")
	contestFlag := flag.String("contest", "", "contest id to join")
	userFlag := flag.String("user", "", "user id to play as")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *contestFlag != "" {
		config.ContestID = *contestFlag
	}
	if *userFlag != "" {
		config.UserID = *userFlag
	}

	userID, err := uuid.Parse(config.UserID)
	if err != nil {
		log.Fatal().Err(err).Msg("a valid user id is required (flag -user or USER_ID)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("create connection pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}

	contests := contest.NewApp(contest.NewRepository(pool))
	participants := participant.NewApp(participant.NewRepository(pool))
	clock := clockwork.NewRealClock()
	questions := question.NewApp(question.NewRepository(pool))
	answers := answer.NewApp(answer.NewRepository(pool), clock)
	accounts := users.NewApp(users.NewRepository(pool))

	user, err := accounts.GetUser(ctx, userID)
	if err != nil {
		log.Fatal().Err(err).Msg("look up user")
	}
	if user == nil {
		log.Fatal().Str("user_id", userID.String()).Msg("unknown user")
	}
	log.Info().Str("username", user.Username).Msg("signed in")

	contestID, err := resolveContest(ctx, contests, config.ContestID)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve contest")
	}

	feed, closeFeed, err := buildFeed(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("connect change feed")
	}
	defer closeFeed()

	intents := router.NewIntentStore(clock)
	lobbyPath, _ := router.PathFor(models.PlayerStateLobby, contestID)

	c := &client{contestID: contestID, intents: intents}
	c.nav = newTerminalNavigator(lobbyPath, c.moveTo)

	engine := session.NewEngine(session.Deps{
		Contests:     contests,
		Participants: participants,
		Questions:    questions,
		Answers:      answers,
		Feed:         feed,
		Clock:        clock,
	}, contestID, userID, func(snap session.Snapshot) {
		c.evaluate(snap)
	})
	c.engine = engine
	defer engine.Close()

	observer := notify.NewObserver(c.nav, intents, staticSession{userID: userID}, participants)

	if err := engine.Load(ctx); err != nil {
		log.Error().Err(err).Msg("initial load failed, retry with 'r'")
	}
	if err := engine.AttachSubscriptions(ctx); err != nil {
		log.Fatal().Err(err).Msg("attach subscriptions")
	}

	c.moveTo(lobbyPath)

	fmt.Println("commands: option key to answer, r refresh, tap <url> simulate notification, q quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "q":
			return
		case line == "r":
			if err := engine.Refresh(ctx); err != nil {
				log.Error().Err(err).Msg("refresh failed")
			}
			if err := engine.EnsureParticipantSubs(ctx); err != nil {
				log.Error().Err(err).Msg("re-attach participant subscriptions")
			}
		case strings.HasPrefix(line, "tap "):
			target := strings.TrimSpace(strings.TrimPrefix(line, "tap "))
			note := notify.Notification{Identifier: uuid.NewString(), TargetURL: target}
			if err := observer.HandleTap(ctx, note); err != nil {
				log.Error().Err(err).Msg("notification tap failed")
			}
		default:
			if err := engine.Submit(ctx, strings.ToUpper(line)); err != nil {
				fmt.Printf("cannot submit: %v\n", err)
			}
		}
	}
}

// resolveContest parses the configured contest id, or falls back to the
// first open contest.
func resolveContest(ctx context.Context, contests *contest.App, configured string) (uuid.UUID, error) {
	if configured != "" {
		id, err := uuid.Parse(configured)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid contest id %q: %w", configured, err)
		}
		return id, nil
	}

	open, err := contests.ListOpenContests(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("list open contests: %w", err)
	}
	if len(open) == 0 {
		return uuid.Nil, fmt.Errorf("no open contests to join")
	}
	log.Info().Str("contest_id", open[0].ID.String()).Str("name", open[0].Name).Msg("joining first open contest")
	return open[0].ID, nil
}

func buildFeed(ctx context.Context, config *Config) (realtime.Feed, func(), error) {
	switch config.Feed.Transport {
	case "nats":
		feedCfg := realtime.DefaultNATSFeedConfig()
		if config.Feed.NATSURL != "" {
			feedCfg.URL = config.Feed.NATSURL
		}
		feed, err := realtime.NewNATSFeed(ctx, feedCfg)
		if err != nil {
			return nil, nil, err
		}
		return feed, feed.Close, nil
	case "websocket":
		feedCfg := realtime.DefaultWebSocketFeedConfig()
		if config.Feed.WebSocketURL != "" {
			feedCfg.URL = config.Feed.WebSocketURL
		}
		feed, err := realtime.NewWebSocketFeed(ctx, feedCfg)
		if err != nil {
			return nil, nil, err
		}
		return feed, feed.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown feed transport %q", config.Feed.Transport)
	}
}
