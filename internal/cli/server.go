package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"quiz-poll-bot/internal/app"
	"quiz-poll-bot/internal/config"
	"quiz-poll-bot/internal/domain"
	"quiz-poll-bot/internal/export"
	"quiz-poll-bot/internal/infra/csvfile"
	"quiz-poll-bot/internal/infra/memory"
	"quiz-poll-bot/internal/infra/postgres"
	redisstore "quiz-poll-bot/internal/infra/redis"
	transport "quiz-poll-bot/internal/transport/http"
	"quiz-poll-bot/internal/transport/telegram"
)

// NewStartCmd builds the CLI subcommand to start the bot and HTTP server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// openSource returns the configured question source: Postgres when a URL is
// set, otherwise the CSV directory.
func openSource(ctx context.Context, cfg config.Config, logger *zap.Logger) (app.QuestionSource, func(), error) {
	if cfg.Postgres.URL == "" {
		return csvfile.NewSource(cfg.Quiz.Dir, logger), func() {}, nil
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewSource(pool), pool.Close, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Telegram.Token == "" {
		return errors.New("telegram token not configured")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
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

	source, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	cacheTTL := config.Duration(cfg.Quiz.CacheTTL, 10*time.Minute)
	var (
		questions app.QuestionSource
		guard     app.SessionGuard
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		questions = redisstore.NewQuestionCache(redisClient, source, cacheTTL, logger)
		guard = redisstore.NewSessionGuard(redisClient, config.Duration(cfg.Redis.TTL, 6*time.Hour), logger)
	} else {
		questions = memory.NewQuestionCache(source, cacheTTL)
		guard = memory.NewSessionGuard()
	}

	engine := app.NewEngine(
		app.WithLogger(logger),
		app.WithDefaultSettings(domain.ChatSettings{
			NegativeMarking: true,
			SummaryDelay:    config.Duration(cfg.Quiz.SummaryDelay, 8*time.Second),
		}),
		app.WithPollRetention(config.Duration(cfg.Quiz.PollRetention, 0)),
	)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	api.Debug = cfg.Telegram.Debug
	logger.Info("authorized on telegram", zap.String("bot", api.Self.UserName))

	orch := app.NewOrchestrator(engine, questions,
		telegram.NewPollSender(api),
		telegram.NewNotifier(api, logger),
		guard,
		app.OrchestratorConfig{
			DelayBetweenPolls: config.Duration(cfg.Quiz.DelayBetweenPolls, time.Second),
			QuestionTimeout:   config.Duration(cfg.Quiz.QuestionTimeout, 0),
		},
		app.WithOrchestratorLogger(logger),
	)

	botOpts := []telegram.BotOption{telegram.WithBotLogger(logger)}
	if cfg.Export.S3Bucket != "" {
		uploader, err := export.NewS3Uploader(ctx, export.S3Config{
			Region:          cfg.Export.S3Region,
			Bucket:          cfg.Export.S3Bucket,
			Prefix:          cfg.Export.S3Prefix,
			AccessKeyID:     cfg.Export.AccessKeyID,
			SecretAccessKey: cfg.Export.SecretAccessKey,
			PresignExpiry:   config.Duration(cfg.Export.PresignExpiry, 15*time.Minute),
		}, logger)
		if err != nil {
			logger.Warn("s3 export disabled", zap.Error(err))
		} else {
			botOpts = append(botOpts, telegram.WithUploader(uploader))
		}
	}
	bot := telegram.NewBot(api, engine, orch, telegram.Config{
		AdminIDs:        cfg.Telegram.AdminIDs,
		LeaderboardSize: cfg.Quiz.LeaderboardSize,
		RandomCounts:    cfg.Quiz.RandomCounts,
		FullExamCounts:  cfg.Quiz.FullExamCounts,
	}, botOpts...)

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(engine, transport.RouterConfig{
			AdminToken:      cfg.Server.AdminToken,
			LeaderboardSize: cfg.Quiz.LeaderboardSize,
		}, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("http server listening", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
