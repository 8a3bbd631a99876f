package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/yourname/habit-bot/internal/bot"
	"github.com/yourname/habit-bot/internal/config"
	"github.com/yourname/habit-bot/internal/conversation"
	"github.com/yourname/habit-bot/internal/db"
	"github.com/yourname/habit-bot/internal/events"
	"github.com/yourname/habit-bot/internal/logger"
	"github.com/yourname/habit-bot/internal/repo"
	"github.com/yourname/habit-bot/internal/scheduler"
	"github.com/yourname/habit-bot/migrations"
)

var cli struct {
	Config      string `help:"Path to the YAML config file." default:"config/base.yaml" env:"CONFIG_PATH"`
	MigrateOnly bool   `help:"Apply database migrations and exit."`
	PromptNow   bool   `help:"Send the daily prompt to every user once and exit."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("habitbot"),
		kong.Description("Telegram bot that collects daily habit check-ins."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatal("load config", "err", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", "err", err)
	}
	loc, _ := cfg.Location()

	lg := logger.New(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		lg.Fatal("database", "driver", cfg.Database.Driver, "err", err)
	}
	defer closeStore()
	if cli.MigrateOnly {
		lg.Info("migrations applied")
		return
	}

	sessions, err := openSessions(ctx, cfg)
	if err != nil {
		lg.Fatal("sessions", "backend", cfg.Sessions.Backend, "err", err)
	}

	var opts []conversation.Option
	if cfg.Kafka.Enabled {
		pub := events.NewKafka(cfg.Kafka)
		defer pub.Close()
		opts = append(opts, conversation.WithCommitListener(pub))
		lg.Info("publishing entries", "topic", cfg.Kafka.Topic)
	}
	engine := conversation.NewEngine(store, sessions, loc, lg.WithPrefix("conversation"), opts...)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		lg.Fatal("bot init", "err", err)
	}
	botAPI.Debug = cfg.Telegram.Debug

	h := bot.NewHandler(botAPI, store, engine, lg.WithPrefix("bot"))
	daily := scheduler.NewDaily(cfg.Scheduler, loc, store, engine, h, lg.WithPrefix("scheduler"))

	if cli.PromptNow {
		sum, err := daily.RunOnce(ctx)
		if err != nil {
			lg.Fatal("daily prompt", "err", err)
		}
		fmt.Printf("run %s: %d users, %d delivered, %d failed\n", sum.RunID, sum.Attempted, sum.Delivered, sum.Failed)
		return
	}

	if cfg.Scheduler.Enabled {
		if err := daily.Start(); err != nil {
			lg.Fatal("scheduler", "err", err)
		}
		defer daily.Stop()
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Telegram.PollTimeout
	updates := botAPI.GetUpdatesChan(u)

	lg.Info("bot started", "username", botAPI.Self.UserName, "tz", loc)

	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			lg.Info("shutdown")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (repo.Store, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.ApplySQLiteMigrations(ctx, conn, migrations.SQLite()); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		return repo.NewSQLite(conn), func() { conn.Close() }, nil
	default:
		pool := db.MustConnect(ctx, cfg.URL)
		if err := db.ApplyMigrations(ctx, pool, migrations.Postgres()); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		return repo.NewPostgres(pool), pool.Close, nil
	}
}

func openSessions(ctx context.Context, cfg *config.Config) (conversation.SessionStore, error) {
	if cfg.Sessions.Backend != "redis" {
		return conversation.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
	}
	return conversation.NewRedisStore(client, cfg.Sessions.TTL), nil
}
