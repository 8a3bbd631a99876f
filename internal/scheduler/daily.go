package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/yourname/habit-bot/internal/config"
	"github.com/yourname/habit-bot/internal/conversation"
	"github.com/yourname/habit-bot/internal/domain"
)

const greeting = "Доброе утро! Самое время внести данные за вчера.\n"

type UserLister interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Starter opens questionnaires. *conversation.Engine implements it.
type Starter interface {
	PromptToday(ctx context.Context, userID int64, deliver func(context.Context, conversation.Reply) error) error
}

// Notifier delivers a reply to a user outside of any inbound update.
type Notifier interface {
	Notify(ctx context.Context, userID int64, r conversation.Reply) error
}

// Summary describes one fan-out run.
type Summary struct {
	RunID     string
	Attempted int
	Delivered int
	Failed    int
}

// Daily fires once per cron occurrence and opens a "today" questionnaire
// for every registered user. Missed occurrences are not replayed.
type Daily struct {
	users       UserLister
	engine      Starter
	notifier    Notifier
	log         *log.Logger
	cron        *cron.Cron
	spec        string
	concurrency int
	timeout     time.Duration
}

func NewDaily(cfg config.SchedulerConfig, loc *time.Location, users UserLister, engine Starter, notifier Notifier, logger *log.Logger) *Daily {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Daily{
		users:    users,
		engine:   engine,
		notifier: notifier,
		log:      logger,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		spec:        cfg.Spec,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

func (d *Daily) Start() error {
	_, err := d.cron.AddFunc(d.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if _, err := d.RunOnce(ctx); err != nil {
			d.log.Error("daily prompt run", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	d.cron.Start()
	d.log.Info("daily prompt scheduled", "spec", d.spec, "tz", d.cron.Location())
	return nil
}

// Stop waits for a running fan-out to finish.
func (d *Daily) Stop() {
	<-d.cron.Stop().Done()
	d.log.Info("daily prompt stopped")
}

// RunOnce performs one fan-out. Per-user failures are logged and counted;
// only failing to list users aborts the run.
func (d *Daily) RunOnce(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	logger := d.log.With("run_id", sum.RunID)

	users, err := d.users.ListUsers(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to list users: %w", err)
	}
	sum.Attempted = len(users)

	var delivered, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, u := range users {
		g.Go(func() error {
			if err := d.promptUser(gctx, u.TelegramID); err != nil {
				failed.Add(1)
				logger.Warn("daily prompt failed", "user_id", u.TelegramID, "err", err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	sum.Delivered = int(delivered.Load())
	sum.Failed = int(failed.Load())
	logger.Info("daily prompt run finished", "users", sum.Attempted, "delivered", sum.Delivered, "failed", sum.Failed)
	return sum, nil
}

func (d *Daily) promptUser(ctx context.Context, userID int64) error {
	// An undelivered prompt is withdrawn so it cannot capture the user's
	// next message.
	return d.engine.PromptToday(ctx, userID, func(ctx context.Context, r conversation.Reply) error {
		r.Text = greeting + r.Text
		if err := d.notifier.Notify(ctx, userID, r); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return nil
	})
}
