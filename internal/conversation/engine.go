package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yourname/habit-bot/internal/domain"
)

// Keyboard says what the transport should do with the reply keyboard.
type Keyboard int

const (
	KeepKeyboard   Keyboard = iota
	YesNoKeyboard           // да / нет reply keyboard
	RemoveKeyboard          // hide any reply keyboard
	DateKeyboard            // inline picker built from Reply.Dates
)

// Reply is what the engine wants sent back to the user.
type Reply struct {
	Text     string
	Keyboard Keyboard
	Dates    []string // labels for DateKeyboard
	// Done is set when the questionnaire ended, saved or not.
	Done bool
	// Entry is the stored entry when Done and the write succeeded.
	Entry *domain.DailyEntry
}

type EntryWriter interface {
	InsertEntry(ctx context.Context, e domain.DailyEntry) (domain.DailyEntry, error)
}

// CommitListener is told about every stored entry. Errors are logged only.
type CommitListener interface {
	EntryCommitted(ctx context.Context, e domain.DailyEntry) error
}

// Engine runs the questionnaire state machine for every user. Each call
// is one discrete transition; calls for the same user are serialized.
type Engine struct {
	store    EntryWriter
	sessions SessionStore
	listener CommitListener
	log      *log.Logger
	loc      *time.Location
	now      func() time.Time
	locks    *userLocks

	// publishTimeout bounds a listener call, which runs under the user lock.
	publishTimeout time.Duration
}

const defaultPublishTimeout = 2 * time.Second

type Option func(*Engine)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithCommitListener(l CommitListener) Option { return func(e *Engine) { e.listener = l } }

func WithPublishTimeout(d time.Duration) Option { return func(e *Engine) { e.publishTimeout = d } }

func NewEngine(store EntryWriter, sessions SessionStore, loc *time.Location, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		sessions: sessions,
		log:      logger,
		loc:      loc,
		now:      time.Now,
		locks:    newUserLocks(),

		publishTimeout: defaultPublishTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Now is the engine clock in the engine's time zone.
func (e *Engine) Now() time.Time { return e.now().In(e.loc) }

// Today is the current calendar date in the engine's time zone.
func (e *Engine) Today() time.Time { return domain.Day(e.Now()) }

// StartToday opens a questionnaire about yesterday, discarding any
// questionnaire the user already had open.
func (e *Engine) StartToday(ctx context.Context, userID int64) (Reply, error) {
	defer e.locks.lock(userID)()

	t := Target{Flow: FlowToday, Date: Yesterday(e.now(), e.loc)}
	if err := e.sessions.Put(ctx, userID, AwaitBedtime{Target: t}); err != nil {
		return Reply{}, err
	}
	return ask(StageAwaitBedtime, t), nil
}

// PromptToday opens a questionnaire about yesterday and hands the first
// question to deliver while still holding the user's lock. If deliver
// fails the new session is dropped; no other transition for the user can
// run in between.
func (e *Engine) PromptToday(ctx context.Context, userID int64, deliver func(context.Context, Reply) error) error {
	defer e.locks.lock(userID)()

	t := Target{Flow: FlowToday, Date: Yesterday(e.now(), e.loc)}
	if err := e.sessions.Put(ctx, userID, AwaitBedtime{Target: t}); err != nil {
		return err
	}
	if err := deliver(ctx, ask(StageAwaitBedtime, t)); err != nil {
		if derr := e.sessions.Delete(ctx, userID); derr != nil {
			e.log.Warn("drop undelivered session", "user_id", userID, "err", derr)
		}
		return err
	}
	return nil
}

// StartBackdated opens the date picker, discarding any open questionnaire.
func (e *Engine) StartBackdated(ctx context.Context, userID int64) (Reply, error) {
	defer e.locks.lock(userID)()

	dates := DateChoices(e.now(), e.loc)
	if err := e.sessions.Put(ctx, userID, AwaitDate{Offered: dates}); err != nil {
		return Reply{}, err
	}
	return Reply{Text: textPickDate, Keyboard: DateKeyboard, Dates: dates}, nil
}

// SelectDate applies a picker selection. ok is false, with nothing
// changed, when the user is not at the picker or label was not offered.
func (e *Engine) SelectDate(ctx context.Context, userID int64, label string) (Reply, bool, error) {
	defer e.locks.lock(userID)()

	s, err := e.sessions.Get(ctx, userID)
	if errors.Is(err, ErrNoSession) {
		return Reply{}, false, nil
	}
	if err != nil {
		return Reply{}, false, err
	}
	picker, isPicker := s.(AwaitDate)
	if !isPicker {
		return Reply{}, false, nil
	}
	d, ok := picker.pick(label)
	if !ok {
		return Reply{}, false, nil
	}

	t := Target{Flow: FlowBackdated, Date: d}
	if err := e.sessions.Put(ctx, userID, AwaitBedtime{Target: t}); err != nil {
		return Reply{}, false, err
	}
	return ask(StageAwaitBedtime, t), true, nil
}

// Answer feeds one free-text message to the user's open questionnaire.
// It returns ErrNoSession when there is none.
func (e *Engine) Answer(ctx context.Context, userID int64, text string) (Reply, error) {
	defer e.locks.lock(userID)()

	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return Reply{}, err
	}

	var next Session
	switch st := s.(type) {
	case AwaitDate:
		return Reply{Text: textPickWithKeys}, nil

	case AwaitBedtime:
		v, ok := ParseYesNo(text)
		if !ok {
			return ask(st.Stage(), st.Target), nil
		}
		next = AwaitGadgets{Target: st.Target, Bedtime: v}

	case AwaitGadgets:
		used, ok := ParseYesNo(text)
		if !ok {
			return ask(st.Stage(), st.Target), nil
		}
		// The question asks whether gadgets were used; the stored habit is
		// the opposite.
		next = AwaitDiet{Target: st.Target, Bedtime: st.Bedtime, NoGadgets: !used}

	case AwaitDiet:
		v, ok := ParseYesNo(text)
		if !ok {
			return ask(st.Stage(), st.Target), nil
		}
		next = AwaitSport{Target: st.Target, Bedtime: st.Bedtime, NoGadgets: st.NoGadgets, Diet: v}

	case AwaitSport:
		hours, err := ParseHours(text)
		if err != nil {
			return Reply{Text: textEnterNumber}, nil
		}
		return e.commit(ctx, userID, st, hours), nil

	default:
		return Reply{}, fmt.Errorf("unexpected session type %T", s)
	}

	if err := e.sessions.Put(ctx, userID, next); err != nil {
		return Reply{}, err
	}
	return ask(next.Stage(), targetOf(next)), nil
}

// Cancel drops the user's open questionnaire. It reports whether there was one.
func (e *Engine) Cancel(ctx context.Context, userID int64) (bool, error) {
	defer e.locks.lock(userID)()

	if _, err := e.sessions.Get(ctx, userID); err != nil {
		if errors.Is(err, ErrNoSession) {
			return false, nil
		}
		return false, err
	}
	return true, e.sessions.Delete(ctx, userID)
}

// commit writes the entry and always ends the session; a failed write is
// not retried.
func (e *Engine) commit(ctx context.Context, userID int64, s AwaitSport, hours float64) Reply {
	entry := domain.DailyEntry{
		UserID:                userID,
		Date:                  s.Date,
		BedtimeBeforeMidnight: s.Bedtime,
		NoGadgetsAfter23:      s.NoGadgets,
		FollowedDiet:          s.Diet,
		SportHours:            hours,
	}

	saved, err := e.store.InsertEntry(ctx, entry)
	if derr := e.sessions.Delete(ctx, userID); derr != nil {
		e.log.Error("clear session after commit", "user_id", userID, "err", derr)
	}
	if err != nil {
		e.log.Error("save entry", "user_id", userID, "date", s.Label(), "err", err)
		return Reply{Text: textSaveFailed, Keyboard: RemoveKeyboard, Done: true}
	}

	e.log.Info("entry saved", "user_id", userID, "date", s.Label(), "flow", s.Flow)
	if e.listener != nil {
		pctx, cancel := context.WithTimeout(ctx, e.publishTimeout)
		if lerr := e.listener.EntryCommitted(pctx, saved); lerr != nil {
			e.log.Warn("publish entry", "user_id", userID, "err", lerr)
		}
		cancel()
	}
	return Reply{
		Text:     fmt.Sprintf(textSavedTemplate, s.Label()),
		Keyboard: RemoveKeyboard,
		Done:     true,
		Entry:    &saved,
	}
}

func ask(st Stage, t Target) Reply {
	return Reply{Text: prompt(st, t), Keyboard: questionKeyboard(st)}
}

func targetOf(s Session) Target {
	switch v := s.(type) {
	case AwaitBedtime:
		return v.Target
	case AwaitGadgets:
		return v.Target
	case AwaitDiet:
		return v.Target
	case AwaitSport:
		return v.Target
	}
	return Target{}
}
