package conversation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yourname/habit-bot/internal/domain"
)

type fakeEntries struct {
	mu      sync.Mutex
	entries []domain.DailyEntry
	fail    error
}

func (f *fakeEntries) InsertEntry(_ context.Context, e domain.DailyEntry) (domain.DailyEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return domain.DailyEntry{}, f.fail
	}
	e.ID = int64(len(f.entries) + 1)
	e.CreatedAt = time.Now()
	f.entries = append(f.entries, e)
	return e, nil
}

type recordingListener struct{ got []domain.DailyEntry }

func (r *recordingListener) EntryCommitted(_ context.Context, e domain.DailyEntry) error {
	r.got = append(r.got, e)
	return nil
}

var moscow = time.FixedZone("MSK", 3*60*60)

// 2026-10-15 10:00 in Moscow.
var fixedNow = time.Date(2026, 10, 15, 7, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeEntries, *MemoryStore) {
	t.Helper()
	store := &fakeEntries{}
	sessions := NewMemoryStore()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewEngine(store, sessions, moscow, log.New(io.Discard), opts...), store, sessions
}

func answerAll(t *testing.T, e *Engine, user int64, answers ...string) Reply {
	t.Helper()
	var r Reply
	for _, a := range answers {
		var err error
		r, err = e.Answer(context.Background(), user, a)
		if err != nil {
			t.Fatalf("Answer(%q): %v", a, err)
		}
	}
	return r
}

func TestTodayFlow_CommitsYesterday(t *testing.T) {
	e, store, sessions := newTestEngine(t)
	ctx := context.Background()

	r, err := e.StartToday(ctx, 1)
	if err != nil {
		t.Fatalf("StartToday: %v", err)
	}
	if !strings.Contains(r.Text, "до 00:00") || r.Keyboard != YesNoKeyboard {
		t.Fatalf("first prompt = %+v", r)
	}

	r = answerAll(t, e, 1, "yes", "no", "yes", "1.5")
	if !r.Done || r.Entry == nil {
		t.Fatalf("expected commit, got %+v", r)
	}
	if len(store.entries) != 1 {
		t.Fatalf("stored %d entries, want 1", len(store.entries))
	}
	got := store.entries[0]
	if d := got.Date.Format(domain.DateLayout); d != "2026-10-14" {
		t.Errorf("date = %s, want 2026-10-14", d)
	}
	if !got.BedtimeBeforeMidnight || !got.NoGadgetsAfter23 || !got.FollowedDiet || got.SportHours != 1.5 {
		t.Errorf("entry = %+v", got)
	}
	if got.UserID != 1 {
		t.Errorf("user = %d", got.UserID)
	}
	if !strings.Contains(r.Text, "2026-10-14") {
		t.Errorf("confirmation %q does not name the date", r.Text)
	}
	if sessions.Len() != 0 {
		t.Error("session not cleared after commit")
	}
}

func TestYesNo_AcceptsVariantsAndAdvancesOneStage(t *testing.T) {
	for _, in := range []string{"yes", " YES ", "Да", "да\n", "y", "no", "Нет", "  NO", "n"} {
		e, _, sessions := newTestEngine(t)
		ctx := context.Background()
		if _, err := e.StartToday(ctx, 1); err != nil {
			t.Fatal(err)
		}
		if _, err := e.Answer(ctx, 1, in); err != nil {
			t.Fatalf("Answer(%q): %v", in, err)
		}
		s, _ := sessions.Get(ctx, 1)
		g, ok := s.(AwaitGadgets)
		if !ok {
			t.Fatalf("%q: stage = %s, want await_gadgets", in, s.Stage())
		}
		want, _ := ParseYesNo(in)
		if g.Bedtime != want {
			t.Errorf("%q: bedtime = %v, want %v", in, g.Bedtime, want)
		}
	}
}

func TestYesNo_RejectsOtherInputUnchanged(t *testing.T) {
	e, _, sessions := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.StartToday(ctx, 1); err != nil {
		t.Fatal(err)
	}
	answerAll(t, e, 1, "да") // now at gadgets with bedtime=true
	before, _ := sessions.Get(ctx, 1)
	wantPrompt := prompt(StageAwaitGadgets, before.(AwaitGadgets).Target)

	for _, in := range []string{"", "maybe", "yes please", "1", "дада", "ye s"} {
		r, err := e.Answer(ctx, 1, in)
		if err != nil {
			t.Fatalf("Answer(%q): %v", in, err)
		}
		if r.Text != wantPrompt {
			t.Errorf("%q: reply %q, want the same prompt %q", in, r.Text, wantPrompt)
		}
		after, _ := sessions.Get(ctx, 1)
		if after != before {
			t.Errorf("%q: session changed from %+v to %+v", in, before, after)
		}
	}
}

func TestGadgetAnswerIsNegated(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.StartToday(ctx, 1); err != nil {
		t.Fatal(err)
	}
	answerAll(t, e, 1, "нет", "да", "нет", "0")
	got := store.entries[0]
	if got.BedtimeBeforeMidnight || got.NoGadgetsAfter23 || got.FollowedDiet {
		t.Errorf("entry = %+v, want all false", got)
	}
}

func TestSport_ParsesBothSeparators(t *testing.T) {
	cases := map[string]float64{
		"1.5":   1.5,
		"2,25":  2.25,
		" 3 ":   3,
		"0":     0,
		"-1":    -1,
		"100,0": 100,
	}
	for in, want := range cases {
		e, store, _ := newTestEngine(t)
		if _, err := e.StartToday(context.Background(), 1); err != nil {
			t.Fatal(err)
		}
		r := answerAll(t, e, 1, "yes", "yes", "yes", in)
		if !r.Done || len(store.entries) != 1 {
			t.Fatalf("%q: no commit (%+v)", in, r)
		}
		if store.entries[0].SportHours != want {
			t.Errorf("%q: hours = %v, want %v", in, store.entries[0].SportHours, want)
		}
	}
}

func TestSport_RejectsNonNumbers(t *testing.T) {
	e, store, sessions := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.StartToday(ctx, 1); err != nil {
		t.Fatal(err)
	}
	answerAll(t, e, 1, "yes", "yes", "yes")
	before, _ := sessions.Get(ctx, 1)

	for _, in := range []string{"", "abc", "1.5h", "1,5,3", "NaN", "inf", "полтора"} {
		r, err := e.Answer(ctx, 1, in)
		if err != nil {
			t.Fatalf("Answer(%q): %v", in, err)
		}
		if r.Done || r.Text != textEnterNumber {
			t.Errorf("%q: reply = %+v", in, r)
		}
	}
	if len(store.entries) != 0 {
		t.Fatalf("entries written: %d", len(store.entries))
	}
	if after, _ := sessions.Get(ctx, 1); after != before {
		t.Errorf("session changed: %+v", after)
	}
}

func TestRestartDiscardsPartialAnswers(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.StartToday(ctx, 1); err != nil {
		t.Fatal(err)
	}
	answerAll(t, e, 1, "yes", "no", "yes") // bedtime, no-gadgets, diet all true

	if _, err := e.StartToday(ctx, 1); err != nil {
		t.Fatal(err)
	}
	r := answerAll(t, e, 1, "no")
	if !strings.Contains(r.Text, "гаджеты") {
		t.Fatalf("restart did not begin at the first question: %q", r.Text)
	}
	answerAll(t, e, 1, "yes", "no", "2")

	if len(store.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(store.entries))
	}
	got := store.entries[0]
	if got.BedtimeBeforeMidnight || got.NoGadgetsAfter23 || got.FollowedDiet || got.SportHours != 2 {
		t.Errorf("stale answers leaked: %+v", got)
	}
}

func TestBackdatedFlow(t *testing.T) {
	e, store, sessions := newTestEngine(t)
	ctx := context.Background()

	r, err := e.StartBackdated(ctx, 5)
	if err != nil {
		t.Fatalf("StartBackdated: %v", err)
	}
	if r.Keyboard != DateKeyboard || len(r.Dates) != 7 {
		t.Fatalf("picker reply = %+v", r)
	}
	if r.Dates[0] != "2026-10-15" || r.Dates[6] != "2026-10-09" {
		t.Errorf("dates = %v", r.Dates)
	}

	// Free text does not advance the picker.
	r, err = e.Answer(ctx, 5, "2026-10-12")
	if err != nil {
		t.Fatal(err)
	}
	if r.Text != textPickWithKeys {
		t.Errorf("free text reply = %q", r.Text)
	}

	for _, bad := range []string{"2026-10-08", "2026-10-16", "garbage", ""} {
		_, ok, err := e.SelectDate(ctx, 5, bad)
		if err != nil || ok {
			t.Errorf("SelectDate(%q) = ok %v err %v", bad, ok, err)
		}
	}
	if s, _ := sessions.Get(ctx, 5); s.Stage() != StageAwaitDate {
		t.Fatalf("stage = %s after invalid selections", s.Stage())
	}

	r, ok, err := e.SelectDate(ctx, 5, "2026-10-12")
	if err != nil || !ok {
		t.Fatalf("SelectDate valid: ok %v err %v", ok, err)
	}
	if !strings.Contains(r.Text, "2026-10-12") {
		t.Errorf("prompt %q does not mention the date", r.Text)
	}

	// The picker is single use.
	if _, ok, _ := e.SelectDate(ctx, 5, "2026-10-13"); ok {
		t.Error("second selection accepted")
	}

	r = answerAll(t, e, 5, "да", "да", "да", "0,5")
	if !r.Done {
		t.Fatalf("no commit: %+v", r)
	}
	got := store.entries[0]
	if d := got.Date.Format(domain.DateLayout); d != "2026-10-12" {
		t.Errorf("date = %s", d)
	}
	if !got.BedtimeBeforeMidnight || got.NoGadgetsAfter23 || !got.FollowedDiet || got.SportHours != 0.5 {
		t.Errorf("entry = %+v", got)
	}
}

func TestSelectDate_WithoutPicker(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	if _, ok, err := e.SelectDate(ctx, 9, "2026-10-15"); ok || err != nil {
		t.Errorf("no session: ok %v err %v", ok, err)
	}
	if _, err := e.StartToday(ctx, 9); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := e.SelectDate(ctx, 9, "2026-10-15"); ok || err != nil {
		t.Errorf("today flow: ok %v err %v", ok, err)
	}
}

func TestCommit_StoreFailureClearsSession(t *testing.T) {
	e, store, sessions := newTestEngine(t)
	store.fail = errors.New("db down")
	ctx := context.Background()
	if _, err := e.StartToday(ctx, 1); err != nil {
		t.Fatal(err)
	}
	r := answerAll(t, e, 1, "yes", "yes", "yes", "1")
	if !r.Done || r.Entry != nil || r.Text != textSaveFailed {
		t.Fatalf("reply = %+v", r)
	}
	if sessions.Len() != 0 {
		t.Error("session kept after failed write")
	}
	if _, err := e.Answer(ctx, 1, "yes"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Answer after abandon: %v, want ErrNoSession", err)
	}
}

func TestAnswer_NoSession(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Answer(context.Background(), 1, "yes"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestCancel(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()
	if had, err := e.Cancel(ctx, 1); had || err != nil {
		t.Fatalf("Cancel without session = %v, %v", had, err)
	}
	if _, err := e.StartToday(ctx, 1); err != nil {
		t.Fatal(err)
	}
	answerAll(t, e, 1, "yes", "yes")
	if had, err := e.Cancel(ctx, 1); !had || err != nil {
		t.Fatalf("Cancel = %v, %v", had, err)
	}
	if _, err := e.Answer(ctx, 1, "yes"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Answer after cancel: %v", err)
	}
	if len(store.entries) != 0 {
		t.Error("cancel wrote an entry")
	}
}

func TestCommitListener(t *testing.T) {
	l := &recordingListener{}
	e, _, _ := newTestEngine(t, WithCommitListener(l))
	ctx := context.Background()
	if _, err := e.StartToday(ctx, 3); err != nil {
		t.Fatal(err)
	}
	answerAll(t, e, 3, "yes", "yes", "yes", "1")
	if len(l.got) != 1 || l.got[0].UserID != 3 || l.got[0].ID == 0 {
		t.Fatalf("listener got %+v", l.got)
	}
}

func TestUsersAreIndependent(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := int64(1); u <= 20; u++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			if _, err := e.StartToday(ctx, u); err != nil {
				t.Error(err)
				return
			}
			bed := "no"
			if u%2 == 0 {
				bed = "yes"
			}
			for _, a := range []string{bed, "no", "yes", "1"} {
				if _, err := e.Answer(ctx, u, a); err != nil {
					t.Error(err)
					return
				}
			}
		}(u)
	}
	wg.Wait()

	if len(store.entries) != 20 {
		t.Fatalf("entries = %d, want 20", len(store.entries))
	}
	for _, en := range store.entries {
		if en.BedtimeBeforeMidnight != (en.UserID%2 == 0) {
			t.Errorf("user %d got bedtime %v", en.UserID, en.BedtimeBeforeMidnight)
		}
	}
}

// stuckListener never finishes on its own, like a publish to an
// unreachable broker.
type stuckListener struct{}

func (stuckListener) EntryCommitted(ctx context.Context, _ domain.DailyEntry) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCommit_SlowListenerIsBounded(t *testing.T) {
	e, store, _ := newTestEngine(t,
		WithCommitListener(stuckListener{}),
		WithPublishTimeout(20*time.Millisecond))
	ctx := context.Background()
	if _, err := e.StartToday(ctx, 1); err != nil {
		t.Fatal(err)
	}
	answerAll(t, e, 1, "yes", "yes", "yes")

	done := make(chan Reply, 1)
	go func() {
		r, err := e.Answer(ctx, 1, "1.5")
		if err != nil {
			t.Error(err)
		}
		done <- r
	}()

	select {
	case r := <-done:
		if !r.Done || r.Entry == nil {
			t.Errorf("reply = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Answer blocked on the commit listener")
	}
	if len(store.entries) != 1 {
		t.Errorf("entries = %d", len(store.entries))
	}

	// other users are not held up
	if _, err := e.StartToday(ctx, 2); err != nil {
		t.Fatal(err)
	}
}

func TestPromptToday(t *testing.T) {
	e, _, sessions := newTestEngine(t)
	ctx := context.Background()

	var got Reply
	if err := e.PromptToday(ctx, 1, func(_ context.Context, r Reply) error {
		got = r
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if got.Text != "Легли ли вы вчера до 00:00? (да/нет)" || got.Keyboard != YesNoKeyboard {
		t.Errorf("delivered %+v", got)
	}
	if _, err := e.Answer(ctx, 1, "yes"); err != nil {
		t.Errorf("session not opened: %v", err)
	}

	sendErr := errors.New("blocked")
	if err := e.PromptToday(ctx, 2, func(context.Context, Reply) error { return sendErr }); !errors.Is(err, sendErr) {
		t.Fatalf("err = %v", err)
	}
	if _, err := sessions.Get(ctx, 2); !errors.Is(err, ErrNoSession) {
		t.Errorf("undelivered session kept: %v", err)
	}
}
