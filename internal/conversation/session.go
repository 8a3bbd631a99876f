package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourname/habit-bot/internal/domain"
)

var ErrNoSession = errors.New("no active questionnaire")

// Flow tells how the target date of a questionnaire was chosen.
type Flow string

const (
	FlowToday     Flow = "today"     // fixed to yesterday at start
	FlowBackdated Flow = "backdated" // picked from the date selector
)

type Stage string

const (
	StageAwaitDate    Stage = "await_date"
	StageAwaitBedtime Stage = "await_bedtime"
	StageAwaitGadgets Stage = "await_gadgets"
	StageAwaitDiet    Stage = "await_diet"
	StageAwaitSport   Stage = "await_sport"
)

// Session is the in-progress state of one user's questionnaire. Each stage
// is its own type and carries only the answers collected before it.
type Session interface {
	Stage() Stage
	session()
}

// Target is shared by every stage after the date is known.
type Target struct {
	Flow Flow
	Date time.Time
}

// Label is the ISO form of the target date.
func (t Target) Label() string { return t.Date.Format(domain.DateLayout) }

type AwaitDate struct {
	Offered []string // ISO labels shown on the picker, newest first
}

type AwaitBedtime struct {
	Target
}

type AwaitGadgets struct {
	Target
	Bedtime bool
}

type AwaitDiet struct {
	Target
	Bedtime   bool
	NoGadgets bool
}

type AwaitSport struct {
	Target
	Bedtime   bool
	NoGadgets bool
	Diet      bool
}

func (AwaitDate) Stage() Stage    { return StageAwaitDate }
func (AwaitBedtime) Stage() Stage { return StageAwaitBedtime }
func (AwaitGadgets) Stage() Stage { return StageAwaitGadgets }
func (AwaitDiet) Stage() Stage    { return StageAwaitDiet }
func (AwaitSport) Stage() Stage   { return StageAwaitSport }

func (AwaitDate) session()    {}
func (AwaitBedtime) session() {}
func (AwaitGadgets) session() {}
func (AwaitDiet) session()    {}
func (AwaitSport) session()   {}

// record is the flat wire form of a Session for stores that serialize.
type record struct {
	Stage     Stage    `json:"stage"`
	Flow      Flow     `json:"flow,omitempty"`
	Date      string   `json:"date,omitempty"`
	Offered   []string `json:"offered,omitempty"`
	Bedtime   *bool    `json:"bedtime,omitempty"`
	NoGadgets *bool    `json:"no_gadgets,omitempty"`
	Diet      *bool    `json:"diet,omitempty"`
}

func encodeSession(s Session) record {
	ptr := func(b bool) *bool { return &b }
	target := func(t Target) record {
		return record{Flow: t.Flow, Date: t.Label()}
	}

	var r record
	switch v := s.(type) {
	case AwaitDate:
		r = record{Flow: FlowBackdated, Offered: v.Offered}
	case AwaitBedtime:
		r = target(v.Target)
	case AwaitGadgets:
		r = target(v.Target)
		r.Bedtime = ptr(v.Bedtime)
	case AwaitDiet:
		r = target(v.Target)
		r.Bedtime, r.NoGadgets = ptr(v.Bedtime), ptr(v.NoGadgets)
	case AwaitSport:
		r = target(v.Target)
		r.Bedtime, r.NoGadgets, r.Diet = ptr(v.Bedtime), ptr(v.NoGadgets), ptr(v.Diet)
	}
	r.Stage = s.Stage()
	return r
}

func decodeSession(r record) (Session, error) {
	if r.Stage == StageAwaitDate {
		return AwaitDate{Offered: r.Offered}, nil
	}

	d, err := time.Parse(domain.DateLayout, r.Date)
	if err != nil {
		return nil, fmt.Errorf("session %s: bad date %q: %w", r.Stage, r.Date, err)
	}
	t := Target{Flow: r.Flow, Date: d}

	need := func(name string, b *bool) (bool, error) {
		if b == nil {
			return false, fmt.Errorf("session %s: missing %s", r.Stage, name)
		}
		return *b, nil
	}

	switch r.Stage {
	case StageAwaitBedtime:
		return AwaitBedtime{Target: t}, nil
	case StageAwaitGadgets:
		bed, err := need("bedtime", r.Bedtime)
		if err != nil {
			return nil, err
		}
		return AwaitGadgets{Target: t, Bedtime: bed}, nil
	case StageAwaitDiet:
		bed, err := need("bedtime", r.Bedtime)
		if err != nil {
			return nil, err
		}
		ng, err := need("no_gadgets", r.NoGadgets)
		if err != nil {
			return nil, err
		}
		return AwaitDiet{Target: t, Bedtime: bed, NoGadgets: ng}, nil
	case StageAwaitSport:
		bed, err := need("bedtime", r.Bedtime)
		if err != nil {
			return nil, err
		}
		ng, err := need("no_gadgets", r.NoGadgets)
		if err != nil {
			return nil, err
		}
		diet, err := need("diet", r.Diet)
		if err != nil {
			return nil, err
		}
		return AwaitSport{Target: t, Bedtime: bed, NoGadgets: ng, Diet: diet}, nil
	}
	return nil, fmt.Errorf("unknown session stage %q", r.Stage)
}
