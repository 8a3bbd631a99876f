package conversation

import (
	"slices"
	"time"

	"github.com/yourname/habit-bot/internal/domain"
)

// PickerDays is how many calendar days the backdated picker offers.
const PickerDays = 7

// DateChoices returns today and the six preceding days in loc, newest
// first, as ISO labels.
func DateChoices(now time.Time, loc *time.Location) []string {
	today := domain.Day(now.In(loc))
	out := make([]string, 0, PickerDays)
	for i := 0; i < PickerDays; i++ {
		out = append(out, today.AddDate(0, 0, -i).Format(domain.DateLayout))
	}
	return out
}

// Yesterday is the target date of a questionnaire started at now.
func Yesterday(now time.Time, loc *time.Location) time.Time {
	return domain.Day(now.In(loc)).AddDate(0, 0, -1)
}

// pick maps a selected label back to a date if it was offered.
func (s AwaitDate) pick(label string) (time.Time, bool) {
	if !slices.Contains(s.Offered, label) {
		return time.Time{}, false
	}
	d, err := time.Parse(domain.DateLayout, label)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
