package domain

import "time"

// DateLayout is the ISO calendar date format used for entry dates,
// date-picker labels and callback payloads.
const DateLayout = "2006-01-02"

type User struct {
	TelegramID int64
	Username   *string
	CreatedAt  time.Time
}

// DailyEntry is one completed questionnaire. Date is the day the answers
// describe, not the day they were submitted.
type DailyEntry struct {
	ID                    int64
	UserID                int64 // telegram id of the owner
	Date                  time.Time
	BedtimeBeforeMidnight bool
	NoGadgetsAfter23      bool
	FollowedDiet          bool
	SportHours            float64
	CreatedAt             time.Time
}

// WeeklyStats is the aggregate over the last seven calendar days.
type WeeklyStats struct {
	From, To       time.Time
	Entries        int
	BedtimeCount   int
	NoGadgetsCount int
	DietCount      int
	TotalSport     float64
	AvgSport       float64 // rounded to 2 decimals
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
