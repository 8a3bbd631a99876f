package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yourname/habit-bot/internal/domain"
)

// WeekDays is the length of the weekly window, today included.
const WeekDays = 7

// WeekWindow returns the first and last calendar day of the weekly window
// ending at today.
func WeekWindow(today time.Time) (from, to time.Time) {
	to = domain.Day(today)
	return to.AddDate(0, 0, -(WeekDays - 1)), to
}

// Weekly aggregates entries. Duplicate entries for one date all count.
func Weekly(entries []domain.DailyEntry, from, to time.Time) domain.WeeklyStats {
	st := domain.WeeklyStats{From: from, To: to, Entries: len(entries)}
	for _, e := range entries {
		if e.BedtimeBeforeMidnight {
			st.BedtimeCount++
		}
		if e.NoGadgetsAfter23 {
			st.NoGadgetsCount++
		}
		if e.FollowedDiet {
			st.DietCount++
		}
		st.TotalSport += e.SportHours
	}
	if st.Entries > 0 {
		st.AvgSport = round2(st.TotalSport / float64(st.Entries))
	}
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

const textNoWeeklyData = "Нет данных за последние 7 дней."

// FormatWeekly renders stats as the chat reply.
func FormatWeekly(st domain.WeeklyStats) string {
	if st.Entries == 0 {
		return textNoWeeklyData
	}
	var b strings.Builder
	b.WriteString("Статистика за последние 7 дней:\n\n")
	b.WriteString(fmt.Sprintf("Всего записей: %d\n", st.Entries))
	b.WriteString(fmt.Sprintf("1) Легли до 00:00: %d раз(а)\n", st.BedtimeCount))
	b.WriteString(fmt.Sprintf("2) Не использовали гаджеты после 23:00: %d раз(а)\n", st.NoGadgetsCount))
	b.WriteString(fmt.Sprintf("3) Питались по рациону: %d раз(а)\n", st.DietCount))
	b.WriteString(fmt.Sprintf("4) Среднее кол-во часов спорта: %s ч/день\n", strconv.FormatFloat(st.AvgSport, 'f', -1, 64)))
	return b.String()
}
