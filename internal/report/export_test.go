package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yourname/habit-bot/internal/domain"
)

func TestWorkbook(t *testing.T) {
	entries := []domain.DailyEntry{
		{
			ID:                    7,
			Date:                  day("2026-10-14"),
			BedtimeBeforeMidnight: true,
			NoGadgetsAfter23:      false,
			FollowedDiet:          true,
			SportHours:            1.5,
			CreatedAt:             time.Date(2026, 10, 15, 5, 4, 3, 0, time.UTC),
		},
	}
	data, err := Workbook(ExportRows(entries))
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][6] != "Дата записи (UTC)" {
		t.Errorf("header = %v", rows[0])
	}
	want := []string{"7", "2026-10-14", "Да", "Нет", "Да", "1.5", "2026-10-15 05:04:03"}
	for i, w := range want {
		if rows[1][i] != w {
			t.Errorf("col %d = %q, want %q", i, rows[1][i], w)
		}
	}
}
