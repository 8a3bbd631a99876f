package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yourname/habit-bot/internal/domain"
)

const exportSheet = "Habit Logs"

var exportHeader = []any{
	"ID",
	"Дата",
	"Лёг до 00:00",
	"Не использовал гаджеты после 23:00",
	"Питался по рациону",
	"Часы спорта",
	"Дата записи (UTC)",
}

// ExportRows turns entries into table rows, one per entry, header excluded.
func ExportRows(entries []domain.DailyEntry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{
			e.ID,
			e.Date.Format(domain.DateLayout),
			yesNo(e.BedtimeBeforeMidnight),
			yesNo(e.NoGadgetsAfter23),
			yesNo(e.FollowedDiet),
			strconv.FormatFloat(e.SportHours, 'f', -1, 64),
			e.CreatedAt.UTC().Format(time.DateTime),
		})
	}
	return rows
}

// Workbook renders rows under the export header as an xlsx file.
func Workbook(rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	all := append([][]any{exportHeader}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "Да"
	}
	return "Нет"
}
