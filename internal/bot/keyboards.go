package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	callbackSelectDate = "select_date"
	datesPerRow        = 3
)

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Да"),
			tgbotapi.NewKeyboardButton("Нет"),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// dateKeyboard lays out one button per label, newest first.
func dateKeyboard(labels []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, (len(labels)+datesPerRow-1)/datesPerRow)
	var row []tgbotapi.InlineKeyboardButton
	for _, l := range labels {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(l, callbackSelectDate+":"+l))
		if len(row) == datesPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// emptyInlineKeyboard removes an inline keyboard when used in an edit.
// The slice must be non-nil so it encodes as [] rather than null.
func emptyInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
}
