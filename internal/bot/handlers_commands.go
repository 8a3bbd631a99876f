package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yourname/habit-bot/internal/conversation"
	"github.com/yourname/habit-bot/internal/report"
)

const (
	textWelcome = "Привет! Я бот для отслеживания ваших привычек.\n\n" + textUsage
	textUsage   = "Команды:\n" +
		"/gather_data - внести данные за вчера\n" +
		"/gather_data_backdated - внести данные за другой день\n" +
		"/weekly_stats - статистика за последние 7 дней\n" +
		"/export - выгрузить все данные в Excel\n" +
		"/cancel - прервать ввод данных"

	textNoSession       = "Чтобы внести данные, используйте /gather_data или /gather_data_backdated."
	textUnknownCommand  = "Неизвестная команда.\n\n" + textUsage
	textGenericError    = "Произошла ошибка. Попробуйте ещё раз позже."
	textRegisterFailed  = "Произошла ошибка при регистрации пользователя."
	textDateUnavailable = "Эта дата недоступна, запустите /gather_data_backdated заново."
	textCancelled       = "Ввод данных прерван."
	textNothingToCancel = "Сейчас нечего отменять."
	textStatsFailed     = "Произошла ошибка при получении статистики."
	textNoExportData    = "У вас нет данных для экспорта."
	textExportFailed    = "Произошла ошибка при формировании файла."
	textExportCaption   = "Вот ваши данные в Excel!"
)

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message, registered bool) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	switch msg.Command() {
	case "start":
		if !registered {
			h.reply(chatID, textRegisterFailed)
			return
		}
		h.reply(chatID, textWelcome)

	case "help":
		h.reply(chatID, textUsage)

	case "gather_data":
		h.start(ctx, chatID, userID, h.engine.StartToday)

	case "gather_data_backdated":
		h.start(ctx, chatID, userID, h.engine.StartBackdated)

	case "weekly_stats":
		h.handleWeeklyStats(ctx, chatID, userID)

	case "export", "export_excel":
		h.handleExport(ctx, chatID, userID)

	case "cancel":
		h.handleCancel(ctx, chatID, userID)

	default:
		h.reply(chatID, textUnknownCommand)
	}
}

func (h *Handler) start(ctx context.Context, chatID, userID int64, open func(context.Context, int64) (conversation.Reply, error)) {
	r, err := open(ctx, userID)
	if err != nil {
		h.log.Error("start questionnaire", "user_id", userID, "err", err)
		h.reply(chatID, textGenericError)
		return
	}
	h.sendReply(chatID, r)
}

func (h *Handler) handleCancel(ctx context.Context, chatID, userID int64) {
	had, err := h.engine.Cancel(ctx, userID)
	if err != nil {
		h.log.Error("cancel", "user_id", userID, "err", err)
		h.reply(chatID, textGenericError)
		return
	}
	if !had {
		h.reply(chatID, textNothingToCancel)
		return
	}
	h.sendReply(chatID, conversation.Reply{Text: textCancelled, Keyboard: conversation.RemoveKeyboard})
}

func (h *Handler) handleWeeklyStats(ctx context.Context, chatID, userID int64) {
	from, to := report.WeekWindow(h.engine.Today())
	entries, err := h.store.QueryEntries(ctx, userID, from, to)
	if err != nil {
		h.log.Error("weekly stats", "user_id", userID, "err", err)
		h.reply(chatID, textStatsFailed)
		return
	}
	h.reply(chatID, report.FormatWeekly(report.Weekly(entries, from, to)))
}

func (h *Handler) handleExport(ctx context.Context, chatID, userID int64) {
	entries, err := h.store.ListEntries(ctx, userID)
	if err != nil {
		h.log.Error("export: list entries", "user_id", userID, "err", err)
		h.reply(chatID, textExportFailed)
		return
	}
	if len(entries) == 0 {
		h.reply(chatID, textNoExportData)
		return
	}

	data, err := report.Workbook(report.ExportRows(entries))
	if err != nil {
		h.log.Error("export: build workbook", "user_id", userID, "err", err)
		h.reply(chatID, textExportFailed)
		return
	}

	dir, err := os.MkdirTemp("", "habitbot-export-")
	if err != nil {
		h.log.Error("export: temp dir", "err", err)
		h.reply(chatID, textExportFailed)
		return
	}
	// файл удаляется при любом исходе отправки
	defer os.RemoveAll(dir)

	name := fmt.Sprintf("export_%d_%s.xlsx", userID, h.engine.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		h.log.Error("export: write file", "err", err)
		h.reply(chatID, textExportFailed)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = textExportCaption
	if _, err := h.api.Send(doc); err != nil {
		h.log.Error("export: send document", "user_id", userID, "err", err)
		h.reply(chatID, textExportFailed)
		return
	}
	h.log.Info("export sent", "user_id", userID, "entries", len(entries))
}
