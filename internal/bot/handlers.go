package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yourname/habit-bot/internal/conversation"
	"github.com/yourname/habit-bot/internal/domain"
)

// Sender is the part of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Store interface {
	InsertUser(ctx context.Context, u domain.User) (bool, error)
	QueryEntries(ctx context.Context, userID int64, from, to time.Time) ([]domain.DailyEntry, error)
	ListEntries(ctx context.Context, userID int64) ([]domain.DailyEntry, error)
}

// Conversation is the questionnaire engine as seen by the router.
type Conversation interface {
	StartToday(ctx context.Context, userID int64) (conversation.Reply, error)
	StartBackdated(ctx context.Context, userID int64) (conversation.Reply, error)
	SelectDate(ctx context.Context, userID int64, label string) (conversation.Reply, bool, error)
	Answer(ctx context.Context, userID int64, text string) (conversation.Reply, error)
	Cancel(ctx context.Context, userID int64) (bool, error)
	Now() time.Time
	Today() time.Time
}

type Handler struct {
	api    Sender
	store  Store
	engine Conversation
	log    *log.Logger
}

func NewHandler(api Sender, store Store, engine Conversation, logger *log.Logger) *Handler {
	return &Handler{api: api, store: store, engine: engine, log: logger}
}

// HandleUpdate routes one inbound update: callbacks to the date picker,
// commands to their handlers, any other text to the open questionnaire.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		h.HandleCallback(ctx, upd.CallbackQuery)
		return
	}

	if upd.Message == nil || upd.Message.From == nil {
		return
	}

	msg := upd.Message
	// работаем только в личке
	if !msg.Chat.IsPrivate() {
		return
	}

	registered := h.register(ctx, msg.From)

	if msg.IsCommand() {
		h.handleCommand(ctx, msg, registered)
		return
	}

	h.handleAnswer(ctx, msg)
}

func (h *Handler) register(ctx context.Context, from *tgbotapi.User) bool {
	var uname *string
	if from.UserName != "" {
		u := from.UserName
		uname = &u
	}
	created, err := h.store.InsertUser(ctx, domain.User{TelegramID: from.ID, Username: uname})
	if err != nil {
		h.log.Error("register user", "user_id", from.ID, "err", err)
		return false
	}
	if created {
		h.log.Info("user registered", "user_id", from.ID)
	}
	return true
}

func (h *Handler) handleAnswer(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	r, err := h.engine.Answer(ctx, userID, msg.Text)
	if errors.Is(err, conversation.ErrNoSession) {
		if strings.TrimSpace(msg.Text) != "" {
			h.reply(msg.Chat.ID, textNoSession)
		}
		return
	}
	if err != nil {
		h.log.Error("answer", "user_id", userID, "err", err)
		h.reply(msg.Chat.ID, textGenericError)
		return
	}
	h.sendReply(msg.Chat.ID, r)
}

func (h *Handler) HandleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	toast := ""
	// обязательно отвечаем Telegram
	defer func() {
		if _, err := h.api.Request(tgbotapi.NewCallback(q.ID, toast)); err != nil {
			h.log.Debug("answer callback", "err", err)
		}
	}()

	if q.Message == nil || q.Message.Chat == nil || !q.Message.Chat.IsPrivate() {
		return
	}

	prefix, value, found := strings.Cut(q.Data, ":")
	if !found {
		return
	}

	switch prefix {
	case callbackSelectDate:
		toast = h.selectDate(ctx, q, value)
	}
}

// selectDate returns the toast to show on the pressed button.
func (h *Handler) selectDate(ctx context.Context, q *tgbotapi.CallbackQuery, label string) string {
	if q.From == nil {
		return ""
	}
	chatID := q.Message.Chat.ID

	r, ok, err := h.engine.SelectDate(ctx, q.From.ID, label)
	if err != nil {
		h.log.Error("select date", "user_id", q.From.ID, "err", err)
		return textGenericError
	}
	if !ok {
		return textDateUnavailable
	}

	// Withdraw the picker so it cannot be pressed again.
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, q.Message.MessageID, emptyInlineKeyboard())
	if _, err := h.api.Request(edit); err != nil {
		h.log.Warn("remove date picker", "user_id", q.From.ID, "err", err)
	}
	h.sendReply(chatID, r)
	return ""
}

// Notify sends a reply to a user's private chat outside of any update.
func (h *Handler) Notify(_ context.Context, userID int64, r conversation.Reply) error {
	_, err := h.api.Send(h.message(userID, r))
	return err
}

func (h *Handler) sendReply(chatID int64, r conversation.Reply) {
	if _, err := h.api.Send(h.message(chatID, r)); err != nil {
		h.log.Error("send reply", "chat_id", chatID, "err", err)
	}
}

func (h *Handler) message(chatID int64, r conversation.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	switch r.Keyboard {
	case conversation.YesNoKeyboard:
		msg.ReplyMarkup = yesNoKeyboard()
	case conversation.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	case conversation.DateKeyboard:
		msg.ReplyMarkup = dateKeyboard(r.Dates)
	}
	return msg
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		h.log.Error("send reply", "chat_id", chatID, "err", err)
	}
}
