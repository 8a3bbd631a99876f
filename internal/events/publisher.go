// Package events publishes committed habit entries for downstream
// consumers. Publication is best effort; the entry store is the source of
// truth.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yourname/habit-bot/internal/config"
	"github.com/yourname/habit-bot/internal/domain"
)

const TypeEntryCommitted = "entry.committed"

// EntryEvent is the JSON payload of an entry.committed message.
type EntryEvent struct {
	Type                  string    `json:"type"`
	EntryID               int64     `json:"entry_id"`
	UserID                int64     `json:"user_id"`
	Date                  string    `json:"date"`
	BedtimeBeforeMidnight bool      `json:"bedtime_before_midnight"`
	NoGadgetsAfter23      bool      `json:"no_gadgets_after_23"`
	FollowedDiet          bool      `json:"followed_diet"`
	SportHours            float64   `json:"sport_hours"`
	CreatedAt             time.Time `json:"created_at"`
}

func NewEntryEvent(e domain.DailyEntry) EntryEvent {
	return EntryEvent{
		Type:                  TypeEntryCommitted,
		EntryID:               e.ID,
		UserID:                e.UserID,
		Date:                  e.Date.Format(domain.DateLayout),
		BedtimeBeforeMidnight: e.BedtimeBeforeMidnight,
		NoGadgetsAfter23:      e.NoGadgetsAfter23,
		FollowedDiet:          e.FollowedDiet,
		SportHours:            e.SportHours,
		CreatedAt:             e.CreatedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes entry events keyed by user id so one user's events stay
// ordered within a partition.
type Kafka struct {
	writer messageWriter
}

func NewKafka(cfg config.KafkaConfig) *Kafka {
	return &Kafka{writer: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}}
}

func (k *Kafka) EntryCommitted(ctx context.Context, e domain.DailyEntry) error {
	payload, err := json.Marshal(NewEntryEvent(e))
	if err != nil {
		return fmt.Errorf("failed to marshal entry event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(e.UserID, 10)),
		Value: payload,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish entry event: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.writer.Close() }
