package events

import (
	"context"
	"encoding/json"

	"github.com/gartstein/expenseflow/internal/expense/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ActionType identifies an approval decision arriving from an upstream
// system (the presentation layer lives outside this service).
type ActionType string

const (
	ActionApprove  ActionType = "approve"
	ActionReject   ActionType = "reject"
	ActionOverride ActionType = "override"
)

// Action is one approval command to apply to an expense.
type Action struct {
	Type      ActionType
	ExpenseID uuid.UUID
	ActorID   uuid.UUID
	// Target is only read for override actions.
	Target  models.ExpenseStatus
	Comment string
}

// Consumer feeds approval actions from Kafka into a registered handler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *zap.Logger
	handler func(context.Context, Action) error
}

func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
			Dialer:  kafka.DefaultDialer,
		}),
		logger: logger.Named("kafka_consumer"),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	go func() {
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("Failed to fetch message", zap.Error(err))
				continue
			}

			var action Action
			if err := json.Unmarshal(msg.Value, &action); err != nil {
				c.logger.Error("Failed to parse action",
					zap.Error(err),
					zap.ByteString("value", msg.Value),
				)
				continue
			}

			if err := c.handler(ctx, action); err != nil {
				c.logger.Error("Failed to handle action",
					zap.Error(err),
					zap.String("action_type", string(action.Type)),
					zap.String("expense_id", action.ExpenseID.String()),
				)
				continue
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Failed to commit message",
					zap.Error(err),
					zap.String("action_type", string(action.Type)),
				)
			}
		}
	}()
}

func (c *Consumer) RegisterHandler(fn func(context.Context, Action) error) {
	c.handler = fn
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}
