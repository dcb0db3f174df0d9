package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gartstein/expenseflow/internal/expense/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockKafkaWriter implements KafkaWriter for testing
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newTestProducer(logger *zap.Logger, writer KafkaWriter) *Producer {
	return &Producer{
		writer:    writer,
		events:    make(chan Event, 1000),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}
}

func TestProducer_Produce(t *testing.T) {
	t.Run("successful produce", func(t *testing.T) {
		producer := newTestProducer(zaptest.NewLogger(t), new(MockKafkaWriter))
		expense := &models.Expense{ID: uuid.New()}

		producer.Produce(ExpenseSubmitted, expense)

		assert.Equal(t, 1, len(producer.events))
	})

	t.Run("dropped event when queue full", func(t *testing.T) {
		core, recorded := observer.New(zap.WarnLevel)
		producer := newTestProducer(zap.New(core), new(MockKafkaWriter))
		producer.events = make(chan Event, 1) // Small buffer for test
		expense := &models.Expense{ID: uuid.New()}

		// Fill the channel
		producer.Produce(ExpenseSubmitted, expense)
		producer.Produce(ExpenseApproved, expense) // This should be dropped

		assert.Equal(t, 1, recorded.FilterMessage("Kafka producer queue full, dropping event").Len())
	})
}

func TestProducer_SendEvent(t *testing.T) {
	expense := &models.Expense{ID: uuid.New(), AmountCents: 4200, CurrencyCode: "USD"}

	t.Run("successful send", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := newTestProducer(zaptest.NewLogger(t), mockWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)

		event := Event{Type: ExpenseApproved, Expense: expense}
		producer.sendEvent(context.Background(), event)

		value, err := json.Marshal(event)
		assert.NoError(t, err)
		mockWriter.AssertCalled(t, "WriteMessages", mock.Anything, []kafka.Message{
			{
				Key:   []byte(expense.ID.String()),
				Value: value,
			},
		})
	})

	t.Run("write error is logged, not returned", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		mockWriter := new(MockKafkaWriter)
		producer := newTestProducer(zap.New(core), mockWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		producer.sendEvent(context.Background(), Event{Type: ExpenseRejected, Expense: expense})

		assert.Equal(t, 1, recorded.FilterMessage("Failed to produce event").Len())
	})
}

func TestEvent_Key(t *testing.T) {
	expenseID := uuid.New()
	companyID := uuid.New()

	assert.Equal(t, expenseID.String(), Event{Type: ExpenseApproved, Expense: &models.Expense{ID: expenseID}}.key())
	assert.Equal(t, companyID.String(), Event{Type: CompanyCreated, Company: &models.Company{ID: companyID}}.key())
	assert.Equal(t, string(CompanyCreated), Event{Type: CompanyCreated}.key())
}
