package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var placedAt = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testOrder() *domain.Order {
	return &domain.Order{
		Number: "RM-20260314-ABCDEF12",
		Items: []domain.OrderItem{{
			ProductID:   1,
			ProductName: "Arm X1",
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("75.00"),
			Subtotal:    decimal.RequireFromString("150.00"),
		}},
		Shipping: domain.ShippingInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		Payment:  domain.PaymentSummary{Method: domain.PaymentCreditCard, CardLast4: "4242"},
		Totals: domain.PricingBreakdown{
			Subtotal:      decimal.RequireFromString("150.00"),
			ShippingCost:  decimal.Zero,
			TaxAmount:     decimal.RequireFromString("7.50"),
			PromoCode:     "ROBO20",
			PromoDiscount: decimal.RequireFromString("20.00"),
			GrandTotal:    decimal.RequireFromString("137.50"),
		},
		Currency:  "USD",
		CreatedAt: placedAt,
	}
}

type fakeSubmitter struct {
	err error
}

func (f fakeSubmitter) Submit(_ context.Context, order *domain.Order) (*domain.Confirmation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Confirmation{OrderNumber: order.Number, Timestamp: placedAt}, nil
}

type memoryRecorder struct {
	m      sync.Mutex
	events []PlacedEvent
	err    error
	// failures is the number of inserts to reject before accepting any
	failures int
}

func (r *memoryRecorder) Record(_ context.Context, order *domain.Order, conf *domain.Confirmation) error {
	return r.Insert(context.Background(), NewPlacedEvent(order, conf))
}

func (r *memoryRecorder) Insert(_ context.Context, ev PlacedEvent) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset by peer")
	}
	for _, e := range r.events {
		if e.OrderNumber == ev.OrderNumber {
			return ErrDuplicateOrder
		}
	}
	r.events = append(r.events, ev)
	return nil
}

func TestRecordingSubmitter_RecordsSuccess(t *testing.T) {
	rec := &memoryRecorder{}
	s := NewRecordingSubmitter(fakeSubmitter{}, rec, logger.Nop())

	conf, err := s.Submit(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "RM-20260314-ABCDEF12", conf.OrderNumber)
	require.Len(t, rec.events, 1)
	assert.Equal(t, "ada@example.com", rec.events[0].Email)
	assert.Equal(t, domain.PaymentCreditCard, rec.events[0].PaymentMethod)
}

func TestRecordingSubmitter_RecorderFailureDoesNotFailOrder(t *testing.T) {
	rec := &memoryRecorder{err: errors.New("db down")}
	s := NewRecordingSubmitter(fakeSubmitter{}, rec, logger.Nop())

	conf, err := s.Submit(context.Background(), testOrder())
	require.NoError(t, err)
	assert.NotNil(t, conf)
}

func TestRecordingSubmitter_SubmitFailureNotRecorded(t *testing.T) {
	rec := &memoryRecorder{}
	s := NewRecordingSubmitter(fakeSubmitter{err: errors.New("declined")}, rec, logger.Nop())

	_, err := s.Submit(context.Background(), testOrder())
	assert.Error(t, err)
	assert.Empty(t, rec.events)
}

func TestNewPlacedEvent_PrefersConfirmation(t *testing.T) {
	ts := placedAt.Add(time.Minute)
	ev := NewPlacedEvent(testOrder(), &domain.Confirmation{OrderNumber: "GW-1", Timestamp: ts, RedirectURL: "https://pay"})

	assert.Equal(t, "GW-1", ev.OrderNumber)
	assert.Equal(t, ts, ev.PlacedAt)
	assert.Equal(t, "https://pay", ev.RedirectURL)
	assert.Equal(t, "137.5", ev.GrandTotal().String())
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaRecorder_PublishesKeyedEvent(t *testing.T) {
	w := &fakeWriter{}
	r := NewKafkaRecorderWithWriter(w)

	require.NoError(t, r.Record(context.Background(), testOrder(), &domain.Confirmation{OrderNumber: "RM-20260314-ABCDEF12", Timestamp: placedAt}))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "RM-20260314-ABCDEF12", string(msg.Key))
	assert.Equal(t, EventOrderPlaced, eventType(msg))

	var ev PlacedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "ROBO20", ev.Totals.PromoCode)
	assert.True(t, decimal.RequireFromString("137.50").Equal(ev.Totals.GrandTotal))
}

func TestKafkaRecorder_WriteError(t *testing.T) {
	r := NewKafkaRecorderWithWriter(&fakeWriter{err: errors.New("no brokers")})
	err := r.Record(context.Background(), testOrder(), nil)
	assert.ErrorContains(t, err, "no brokers")
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestProjector_StoresEventsAndSkipsDuplicates(t *testing.T) {
	payload, err := json.Marshal(NewPlacedEvent(testOrder(), nil))
	require.NoError(t, err)

	placed := kafka.Message{Offset: 0, Value: payload, Headers: []kafka.Header{{Key: "event_type", Value: []byte(EventOrderPlaced)}}}
	other := kafka.Message{Offset: 1, Value: payload, Headers: []kafka.Header{{Key: "event_type", Value: []byte("order_refunded")}}}
	garbage := kafka.Message{Offset: 2, Value: []byte("{")}
	again := placed
	again.Offset = 3

	store := &memoryRecorder{}
	reader := &fakeReader{msgs: []kafka.Message{placed, other, garbage, again}}
	p := NewProjectorWithReader(store, reader, logger.Nop())

	for i := 0; i < 4; i++ {
		p.processMessage(context.Background())
	}

	require.Len(t, store.events, 1)
	assert.Equal(t, "RM-20260314-ABCDEF12", store.events[0].OrderNumber)
	assert.Len(t, reader.committed, 4)
}

func TestProjector_RetriesFailedInsertBeforeCommitting(t *testing.T) {
	payload, err := json.Marshal(NewPlacedEvent(testOrder(), nil))
	require.NoError(t, err)

	store := &memoryRecorder{failures: 2}
	reader := &fakeReader{msgs: []kafka.Message{{Offset: 7, Value: payload}}}
	p := NewProjectorWithReader(store, reader, logger.Nop())
	p.retryDelay = time.Millisecond

	p.processMessage(context.Background())

	require.Len(t, store.events, 1)
	require.Len(t, reader.committed, 1)
	assert.Equal(t, int64(7), reader.committed[0].Offset)
}

func TestProjector_NoCommitWhenStoppedBeforeInsert(t *testing.T) {
	payload, err := json.Marshal(NewPlacedEvent(testOrder(), nil))
	require.NoError(t, err)

	store := &memoryRecorder{err: errors.New("database is down")}
	reader := &fakeReader{msgs: []kafka.Message{{Offset: 7, Value: payload}}}
	p := NewProjectorWithReader(store, reader, logger.Nop())
	p.retryDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p.processMessage(ctx)

	assert.Empty(t, store.events)
	assert.Empty(t, reader.committed)
}
