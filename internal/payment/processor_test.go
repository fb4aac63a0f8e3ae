package payment

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ai-chef/recipe-bot/internal/domain"
	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
	"github.com/ai-chef/recipe-bot/internal/ledger"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) GetBalance(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) Credit(ctx context.Context, userID, amount, amountMinor int64, eventID string) (bool, error) {
	args := m.Called(ctx, userID, amount, amountMinor, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) Debit(ctx context.Context, userID, amount int64) (bool, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Error(1)
}

type recordingNotifier struct {
	messages []string
	users    []int64
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, text string, _ ...interface{}) error {
	n.users = append(n.users, userID)
	n.messages = append(n.messages, text)
	return nil
}

func actionableEvent(id string) *domain.PaymentEvent {
	return &domain.PaymentEvent{
		ID:          id,
		UserID:      42,
		Tokens:      100,
		AmountMinor: 29000,
		Status:      domain.PaymentSucceeded,
		Actionable:  true,
		Raw:         json.RawMessage(`{"id":"` + id + `"}`),
	}
}

func TestProcessor_ProcessCreditsOnce(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	notifier := &recordingNotifier{}
	processor := NewProcessor(store, nil, notifier, testLogger())

	credited, err := processor.Process(ctx, actionableEvent("evt_1"))
	require.NoError(t, err)
	assert.True(t, credited)

	balance, err := store.GetBalance(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, int64(42), notifier.users[0])
	assert.Contains(t, notifier.messages[0], "100")
}

func TestProcessor_DuplicateIsAcknowledgedNoOp(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	notifier := &recordingNotifier{}
	processor := NewProcessor(store, nil, notifier, testLogger())

	credited, err := processor.Process(ctx, actionableEvent("evt_dup"))
	require.NoError(t, err)
	assert.True(t, credited)

	// Provider redelivery: same event id, same payload.
	credited, err = processor.Process(ctx, actionableEvent("evt_dup"))
	require.NoError(t, err)
	assert.False(t, credited, "duplicate must be a no-op, not an error")

	balance, err := store.GetBalance(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
	assert.Equal(t, int64(29000), store.TotalSpent(42),
		"purchase total counts the payment once")

	assert.Len(t, notifier.messages, 1, "no confirmation for a duplicate")
}

func TestProcessor_NonActionableIsIgnored(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	processor := NewProcessor(store, nil, nil, testLogger())

	event := actionableEvent("evt_pending")
	event.Status = domain.PaymentPending
	event.Actionable = false

	credited, err := processor.Process(ctx, event)
	require.NoError(t, err)
	assert.False(t, credited)

	balance, err := store.GetBalance(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestProcessor_TransientStorageErrorIsRetryable(t *testing.T) {
	ctx := context.Background()
	ml := &mockLedger{}
	storageErr := apperrors.NewStorageError(assert.AnError)
	ml.On("Credit", mock.Anything, int64(42), int64(100), int64(29000), "evt_err").
		Return(false, storageErr)

	processor := NewProcessor(ml, nil, nil, testLogger())

	credited, err := processor.Process(ctx, actionableEvent("evt_err"))
	assert.False(t, credited)
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err), "storage failure must propagate as retryable")

	// WithRetry exhausts its attempts before giving up.
	ml.AssertNumberOfCalls(t, "Credit", apperrors.MaxRetries+1)
}

func TestProcessor_RetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	ml := &mockLedger{}
	storageErr := apperrors.NewStorageError(assert.AnError)
	ml.On("Credit", mock.Anything, int64(42), int64(100), int64(29000), "evt_flaky").
		Return(false, storageErr).Once()
	ml.On("Credit", mock.Anything, int64(42), int64(100), int64(29000), "evt_flaky").
		Return(true, nil).Once()
	ml.On("GetBalance", mock.Anything, int64(42)).Return(int64(100), nil)

	notifier := &recordingNotifier{}
	processor := NewProcessor(ml, nil, notifier, testLogger())

	credited, err := processor.Process(ctx, actionableEvent("evt_flaky"))
	require.NoError(t, err)
	assert.True(t, credited)
	assert.Len(t, notifier.messages, 1)

	ml.AssertExpectations(t)
}

// Full replay scenario: empty balance, credit, spend, replayed credit.
func TestProcessor_EndToEndReplayScenario(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	processor := NewProcessor(store, nil, &recordingNotifier{}, testLogger())

	balance, err := store.GetBalance(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)

	credited, err := processor.Process(ctx, actionableEvent("evt_1"))
	require.NoError(t, err)
	require.True(t, credited)

	balance, _ = store.GetBalance(ctx, 42)
	assert.Equal(t, int64(100), balance)

	applied, err := store.Debit(ctx, 42, 10)
	require.NoError(t, err)
	require.True(t, applied)

	balance, _ = store.GetBalance(ctx, 42)
	assert.Equal(t, int64(90), balance)

	credited, err = processor.Process(ctx, actionableEvent("evt_1"))
	require.NoError(t, err, "replay must still be acknowledged")
	assert.False(t, credited)

	balance, _ = store.GetBalance(ctx, 42)
	assert.Equal(t, int64(90), balance, "replay must not change the balance")
}
