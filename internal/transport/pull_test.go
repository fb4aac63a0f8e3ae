package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

func fastPollConfig() PollConfig {
	return PollConfig{
		Timeout:    time.Second,
		MinBackoff: time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	}
}

func TestPoll_OffsetAdvancesOnlyPastHandledUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		offsets []int
		handled []int
	)

	failOnce := true
	handler := func(_ context.Context, u tele.Update) error {
		mu.Lock()
		defer mu.Unlock()

		handled = append(handled, u.ID)
		if u.ID == 2 && failOnce {
			failOnce = false
			return errors.New("boom")
		}
		return nil
	}

	calls := 0
	fetch := func(_ context.Context, offset, _ int) ([]tele.Update, error) {
		mu.Lock()
		offsets = append(offsets, offset)
		calls++
		n := calls
		mu.Unlock()

		switch n {
		case 1:
			return []tele.Update{{ID: 1}, {ID: 2}}, nil
		case 2:
			// The failed update must be asked for again.
			return []tele.Update{{ID: 2}}, nil
		default:
			cancel()
			return nil, nil
		}
	}

	router := NewRouter(handler, nil, testLogger())
	err := router.Poll(ctx, fetch, fastPollConfig())
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 2, 3}, offsets)
	assert.Equal(t, []int{1, 2, 2}, handled)
}

func TestPoll_FetchFailureDoesNotAdvanceOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		offsets []int
	)

	calls := 0
	fetch := func(_ context.Context, offset, _ int) ([]tele.Update, error) {
		mu.Lock()
		offsets = append(offsets, offset)
		calls++
		n := calls
		mu.Unlock()

		switch n {
		case 1:
			return nil, errors.New("network down")
		case 2:
			return []tele.Update{{ID: 5}}, nil
		default:
			cancel()
			return nil, nil
		}
	}

	handler := func(context.Context, tele.Update) error { return nil }

	router := NewRouter(handler, nil, testLogger())
	err := router.Poll(ctx, fetch, fastPollConfig())
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 0, 6}, offsets)
}

func TestPoll_BackoffIsCapped(t *testing.T) {
	router := NewRouter(nil, nil, testLogger())
	ctx := context.Background()

	backoff := time.Millisecond
	for i := 0; i < 10; i++ {
		backoff = router.sleep(ctx, backoff, 4*time.Millisecond)
	}

	assert.Equal(t, 4*time.Millisecond, backoff)
}
