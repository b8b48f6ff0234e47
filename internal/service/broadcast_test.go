package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"WhaleSync/internal/config"
	"WhaleSync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroadcaster(trades *fakeTradeRepo, logRepo *fakeBroadcastRepo, notifier *fakeNotifier, channelID string) *BroadcastService {
	cfg := &config.BroadcastConfig{
		Enabled:   true,
		Interval:  time.Hour,
		MinSize:   1000,
		ChannelID: channelID,
	}
	classifier := testClassifier(10000, 10000, 50000, 100000)
	return NewBroadcastService(trades, logRepo, notifier, classifier, cfg, testLogger())
}

func storedTrade(id, wallet string, size float64, ts time.Time) *model.Trade {
	return &model.Trade{
		ID:            id,
		TraderAddress: wallet,
		MarketName:    "Some market",
		Side:          "BUY",
		Size:          size,
		Price:         0.5,
		Timestamp:     ts,
	}
}

// The largest qualifying trade in the window gets sent exactly once.
func TestBroadcast_SendsLargestInWindow(t *testing.T) {
	t.Parallel()

	trades := newFakeTradeRepo()
	now := time.Now().UTC()
	trades.trades["small"] = storedTrade("small", "0xaa", 2000, now)
	trades.trades["big"] = storedTrade("big", "0xbb", 90000, now)
	trades.trades["tiny"] = storedTrade("tiny", "0xcc", 10, now) // below min_size

	logRepo := newFakeBroadcastRepo()
	notifier := &fakeNotifier{}
	b := newTestBroadcaster(trades, logRepo, notifier, "@whales")
	b.lastTickEnd = now.Add(-time.Minute)

	require.NoError(t, b.runOnce(context.Background()))

	require.Equal(t, 1, notifier.sentCount())
	assert.Equal(t, "@whales", notifier.sent[0].channelID)
	assert.Contains(t, notifier.sent[0].text, "$90.0k")
	assert.Equal(t, "big", b.lastSentTradeID)
	assert.True(t, logRepo.recorded["big"])
}

// Windows are contiguous: a tick's end is the next tick's start, so a
// trade landing between ticks is picked up by exactly one of them.
func TestBroadcast_WindowsAreContiguous(t *testing.T) {
	t.Parallel()

	trades := newFakeTradeRepo()
	logRepo := newFakeBroadcastRepo()
	notifier := &fakeNotifier{}
	b := newTestBroadcaster(trades, logRepo, notifier, "@whales")

	start := time.Now().UTC().Add(-time.Minute)
	b.lastTickEnd = start

	// empty first window still advances the cursor
	require.NoError(t, b.runOnce(context.Background()))
	firstEnd := b.lastTickEnd
	assert.True(t, firstEnd.After(start))
	assert.Zero(t, notifier.sentCount())

	// trade stamped inside the gap between tick one and tick two
	trades.trades["gap"] = storedTrade("gap", "0xaa", 5000, firstEnd)

	require.NoError(t, b.runOnce(context.Background()))
	assert.Equal(t, 1, notifier.sentCount())
}

// Losing the cross-instance registration race means silent skip.
func TestBroadcast_RegistrationLostSkips(t *testing.T) {
	t.Parallel()

	trades := newFakeTradeRepo()
	now := time.Now().UTC()
	trades.trades["t1"] = storedTrade("t1", "0xaa", 5000, now)

	logRepo := newFakeBroadcastRepo()
	logRepo.recorded["t1"] = true // another instance got there first

	notifier := &fakeNotifier{}
	b := newTestBroadcaster(trades, logRepo, notifier, "@whales")
	b.lastTickEnd = now.Add(-time.Minute)

	require.NoError(t, b.runOnce(context.Background()))
	assert.Zero(t, notifier.sentCount())
	assert.Empty(t, b.lastSentTradeID)
}

// Two instances racing the same window against one shared registration log:
// exactly one of the concurrent ticks gets to send.
func TestBroadcast_ConcurrentInstancesExactlyOnce(t *testing.T) {
	t.Parallel()

	trades := newFakeTradeRepo()
	now := time.Now().UTC()
	trades.trades["t1"] = storedTrade("t1", "0xaa", 5000, now)

	logRepo := newFakeBroadcastRepo()
	notifierA := &fakeNotifier{}
	notifierB := &fakeNotifier{}
	a := newTestBroadcaster(trades, logRepo, notifierA, "@whales")
	b := newTestBroadcaster(trades, logRepo, notifierB, "@whales")
	a.lastTickEnd = now.Add(-time.Minute)
	b.lastTickEnd = now.Add(-time.Minute)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, svc := range []*BroadcastService{a, b} {
		wg.Add(1)
		go func(s *BroadcastService) {
			defer wg.Done()
			errs <- s.runOnce(context.Background())
		}(svc)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 1, notifierA.sentCount()+notifierB.sentCount(),
		"registration must admit exactly one sender")
	assert.True(t, logRepo.recorded["t1"])
}

// In-process fast path: the same trade is never sent twice by this instance.
func TestBroadcast_LastSentFastPath(t *testing.T) {
	t.Parallel()

	trades := newFakeTradeRepo()
	now := time.Now().UTC()
	trades.trades["t1"] = storedTrade("t1", "0xaa", 5000, now)

	logRepo := newFakeBroadcastRepo()
	notifier := &fakeNotifier{}
	b := newTestBroadcaster(trades, logRepo, notifier, "@whales")

	b.lastTickEnd = now.Add(-time.Minute)
	require.NoError(t, b.runOnce(context.Background()))
	require.Equal(t, 1, notifier.sentCount())

	// rewind the cursor so the same trade is the candidate again
	b.lastTickEnd = now.Add(-time.Minute)
	require.NoError(t, b.runOnce(context.Background()))
	assert.Equal(t, 1, notifier.sentCount())
}

// No channel configured: nothing sent, but the window cursor still moves.
func TestBroadcast_NoChannelAdvancesWindow(t *testing.T) {
	t.Parallel()

	trades := newFakeTradeRepo()
	now := time.Now().UTC()
	trades.trades["t1"] = storedTrade("t1", "0xaa", 5000, now)

	logRepo := newFakeBroadcastRepo()
	notifier := &fakeNotifier{}
	b := newTestBroadcaster(trades, logRepo, notifier, "")

	start := now.Add(-time.Minute)
	b.lastTickEnd = start
	require.NoError(t, b.runOnce(context.Background()))

	assert.Zero(t, notifier.sentCount())
	assert.True(t, b.lastTickEnd.After(start))
	assert.False(t, logRepo.recorded["t1"], "no registration without a channel")
}

// Send failure surfaces as an error and the in-process marker stays unset.
func TestBroadcast_SendFailure(t *testing.T) {
	t.Parallel()

	trades := newFakeTradeRepo()
	now := time.Now().UTC()
	trades.trades["t1"] = storedTrade("t1", "0xaa", 5000, now)

	logRepo := newFakeBroadcastRepo()
	notifier := &fakeNotifier{err: errors.New("telegram 502")}
	b := newTestBroadcaster(trades, logRepo, notifier, "@whales")
	b.lastTickEnd = now.Add(-time.Minute)

	require.Error(t, b.runOnce(context.Background()))
	assert.Empty(t, b.lastSentTradeID)
}

// Message body carries trader, size, side and lifetime aggregates.
func TestBroadcast_MessageFormat(t *testing.T) {
	t.Parallel()

	trades := newFakeTradeRepo()
	now := time.Now().UTC()
	trades.trades["t1"] = storedTrade("t1", "0xabcdef1234567890", 75000, now)
	trades.trades["t0"] = storedTrade("t0", "0xabcdef1234567890", 500, now.Add(-time.Hour))

	logRepo := newFakeBroadcastRepo()
	notifier := &fakeNotifier{}
	b := newTestBroadcaster(trades, logRepo, notifier, "@whales")
	b.lastTickEnd = now.Add(-time.Minute)

	require.NoError(t, b.runOnce(context.Background()))
	require.Equal(t, 1, notifier.sentCount())

	text := notifier.sent[0].text
	assert.Contains(t, text, "$75.0k")
	assert.Contains(t, text, "BUY")
	assert.Contains(t, text, "Some market")
	assert.Contains(t, text, "0xabcd") // shortened address
	assert.Contains(t, text, "2 笔")    // lifetime trade count
	assert.Contains(t, text, "🐳")      // tier emoji for 75k
}
