package service

import (
	"context"
	"io"
	"sync"
	"time"

	"WhaleSync/internal/model"
	"WhaleSync/internal/repository"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(io.Discard)
	return lg
}

// --- fakes ---

type fakeTradeSource struct {
	mu      sync.Mutex
	pages   [][]map[string]any
	markets []*model.Market
	err     error
	calls   int
}

func (f *fakeTradeSource) FetchRecentTrades(ctx context.Context, limit int) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return page, nil
}

func (f *fakeTradeSource) FetchMarkets(ctx context.Context, limit int, activeOnly bool) ([]*model.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.markets, nil
}

type fakeMarketRepo struct {
	mu      sync.Mutex
	upserts int
	stored  map[string]*model.Market
}

func newFakeMarketRepo() *fakeMarketRepo {
	return &fakeMarketRepo{stored: make(map[string]*model.Market)}
}

func (f *fakeMarketRepo) UpsertMarkets(ctx context.Context, markets []*model.Market) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	for _, m := range markets {
		f.stored[m.MarketID] = m
	}
	return nil
}

func (f *fakeMarketRepo) GetMarket(ctx context.Context, marketID string) (*model.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored[marketID], nil
}

func (f *fakeMarketRepo) ListActiveMarkets(ctx context.Context, limit int) ([]*model.Market, error) {
	return nil, nil
}

// fakeTradeRepo 以map按ID存成交，重复ID的保存为no-op（模拟upsert语义）
type fakeTradeRepo struct {
	mu      sync.Mutex
	trades  map[string]*model.Trade
	saves   int
	saveErr error
}

func newFakeTradeRepo() *fakeTradeRepo {
	return &fakeTradeRepo{trades: make(map[string]*model.Trade)}
}

func (f *fakeTradeRepo) SaveTrade(ctx context.Context, trade *model.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	if _, ok := f.trades[trade.ID]; !ok {
		f.trades[trade.ID] = trade
	}
	return nil
}

func (f *fakeTradeRepo) RecentWhaleTrades(ctx context.Context, since time.Time, minSize float64, limit int) ([]*model.Trade, error) {
	return nil, nil
}

func (f *fakeTradeRepo) TopTradersSince(ctx context.Context, since time.Time, minSize float64, limit int) ([]*repository.TraderStat, error) {
	return nil, nil
}

func (f *fakeTradeRepo) LargestTradeBetween(ctx context.Context, start, end time.Time, minSize float64) (*model.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var largest *model.Trade
	for _, tr := range f.trades {
		if tr.Size < minSize || tr.Timestamp.Before(start) || !tr.Timestamp.Before(end) {
			continue
		}
		if largest == nil || tr.Size > largest.Size {
			largest = tr
		}
	}
	return largest, nil
}

func (f *fakeTradeRepo) TraderLifetimeAggregate(ctx context.Context, address string) (*repository.TraderAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	agg := &repository.TraderAggregate{}
	for _, tr := range f.trades {
		if tr.TraderAddress == address {
			agg.TotalTrades++
			agg.TotalVolume += tr.Size
		}
	}
	return agg, nil
}

func (f *fakeTradeRepo) TopMarketsByRecentActivity(ctx context.Context, since time.Time, minSize float64, limit int) ([]*repository.MarketActivity, error) {
	return nil, nil
}

func (f *fakeTradeRepo) TradesByTrader(ctx context.Context, address string, limit int) ([]*model.Trade, error) {
	return nil, nil
}

func (f *fakeTradeRepo) CountWhaleTradesSince(ctx context.Context, since time.Time, minSize float64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, tr := range f.trades {
		if tr.Size >= minSize && !tr.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeWhaleRepo struct {
	mu        sync.Mutex
	ensured   map[string]int
	refreshed map[string]int
}

func newFakeWhaleRepo() *fakeWhaleRepo {
	return &fakeWhaleRepo{ensured: make(map[string]int), refreshed: make(map[string]int)}
}

func (f *fakeWhaleRepo) GetWhale(ctx context.Context, address string) (*model.Whale, error) {
	return nil, nil
}

func (f *fakeWhaleRepo) EnsureWhale(ctx context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured[address]++
	return nil
}

func (f *fakeWhaleRepo) RefreshStats(ctx context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed[address]++
	return nil
}

func (f *fakeWhaleRepo) TopWhales(ctx context.Context, orderBy string, limit int) ([]*model.Whale, error) {
	return nil, nil
}

func (f *fakeWhaleRepo) SetNickname(ctx context.Context, address, nickname string) error {
	return nil
}

// fakeBroadcastRepo 模拟broadcast_log的原子登记：同一ID只有第一次返回true
type fakeBroadcastRepo struct {
	mu       sync.Mutex
	recorded map[string]bool
	err      error
}

func newFakeBroadcastRepo() *fakeBroadcastRepo {
	return &fakeBroadcastRepo{recorded: make(map[string]bool)}
}

func (f *fakeBroadcastRepo) TryRecordBroadcast(ctx context.Context, tradeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.recorded[tradeID] {
		return false, nil
	}
	f.recorded[tradeID] = true
	return true, nil
}

type sentMessage struct {
	channelID string
	text      string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{channelID: channelID, text: text})
	return nil
}

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakePager 预置页序列的翻页器
type fakePager struct {
	pages    [][]map[string]any
	idx      int
	strategy string
}

func (f *fakePager) Next(ctx context.Context) ([]map[string]any, error) {
	if f.idx >= len(f.pages) {
		return nil, nil
	}
	page := f.pages[f.idx]
	f.idx++
	return page, nil
}

func (f *fakePager) Strategy() string {
	if f.strategy == "" {
		return "before"
	}
	return f.strategy
}
