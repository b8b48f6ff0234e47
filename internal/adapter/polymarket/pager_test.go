package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"WhaleSync/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(io.Discard)
	return lg
}

func newTestClient(baseURL string) *Client {
	return NewClient(&config.PolymarketConfig{
		DataAPIBaseURL:  baseURL,
		GammaAPIBaseURL: baseURL,
		Timeout:         5,
	}, newTestLogger())
}

func tradeItem(id string, epoch int64) map[string]any {
	return map[string]any{
		"transactionHash": id,
		"proxyWallet":     "0xabc",
		"size":            100.0,
		"price":           1.0,
		"timestamp":       epoch,
	}
}

// Server advertises a cursor: pager must lock onto cursor paging and
// echo it back until the cursor runs out.
func TestTradePager_CursorStrategy(t *testing.T) {
	t.Parallel()

	var gotCursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		gotCursors = append(gotCursors, cursor)
		switch cursor {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []any{tradeItem("t1", 1700000000)},
				"next": "page-2",
			})
		case "page-2":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []any{tradeItem("t2", 1699990000)},
			})
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
	}))
	defer srv.Close()

	p := NewTradePager(newTestClient(srv.URL), newTestLogger(), 50)
	ctx := context.Background()

	page1, err := p.Next(ctx)
	require.NoError(t, err)
	require.Len(t, page1, 1)
	assert.Equal(t, "cursor", p.Strategy())

	page2, err := p.Next(ctx)
	require.NoError(t, err)
	require.Len(t, page2, 1)

	// cursor exhausted: next call ends without another request
	page3, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, page3)

	assert.Equal(t, []string{"", "page-2"}, gotCursors)
}

// No cursor in the response: pager falls back to `before` paging with
// oldest-1s and keeps walking backwards, never refetching a page.
func TestTradePager_BeforeStrategy(t *testing.T) {
	t.Parallel()

	base := int64(1700000000)
	var gotBefores []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		before := r.URL.Query().Get("before")
		gotBefores = append(gotBefores, before)
		switch len(gotBefores) {
		case 1:
			json.NewEncoder(w).Encode([]any{
				tradeItem("t1", base),
				tradeItem("t2", base-100),
			})
		case 2:
			json.NewEncoder(w).Encode([]any{tradeItem("t3", base-300)})
		default:
			json.NewEncoder(w).Encode([]any{})
		}
	}))
	defer srv.Close()

	p := NewTradePager(newTestClient(srv.URL), newTestLogger(), 50)
	ctx := context.Background()

	page1, err := p.Next(ctx)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "before", p.Strategy())

	page2, err := p.Next(ctx)
	require.NoError(t, err)
	require.Len(t, page2, 1)

	page3, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, page3)

	require.Len(t, gotBefores, 3)
	assert.Empty(t, gotBefores[0])
	// before = oldest of previous page minus one second
	wantBefore2 := time.Unix(base-101, 0).UTC().Format(time.RFC3339)
	wantBefore3 := time.Unix(base-301, 0).UTC().Format(time.RFC3339)
	assert.Equal(t, wantBefore2, gotBefores[1])
	assert.Equal(t, wantBefore3, gotBefores[2])
}

// Server ignores `before` and keeps returning the same data: pager must
// detect the stall and fall back to offset paging.
func TestTradePager_BeforeStallsFallsBackToOffset(t *testing.T) {
	t.Parallel()

	base := int64(1700000000)
	var gotOffsets []string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if off := r.URL.Query().Get("offset"); off != "" {
			gotOffsets = append(gotOffsets, off)
		}
		if calls <= 3 {
			// same page over and over, before has no effect
			json.NewEncoder(w).Encode([]any{tradeItem(fmt.Sprintf("t%d", calls), base)})
			return
		}
		json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	p := NewTradePager(newTestClient(srv.URL), newTestLogger(), 50)
	ctx := context.Background()

	_, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "before", p.Strategy())

	// identical oldest timestamp -> stall detected
	_, err = p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "offset", p.Strategy())

	_, err = p.Next(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, gotOffsets)
	assert.Equal(t, "50", gotOffsets[0])
}

// Bare-array and wrapped responses both decode; cursor key variants are found.
func TestExtractTradeItems(t *testing.T) {
	t.Parallel()

	items, cursor := extractTradeItems([]any{map[string]any{"a": 1.0}})
	require.Len(t, items, 1)
	assert.Empty(t, cursor)

	items, cursor = extractTradeItems(map[string]any{
		"trades":     []any{map[string]any{"a": 1.0}, map[string]any{"b": 2.0}},
		"nextCursor": "abc",
	})
	require.Len(t, items, 2)
	assert.Equal(t, "abc", cursor)

	items, cursor = extractTradeItems("garbage")
	assert.Empty(t, items)
	assert.Empty(t, cursor)
}

// Non-200 upstream response surfaces as an error.
func TestClient_FetchRecentTradesUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchRecentTrades(context.Background(), 10)
	require.Error(t, err)
}

// Gamma catalog: string numerics parse, items without id are skipped.
func TestClient_FetchMarkets(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":           "m1",
				"question":     "Who wins?",
				"category":     "Politics",
				"volume":       "12345.5",
				"liquidity":    777.0,
				"active":       true,
				"end_date_iso": "2026-12-31T00:00:00Z",
			},
			{"question": "no id, dropped"},
			{"condition_id": "m2", "active": true},
		})
	}))
	defer srv.Close()

	markets, err := newTestClient(srv.URL).FetchMarkets(context.Background(), 10, true)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, "m1", markets[0].MarketID)
	assert.InDelta(t, 12345.5, markets[0].Volume, 1e-9)
	assert.InDelta(t, 777.0, markets[0].Liquidity, 1e-9)
	require.NotNil(t, markets[0].EndDate)
	assert.Equal(t, 2026, markets[0].EndDate.Year())

	assert.Equal(t, "m2", markets[1].MarketID)
	assert.Equal(t, "Unknown Question", markets[1].Question)
	assert.Equal(t, "Other", markets[1].Category)
	assert.Nil(t, markets[1].EndDate)
}
