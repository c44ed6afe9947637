package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/97woo/oraclevm/common/logging"
	"go.uber.org/zap"
)

// ErrNoQuote is returned when no usable spot quote is available.
var ErrNoQuote = errors.New("no spot quote available")

// ErrStaleQuote is returned when the freshest quote is older than the
// caller's tolerance.
var ErrStaleQuote = errors.New("spot quote is stale")

// Quote is one observed spot price.
type Quote struct {
	// PriceUnits is the spot price in the smallest price unit.
	PriceUnits uint64
	// Timestamp is when the price was observed.
	Timestamp time.Time
	// Source names the feed that produced the quote.
	Source string
}

// Feed supplies spot prices for settlement.
type Feed interface {
	Spot(ctx context.Context) (Quote, error)
}

// StaticFeed serves a manually set quote. Used in tests and regtest
// deployments where no market data is wired up.
type StaticFeed struct {
	mu    sync.RWMutex
	quote Quote
}

// NewStaticFeed returns a StaticFeed primed with the given price.
func NewStaticFeed(priceUnits uint64) *StaticFeed {
	return &StaticFeed{quote: Quote{
		PriceUnits: priceUnits,
		Timestamp:  time.Now(),
		Source:     "static",
	}}
}

// SetPrice replaces the served quote.
func (f *StaticFeed) SetPrice(priceUnits uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quote = Quote{PriceUnits: priceUnits, Timestamp: time.Now(), Source: "static"}
}

func (f *StaticFeed) Spot(_ context.Context) (Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.quote.PriceUnits == 0 {
		return Quote{}, ErrNoQuote
	}
	return f.quote, nil
}

// MedianFeed aggregates several upstream feeds and serves the median of the
// quotes that succeed. Individual upstream failures are tolerated as long as
// at least one quote comes back.
type MedianFeed struct {
	feeds []Feed
}

// NewMedianFeed aggregates the given upstream feeds.
func NewMedianFeed(feeds ...Feed) *MedianFeed {
	return &MedianFeed{feeds: feeds}
}

func (f *MedianFeed) Spot(ctx context.Context) (Quote, error) {
	logger := logging.GetLoggerFromContext(ctx)

	quotes := make([]Quote, 0, len(f.feeds))
	for _, feed := range f.feeds {
		quote, err := feed.Spot(ctx)
		if err != nil {
			logger.Warn("Upstream price feed failed", zap.Error(err))
			continue
		}
		quotes = append(quotes, quote)
	}
	if len(quotes) == 0 {
		return Quote{}, fmt.Errorf("%w: all %d upstream feeds failed", ErrNoQuote, len(f.feeds))
	}

	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].PriceUnits < quotes[j].PriceUnits
	})
	median := quotes[len(quotes)/2]
	median.Source = fmt.Sprintf("median(%d/%d)", len(quotes), len(f.feeds))
	return median, nil
}
