package pricefeed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingFeed struct{}

func (failingFeed) Spot(context.Context) (Quote, error) {
	return Quote{}, errors.New("upstream unavailable")
}

func TestStaticFeed(t *testing.T) {
	feed := NewStaticFeed(7_500_000)

	quote, err := feed.Spot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7_500_000), quote.PriceUnits)
	assert.Equal(t, "static", quote.Source)

	feed.SetPrice(6_500_000)
	quote, err = feed.Spot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(6_500_000), quote.PriceUnits)
}

func TestStaticFeed_Unprimed(t *testing.T) {
	feed := NewStaticFeed(0)
	_, err := feed.Spot(context.Background())
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestMedianFeed(t *testing.T) {
	feed := NewMedianFeed(
		NewStaticFeed(7_400_000),
		NewStaticFeed(7_500_000),
		NewStaticFeed(7_600_000),
	)

	quote, err := feed.Spot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7_500_000), quote.PriceUnits)
	assert.Equal(t, "median(3/3)", quote.Source)
}

func TestMedianFeed_ToleratesFailures(t *testing.T) {
	feed := NewMedianFeed(
		failingFeed{},
		NewStaticFeed(7_500_000),
		failingFeed{},
	)

	quote, err := feed.Spot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7_500_000), quote.PriceUnits)
	assert.Equal(t, "median(1/3)", quote.Source)
}

func TestMedianFeed_AllFailed(t *testing.T) {
	feed := NewMedianFeed(failingFeed{}, failingFeed{})
	_, err := feed.Spot(context.Background())
	assert.ErrorIs(t, err, ErrNoQuote)
}
