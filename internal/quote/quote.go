package quote

import (
	"context"
	"errors"
)

// ErrNoQuote is returned when the base-currency price is unavailable.
var ErrNoQuote = errors.New("base currency quote unavailable")

// Source returns the fiat price of the chain's base currency.
type Source interface {
	BasePriceUSD(ctx context.Context) (float64, error)
}

// StaticSource always returns the same price.
type StaticSource float64

// BasePriceUSD implements Source.
func (s StaticSource) BasePriceUSD(context.Context) (float64, error) {
	if s <= 0 {
		return 0, ErrNoQuote
	}
	return float64(s), nil
}
