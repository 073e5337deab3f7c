package pricing

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrFeedMissing indicates that no price feed is registered for a token.
	ErrFeedMissing = errors.New("pricing: price feed missing")
	// ErrStalePrice indicates that the newest observation is older than the
	// acceptable delay.
	ErrStalePrice = errors.New("pricing: stale price feed")
	// ErrInvalidPrice is returned for non-positive prices.
	ErrInvalidPrice = errors.New("pricing: price must be positive")
)

// Oracle converts an amount of one token into the equivalent amount of another.
// Implementations must fail when a backing feed is stale or missing.
type Oracle interface {
	EquivalentOutputAmount(amountIn *big.Int, inDecimals, outDecimals uint8, tokenIn, tokenOut common.Address) (*big.Int, error)
}

// Feed is a single price observation quoted against a shared reference unit.
type Feed struct {
	Price     *big.Int
	Decimals  uint8
	UpdatedAt int64
}

// FeedOracle keeps the latest observation per token and refuses to convert
// against observations older than the acceptable delay.
type FeedOracle struct {
	mu              sync.RWMutex
	feeds           map[common.Address]Feed
	acceptableDelay time.Duration
	nowFn           func() int64
}

// NewFeedOracle returns an oracle enforcing the supplied freshness window.
func NewFeedOracle(acceptableDelay time.Duration) *FeedOracle {
	return &FeedOracle{
		feeds:           make(map[common.Address]Feed),
		acceptableDelay: acceptableDelay,
		nowFn:           func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the clock used for staleness checks.
func (o *FeedOracle) SetNowFunc(now func() int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if now == nil {
		o.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	o.nowFn = now
}

// SetAcceptableDelay updates the freshness window.
func (o *FeedOracle) SetAcceptableDelay(delay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.acceptableDelay = delay
}

// AcceptableDelay returns the freshness window.
func (o *FeedOracle) AcceptableDelay() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.acceptableDelay
}

// SetFeed records a new observation for the token.
func (o *FeedOracle) SetFeed(token common.Address, price *big.Int, decimals uint8, updatedAt int64) error {
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.feeds[token] = Feed{Price: new(big.Int).Set(price), Decimals: decimals, UpdatedAt: updatedAt}
	return nil
}

// Feed returns the latest observation for the token.
func (o *FeedOracle) Feed(token common.Address) (Feed, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	feed, ok := o.feeds[token]
	if !ok {
		return Feed{}, false
	}
	feed.Price = new(big.Int).Set(feed.Price)
	return feed, true
}

func (o *FeedOracle) freshFeed(token common.Address, now int64) (Feed, error) {
	feed, ok := o.feeds[token]
	if !ok {
		return Feed{}, fmt.Errorf("%w: %s", ErrFeedMissing, token.Hex())
	}
	if o.acceptableDelay > 0 && now-feed.UpdatedAt > int64(o.acceptableDelay/time.Second) {
		return Feed{}, fmt.Errorf("%w: %s updated at %d, now %d", ErrStalePrice, token.Hex(), feed.UpdatedAt, now)
	}
	return feed, nil
}

// EquivalentOutputAmount implements Oracle. Converting a token into itself only
// rescales between decimal precisions and never consults a feed.
func (o *FeedOracle) EquivalentOutputAmount(amountIn *big.Int, inDecimals, outDecimals uint8, tokenIn, tokenOut common.Address) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, fmt.Errorf("pricing: amount must not be negative")
	}
	if tokenIn == tokenOut {
		out := new(big.Int).Mul(amountIn, pow10(outDecimals))
		return out.Quo(out, pow10(inDecimals)), nil
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	now := o.nowFn()
	in, err := o.freshFeed(tokenIn, now)
	if err != nil {
		return nil, err
	}
	out, err := o.freshFeed(tokenOut, now)
	if err != nil {
		return nil, err
	}

	// amountIn * priceIn * 10^(outDecimals+outPriceDecimals) /
	// (priceOut * 10^(inDecimals+inPriceDecimals))
	numerator := new(big.Int).Mul(amountIn, in.Price)
	numerator.Mul(numerator, pow10(outDecimals))
	numerator.Mul(numerator, pow10(out.Decimals))
	denominator := new(big.Int).Mul(out.Price, pow10(inDecimals))
	denominator.Mul(denominator, pow10(in.Decimals))
	return numerator.Quo(numerator, denominator), nil
}

func pow10(exp uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}
