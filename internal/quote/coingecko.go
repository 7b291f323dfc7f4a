package quote

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultCoinGeckoURL is the public CoinGecko API root.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// DefaultCoinID is the CoinGecko id of BNB.
const DefaultCoinID = "binancecoin"

// CoinGeckoSource reads the base-currency price from CoinGecko's simple price endpoint.
type CoinGeckoSource struct {
	client  *fasthttp.Client
	baseURL string
	coinID  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewCoinGeckoSource builds a CoinGecko-backed Source.
func NewCoinGeckoSource(baseURL, coinID string, timeout time.Duration, logger *zap.Logger) *CoinGeckoSource {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if coinID == "" {
		coinID = DefaultCoinID
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoinGeckoSource{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		coinID:  coinID,
		timeout: timeout,
		logger:  logger.Named("coingecko"),
	}
}

// BasePriceUSD implements Source.
func (s *CoinGeckoSource) BasePriceUSD(ctx context.Context) (float64, error) {
	query := url.Values{}
	query.Set("ids", s.coinID)
	query.Set("vs_currencies", "usd")
	requestURL := s.baseURL + "/simple/price?" + query.Encode()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = s.client.DoDeadline(req, resp, deadline)
	} else {
		err = s.client.DoTimeout(req, resp, s.timeout)
	}
	if err != nil {
		return 0, fmt.Errorf("request %s: %w", requestURL, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		s.logger.Warn("quote request failed", zap.Int("status", resp.StatusCode()), zap.ByteString("body", resp.Body()))
		return 0, fmt.Errorf("request %s: status %d", requestURL, resp.StatusCode())
	}

	var payload map[string]map[string]float64
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return 0, fmt.Errorf("decode quote: %w", err)
	}
	price := payload[s.coinID]["usd"]
	if price <= 0 {
		return 0, fmt.Errorf("%w: no usd price for %s", ErrNoQuote, s.coinID)
	}
	s.logger.Debug("base price fetched", zap.String("coin", s.coinID), zap.Float64("usd", price))
	return price, nil
}
