package signalapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/forecaster-ua/cryptomaxa/internal/config"
	"github.com/forecaster-ua/cryptomaxa/internal/logger"
)

// Timeframes requested from the upstream API on every call.
var Timeframes = []string{"15m", "1h", "4h", "1d"}

// Observation is one normalized signal reading for a ticker+timeframe.
type Observation struct {
	Ticker       string
	Timeframe    string
	Direction    string // LONG or SHORT
	EntryPrice   decimal.Decimal
	TakeProfit   decimal.NullDecimal
	StopLoss     decimal.NullDecimal
	Confidence   float64
	RiskReward   decimal.NullDecimal
	CurrentPrice decimal.Decimal
}

// Result carries the observations of one fetch plus the per-entry
// parse failures that were skipped.
type Result struct {
	Observations []Observation
	Skipped      []*ParseError
}

type Client struct {
	http      *resty.Client
	lang      string
	modelType string
	logger    *logger.Logger
}

func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.BaseURL).
		SetTimeout(cfg.APITimeout()).
		SetHeader("User-Agent", "Cryptomaxa-Bot/1.0").
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(isRetryable)

	return &Client{
		http:      httpClient,
		lang:      cfg.API.Lang,
		modelType: cfg.API.ModelType,
		logger:    log,
	}
}

func isRetryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// NormalizePair uppercases a ticker and appends the USDT quote suffix
// exactly once.
func NormalizePair(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if strings.HasSuffix(t, "USDT") {
		return t
	}
	return t + "USDT"
}

// Fetch requests all timeframes for one ticker and normalizes the
// response. Skipped entries are reported in the result, not as errors;
// the returned error is always a *FetchError.
func (c *Client) Fetch(ctx context.Context, ticker string) (*Result, error) {
	pair := NormalizePair(ticker)

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("pair", pair).
		SetQueryParam("lang", c.lang).
		SetQueryParam("model_type", c.modelType)
	for _, tf := range Timeframes {
		req.QueryParam.Add("timeframes", tf)
	}

	resp, err := req.Get("/multi_signal")
	if err != nil {
		return nil, &FetchError{Ticker: pair, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &FetchError{Ticker: pair, Err: fmt.Errorf("status %d: %.200s", resp.StatusCode(), resp.String())}
	}

	result := ParseResponse(resp.Body(), pair)
	for _, skip := range result.Skipped {
		c.logger.Warn("signal entry skipped", "ticker", pair, "timeframe", skip.Timeframe, "reason", skip.Reason)
	}
	c.logger.Debug("signals fetched", "ticker", pair, "count", len(result.Observations))
	return result, nil
}
