package signalapi

import "fmt"

// FetchError is a network, timeout or non-2xx failure after the retry
// budget is exhausted. The ticker is skipped for the cycle.
type FetchError struct {
	Ticker string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch signals for %s: %v", e.Ticker, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError marks one timeframe entry that could not be normalized.
// It never fails the ticker's other timeframes.
type ParseError struct {
	Ticker    string
	Timeframe string
	Reason    string
}

func (e *ParseError) Error() string {
	if e.Timeframe == "" {
		return fmt.Sprintf("parse signals for %s: %s", e.Ticker, e.Reason)
	}
	return fmt.Sprintf("parse signal %s %s: %s", e.Ticker, e.Timeframe, e.Reason)
}
