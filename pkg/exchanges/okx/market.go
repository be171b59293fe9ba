package okx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is a parsed tickers push. OKX sends every number as a string.
type Ticker struct {
	InstID string
	Last   float64
	Ask    float64
	Bid    float64
	Vol24h float64
	TS     time.Time // exchange timestamp
}

// SpreadPct is (ask-bid)/bid in percent, 0 when bid is not positive.
func (t Ticker) SpreadPct() float64 {
	if t.Bid <= 0 {
		return 0
	}
	return (t.Ask - t.Bid) / t.Bid * 100
}

type wireTicker struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	AskPx  string `json:"askPx"`
	BidPx  string `json:"bidPx"`
	Vol24h string `json:"vol24h"`
	TS     string `json:"ts"`
}

// TickerError is one entry of a tickers push that failed to parse.
type TickerError struct {
	InstID string
	Err    error
}

func (e *TickerError) Error() string {
	return fmt.Sprintf("ticker %s: %v", e.InstID, e.Err)
}

func (e *TickerError) Unwrap() error { return e.Err }

// DecodeTickers parses the data array of a tickers push. Entries with a
// missing or non-numeric price are skipped and reported as joined
// *TickerError values next to the tickers that did parse. A data field
// that is not an array yields no tickers.
func DecodeTickers(data json.RawMessage) ([]Ticker, error) {
	var raw []wireTicker
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("tickers: %w", err)
	}

	out := make([]Ticker, 0, len(raw))
	var errs []error
	for _, w := range raw {
		t, err := w.parse()
		if err != nil {
			errs = append(errs, &TickerError{InstID: w.InstID, Err: err})
			continue
		}
		out = append(out, t)
	}
	return out, errors.Join(errs...)
}

// SkippedTickers reports how many entries err rejected, or 1 when the
// whole push was unreadable.
func SkippedTickers(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

func (w wireTicker) parse() (Ticker, error) {
	if w.InstID == "" {
		return Ticker{}, fmt.Errorf("missing instId")
	}
	last, err := parsePrice("last", w.Last)
	if err != nil {
		return Ticker{}, err
	}
	ask, err := parsePrice("askPx", w.AskPx)
	if err != nil {
		return Ticker{}, err
	}
	bid, err := parsePrice("bidPx", w.BidPx)
	if err != nil {
		return Ticker{}, err
	}
	ms, err := strconv.ParseInt(w.TS, 10, 64)
	if err != nil {
		return Ticker{}, fmt.Errorf("ts %q: %w", w.TS, err)
	}
	vol, _ := strconv.ParseFloat(w.Vol24h, 64)

	return Ticker{
		InstID: w.InstID,
		Last:   last,
		Ask:    ask,
		Bid:    bid,
		Vol24h: vol,
		TS:     time.UnixMilli(ms),
	}, nil
}

func parsePrice(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", field, s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s %q: not positive", field, s)
	}
	return v, nil
}

// BalanceDetail is one currency entry of an account push.
type BalanceDetail struct {
	Ccy      string
	AvailBal decimal.Decimal
	CashBal  decimal.Decimal
}

// AccountData is one element of an account push.
type AccountData struct {
	UTime   time.Time
	Details []BalanceDetail
}

type wireAccount struct {
	UTime   string `json:"uTime"`
	Details []struct {
		Ccy      string `json:"ccy"`
		AvailBal string `json:"availBal"`
		CashBal  string `json:"cashBal"`
	} `json:"details"`
}

// DecodeAccount parses the data array of an account push. Empty balance
// strings read as zero.
func DecodeAccount(data json.RawMessage) ([]AccountData, error) {
	var raw []wireAccount
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}

	out := make([]AccountData, 0, len(raw))
	for _, w := range raw {
		acc := AccountData{Details: make([]BalanceDetail, 0, len(w.Details))}
		if ms, err := strconv.ParseInt(w.UTime, 10, 64); err == nil {
			acc.UTime = time.UnixMilli(ms)
		}
		for _, d := range w.Details {
			avail, err := parseAmount(d.AvailBal)
			if err != nil {
				return nil, fmt.Errorf("account %s availBal: %w", d.Ccy, err)
			}
			cash, err := parseAmount(d.CashBal)
			if err != nil {
				return nil, fmt.Errorf("account %s cashBal: %w", d.Ccy, err)
			}
			acc.Details = append(acc.Details, BalanceDetail{Ccy: d.Ccy, AvailBal: avail, CashBal: cash})
		}
		out = append(out, acc)
	}
	return out, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
