package risk

import "github.com/shopspring/decimal"

// Sizing policies.
const (
	SizingFixed = "fixed"  // spend BetSize per entry
	SizingAllIn = "all_in" // spend the whole available balance
)

// Reason explains a rejected entry. Rejections are expected outcomes, not errors.
type Reason string

const (
	ReasonAlreadyOpen         Reason = "already_open"
	ReasonPositionCap         Reason = "position_cap"
	ReasonInsufficientBalance Reason = "insufficient_balance"
)

// Config holds entry admission limits.
type Config struct {
	MaxPositions int     `json:"max_positions"`
	Sizing       string  `json:"sizing"`
	BetSize      float64 `json:"bet_size"`    // quote per entry in fixed mode
	MinBalance   float64 `json:"min_balance"` // all_in requires available > MinBalance
	// QuoteDecimals truncates all_in sizes.
	QuoteDecimals int32 `json:"quote_decimals"`
}

// DefaultConfig returns the reference limits.
func DefaultConfig() Config {
	return Config{
		MaxPositions:  3,
		Sizing:        SizingFixed,
		BetSize:       25,
		MinBalance:    10,
		QuoteDecimals: 2,
	}
}

// Decision is the result of Admit. Size is the quote amount to spend.
type Decision struct {
	Allowed bool            `json:"allowed"`
	Reason  Reason          `json:"reason,omitempty"`
	Size    decimal.Decimal `json:"size"`
}

// Metrics counts gate outcomes.
type Metrics struct {
	ChecksTotal     uint64            `json:"checks_total"`
	ApprovalsTotal  uint64            `json:"approvals_total"`
	RejectionsTotal map[Reason]uint64 `json:"rejections_total"`
}
