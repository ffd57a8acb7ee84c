package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// ViolationCode is a closed enum of admission-control rejection reasons.
// Machine-readable; human detail travels in Violation.Message.
type ViolationCode uint16

const (
	ViolationNone ViolationCode = iota

	// batch-level circuit breakers
	ViolationKillSwitch
	ViolationDailyStopLoss
	ViolationWeeklyStopLoss
	ViolationMaxDrawdown
	ViolationExchangeHealth

	// pacing / cooldown
	ViolationTradeSpacing
	ViolationSymbolSpacing
	ViolationHourlyTradeLimit
	ViolationDailyTradeLimit
	ViolationSymbolCooldown
	ViolationStreakCooldown

	// sizing
	ViolationBelowMinAfterCaps
	ViolationVenueMinimum
	ViolationNoOpenPosition
)

func (c ViolationCode) String() string {
	switch c {
	case ViolationNone:
		return "none"
	case ViolationKillSwitch:
		return "kill_switch"
	case ViolationDailyStopLoss:
		return "daily_stop_loss"
	case ViolationWeeklyStopLoss:
		return "weekly_stop_loss"
	case ViolationMaxDrawdown:
		return "max_drawdown"
	case ViolationExchangeHealth:
		return "exchange_health"
	case ViolationTradeSpacing:
		return "trade_spacing"
	case ViolationSymbolSpacing:
		return "symbol_spacing"
	case ViolationHourlyTradeLimit:
		return "hourly_trade_limit"
	case ViolationDailyTradeLimit:
		return "daily_trade_limit"
	case ViolationSymbolCooldown:
		return "symbol_cooldown"
	case ViolationStreakCooldown:
		return "streak_cooldown"
	case ViolationBelowMinAfterCaps:
		return "below_min_after_caps"
	case ViolationVenueMinimum:
		return "below_venue_minimum"
	case ViolationNoOpenPosition:
		return "no_open_position"
	default:
		return "unknown"
	}
}

// Batch reports whether the code rejects the whole cycle rather than a
// single proposal.
func (c ViolationCode) Batch() bool {
	switch c {
	case ViolationKillSwitch, ViolationDailyStopLoss, ViolationWeeklyStopLoss,
		ViolationMaxDrawdown, ViolationExchangeHealth:
		return true
	default:
		return false
	}
}

// Violation is a single named check failure with remediation detail.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
}

// CapsSnapshot is the numeric capacity view recorded with every decision
// for audit. Values are notional dollars remaining at decision time.
type CapsSnapshot struct {
	SymbolRemaining decimal.Decimal `json:"symbolRemaining"`
	TierRemaining   decimal.Decimal `json:"tierRemaining"`
	TotalRemaining  decimal.Decimal `json:"totalRemaining"`
	MinNotional     decimal.Decimal `json:"minNotional"`
}

// RiskDecision is the per-proposal admission outcome.
type RiskDecision struct {
	Symbol           string          `json:"symbol"`
	Side             Side            `json:"side"`
	Approved         bool            `json:"approved"`
	RequestedPct     decimal.Decimal `json:"requestedPct"`
	ApprovedPct      decimal.Decimal `json:"approvedPct"`
	ApprovedNotional decimal.Decimal `json:"approvedNotional"`
	Violations       []Violation     `json:"violations,omitempty"`
	Caps             CapsSnapshot    `json:"caps"`
	DecidedAt        time.Time       `json:"decidedAt"`
}
