package audit

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

// OrderEvent is one order lifecycle observation within a cycle.
type OrderEvent struct {
	ClientID   string          `json:"clientId"`
	ExchangeID string          `json:"exchangeId,omitempty"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Route      string          `json:"route"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Realized   decimal.Decimal `json:"realized"`
}

// CycleRecord is the append-only system of record for one decision
// cycle: every rejection with its caps snapshot, every order event, and
// the active config hash for fleet drift detection.
type CycleRecord struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Mode       string          `json:"mode"`
	Status     string          `json:"status"`
	ConfigHash string          `json:"configHash"`
	NAV        decimal.Decimal `json:"nav"`

	Proposals int                   `json:"proposals"`
	Approved  int                   `json:"approved"`
	Decisions []schema.RiskDecision `json:"decisions,omitempty"`
	Orders    []OrderEvent          `json:"orders,omitempty"`

	DailyPnL  decimal.Decimal `json:"dailyPnl"`
	WeeklyPnL decimal.Decimal `json:"weeklyPnl"`

	StageMillis map[string]int64 `json:"stageMillis,omitempty"`
}
