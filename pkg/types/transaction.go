package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Transaction represents an observed blockchain transaction as supplied by
// the ingestion collaborator. It is immutable once observed.
type Transaction struct {
	Hash        common.Hash     `json:"hash"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to,omitempty"`
	Value       *big.Int        `json:"value"`
	GasPrice    *big.Int        `json:"gasPrice"`
	Timestamp   time.Time       `json:"timestamp"`
	BlockNumber uint64          `json:"blockNumber,omitempty"`
}

// Unit is one whole token in the 18-decimal fixed-point convention.
var Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// PriceObservation is a single oracle reading for a feed. A feed that has
// never been observed reports the zero value (price 0, timestamp 0).
type PriceObservation struct {
	FeedID    string    `json:"feedId"`
	Price     *big.Int  `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// IsZero reports whether the observation is the "never observed" sentinel.
func (o PriceObservation) IsZero() bool {
	return (o.Price == nil || o.Price.Sign() == 0) && o.Timestamp.IsZero()
}

// ThreatType classifies a detected MEV pattern.
type ThreatType string

const (
	ThreatSandwich  ThreatType = "sandwich"
	ThreatFrontrun  ThreatType = "frontrun"
	ThreatArbitrage ThreatType = "arbitrage"
	ThreatNone      ThreatType = "none"
)

// Severity is the alerting tier derived from an analytics risk score.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityForScore maps a 0-100 analytics score onto an alert severity tier.
func SeverityForScore(score int) Severity {
	switch {
	case score > 75:
		return SeverityCritical
	case score > 50:
		return SeverityHigh
	case score > 25:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
