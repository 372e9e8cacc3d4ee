package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Alert is emitted when a threat is detected. Immutable once created; the
// alerting collaborator consumes it one-way with no acknowledgment.
type Alert struct {
	ID        string         `json:"id"`
	Threat    ThreatType     `json:"threat"`
	Severity  Severity       `json:"severity"`
	FeedID    string         `json:"feedId"`
	Target    common.Address `json:"target"`
	Attacker  common.Address `json:"attacker,omitempty"`
	GasPrice  *big.Int       `json:"gasPrice"`
	Score     int            `json:"score"`
	TxHash    common.Hash    `json:"txHash"`
	CreatedAt time.Time      `json:"createdAt"`
}
