package domain

import "github.com/ethereum/go-ethereum/common"

// TxKind classifies journaled transactions.
type TxKind string

// Transaction kinds. Mint, Purchase, Sale and Transfer mirror the
// transaction page filters; the rest are governance and housekeeping calls.
const (
	TxKindMint             TxKind = "mint"
	TxKindPurchase         TxKind = "purchase"
	TxKindSale             TxKind = "sale"
	TxKindTransfer         TxKind = "transfer"
	TxKindApprove          TxKind = "approve"
	TxKindCancel           TxKind = "cancel"
	TxKindProposeManager   TxKind = "propose_manager"
	TxKindVoteManager      TxKind = "vote_manager"
	TxKindFinalizeElection TxKind = "finalize_election"
	TxKindSetManager       TxKind = "set_manager"
	TxKindCreateProposal   TxKind = "create_proposal"
	TxKindVoteProposal     TxKind = "vote_proposal"
	TxKindFinalizeProposal TxKind = "finalize_proposal"
	TxKindExecuteProposal  TxKind = "execute_proposal"
)

// TxStatus is the lifecycle state of a journaled transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
)

// TxEvent is one status transition of a submitted transaction.
// Corresponds to tx_events table in ClickHouse. Append-only.
type TxEvent struct {
	Hash         common.Hash    `json:"hash"`
	Status       TxStatus       `json:"status"`
	Kind         TxKind         `json:"type"`
	From         common.Address `json:"from"`
	To           common.Address `json:"to"`
	TokenAddress common.Address `json:"tokenAddress"`
	PropertyName string         `json:"propertyName"`
	Amount       string         `json:"amount"` // display text, may be empty
	BlockNumber  uint64         `json:"blockNumber"`
	Error        string         `json:"error,omitempty"`
	Timestamp    int64          `json:"time"` // ms
}

// Final reports whether no further status can follow s.
func (s TxStatus) Final() bool {
	return s == TxStatusCompleted || s == TxStatusFailed
}

// Rank orders statuses of the same transaction: final statuses supersede
// pending ones.
func (s TxStatus) Rank() int {
	if s.Final() {
		return 1
	}
	return 0
}

// Supersedes reports whether e is a later state of the same transaction
// than other.
func (e *TxEvent) Supersedes(other *TxEvent) bool {
	if e.Status.Rank() != other.Status.Rank() {
		return e.Status.Rank() > other.Status.Rank()
	}
	return e.Timestamp > other.Timestamp
}

// TxResult is the outcome of a confirmed transaction.
type TxResult struct {
	Hash        common.Hash `json:"hash"`
	BlockNumber uint64      `json:"blockNumber"`
	Status      TxStatus    `json:"status"`
}
