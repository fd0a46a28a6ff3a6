package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/observability"
	"realestate-token-hub/internal/storage"
)

// TxEventStore implements storage.TxEventStore using ClickHouse.
type TxEventStore struct {
	conn *Conn
}

// NewTxEventStore creates a new TxEventStore.
func NewTxEventStore(conn *Conn) *TxEventStore {
	return &TxEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TxEventStore = (*TxEventStore)(nil)

const txEventColumns = `
	hash, status, kind, from_address, to_address, token_address,
	property_name, amount, block_number, error, timestamp_ms
`

// Insert appends a status event. Returns ErrDuplicateKey if (hash, status) exists.
// MergeTree does not enforce uniqueness, so the key is checked before insert.
func (s *TxEventStore) Insert(ctx context.Context, e *domain.TxEvent) (err error) {
	if e == nil || e.Hash == (common.Hash{}) || e.Status == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "tx_events.insert", time.Since(start).Seconds(), err)
	}()

	exists, err := s.exists(ctx, e.Hash, e.Status)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO tx_events (
			hash, status, status_rank, kind, from_address, to_address, token_address,
			property_name, amount, block_number, error, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.Hash.Hex(), string(e.Status), uint8(e.Status.Rank()), string(e.Kind),
		e.From.Hex(), e.To.Hex(), e.TokenAddress.Hex(),
		e.PropertyName, e.Amount, e.BlockNumber, e.Error, uint64(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByHash returns all events of a transaction ordered by timestamp ASC.
func (s *TxEventStore) GetByHash(ctx context.Context, hash common.Hash) ([]*domain.TxEvent, error) {
	query := `SELECT` + txEventColumns + `
		FROM tx_events
		WHERE hash = ?
		ORDER BY timestamp_ms ASC, status_rank ASC
	`

	rows, err := s.conn.Query(ctx, query, hash.Hex())
	if err != nil {
		return nil, fmt.Errorf("query by hash: %w", err)
	}
	defer rows.Close()

	events, err := scanTxEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events, nil
}

// Latest returns the most recent status event of every transaction,
// newest first.
func (s *TxEventStore) Latest(ctx context.Context) ([]*domain.TxEvent, error) {
	query := `SELECT` + txEventColumns + `
		FROM (
			SELECT *
			FROM tx_events
			ORDER BY status_rank DESC, timestamp_ms DESC
			LIMIT 1 BY hash
		)
		ORDER BY timestamp_ms DESC, hash ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()

	return scanTxEvents(rows)
}

// exists checks if an event with the given key exists.
func (s *TxEventStore) exists(ctx context.Context, hash common.Hash, status domain.TxStatus) (bool, error) {
	query := `
		SELECT count(*) FROM tx_events
		WHERE hash = ? AND status = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, hash.Hex(), string(status)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanTxEvents scans multiple rows.
func scanTxEvents(rows chRows) ([]*domain.TxEvent, error) {
	var events []*domain.TxEvent

	for rows.Next() {
		var (
			e                  domain.TxEvent
			hash, status, kind string
			from, to, token    string
			timestampMs        uint64
		)
		err := rows.Scan(
			&hash, &status, &kind, &from, &to, &token,
			&e.PropertyName, &e.Amount, &e.BlockNumber, &e.Error, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tx event: %w", err)
		}

		e.Hash = common.HexToHash(hash)
		e.Status = domain.TxStatus(status)
		e.Kind = domain.TxKind(kind)
		e.From = common.HexToAddress(from)
		e.To = common.HexToAddress(to)
		e.TokenAddress = common.HexToAddress(token)
		e.Timestamp = int64(timestampMs)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tx events: %w", err)
	}
	return events, nil
}
