package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Data types stored in intermediate_data. Snapshots are append-only; the
// newest row per (task, data_type) is the current one.
const (
	DataTypeStructure     = "structure"
	DataTypeMaterialBills = "material_bills"
	DataTypeSnapshot      = "snapshot"
)

var ErrNoIntermediate = errors.New("no intermediate data for task")

func (q *Queries) InsertIntermediate(ctx context.Context, taskID string, stage string, dataType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", dataType, err)
	}
	_, err = q.conn.Exec(ctx, `
		INSERT INTO intermediate_data (task_id, stage, data_type, payload)
		VALUES ($1, $2, $3, $4)`,
		taskID, stage, dataType, data,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s data: %w", dataType, err)
	}
	return nil
}

// GetLatestIntermediate unmarshals the newest payload of the given type
// into out.
func (q *Queries) GetLatestIntermediate(ctx context.Context, taskID string, dataType string, out any) error {
	var payload []byte
	err := q.conn.QueryRow(ctx, `
		SELECT payload FROM intermediate_data
		WHERE task_id = $1 AND data_type = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, taskID, dataType).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoIntermediate
		}
		return fmt.Errorf("failed to get %s data: %w", dataType, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", dataType, err)
	}
	return nil
}

// GetAllIntermediate returns every payload of the given type in insert
// order, used to assemble per-room material bills.
func (q *Queries) GetAllIntermediate(ctx context.Context, taskID string, dataType string) ([][]byte, error) {
	rows, err := q.conn.Query(ctx, `
		SELECT payload FROM intermediate_data
		WHERE task_id = $1 AND data_type = $2
		ORDER BY id`, taskID, dataType)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s data: %w", dataType, err)
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s payload: %w", dataType, err)
		}
		payloads = append(payloads, payload)
	}
	return payloads, rows.Err()
}
