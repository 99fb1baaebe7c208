package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"planvision/pkg/plan"
)

type RoomDataRow struct {
	TaskID    string
	RoomName  string
	Data      plan.ExtractedRoomData
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertRoomData stores one room profile. Key numeric columns are lifted
// out of the payload for direct querying by the estimate builder.
func (q *Queries) UpsertRoomData(ctx context.Context, taskID string, data *plan.ExtractedRoomData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal room data: %w", err)
	}

	_, err = q.conn.Exec(ctx, `
		INSERT INTO room_data (task_id, room_name, room_type, area, wall_area, floor_area, ceiling_area, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (task_id, room_name)
		DO UPDATE SET room_type = EXCLUDED.room_type,
		              area = EXCLUDED.area,
		              wall_area = EXCLUDED.wall_area,
		              floor_area = EXCLUDED.floor_area,
		              ceiling_area = EXCLUDED.ceiling_area,
		              payload = EXCLUDED.payload,
		              updated_at = now()`,
		taskID, data.RoomName, data.RoomType, data.Area, data.WallArea,
		data.FloorArea, data.CeilingArea, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert room data for %q: %w", data.RoomName, err)
	}
	return nil
}

func (q *Queries) GetRoomData(ctx context.Context, taskID string) ([]RoomDataRow, error) {
	rows, err := q.conn.Query(ctx, `
		SELECT task_id, room_name, payload, created_at, updated_at
		FROM room_data
		WHERE task_id = $1
		ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room data: %w", err)
	}
	defer rows.Close()

	var result []RoomDataRow
	for rows.Next() {
		var row RoomDataRow
		var payload []byte
		if err := rows.Scan(&row.TaskID, &row.RoomName, &payload, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room data: %w", err)
		}
		if err := json.Unmarshal(payload, &row.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal room data payload: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
