package db

import (
	"context"
	"fmt"
	"time"

	"planvision/pkg/plan"
)

type PageClassification struct {
	TaskID     string
	PageNumber int
	PageType   string
	RoomName   *string
	ImageKey   string
	CreatedAt  time.Time
}

// UpsertClassifications writes one row per page, overwriting any earlier
// classification of the same page for the task.
func (q *Queries) UpsertClassifications(ctx context.Context, taskID string, classifications []plan.Classification) error {
	if len(classifications) == 0 {
		return nil
	}

	tx, err := q.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin classification upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range classifications {
		_, err := tx.Exec(ctx, `
			INSERT INTO page_classifications (task_id, page_number, page_type, room_name, image_key)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (task_id, page_number)
			DO UPDATE SET page_type = EXCLUDED.page_type,
			              room_name = EXCLUDED.room_name,
			              image_key = EXCLUDED.image_key`,
			taskID, c.PageNumber, string(c.PageType), c.RoomName, c.ImageKey,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert classification for page %d: %w", c.PageNumber, err)
		}
	}

	return tx.Commit(ctx)
}

func (q *Queries) GetClassifications(ctx context.Context, taskID string) ([]PageClassification, error) {
	rows, err := q.conn.Query(ctx, `
		SELECT task_id, page_number, page_type, room_name, image_key, created_at
		FROM page_classifications
		WHERE task_id = $1
		ORDER BY page_number`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get classifications: %w", err)
	}
	defer rows.Close()

	var result []PageClassification
	for rows.Next() {
		var c PageClassification
		if err := rows.Scan(&c.TaskID, &c.PageNumber, &c.PageType, &c.RoomName, &c.ImageKey, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
