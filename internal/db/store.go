package db

import (
	"context"

	"planvision/pkg/plan"
)

// RoomBills is the persisted shape of one room's extracted bills.
type RoomBills struct {
	RoomName string              `json:"room_name"`
	Bills    []plan.MaterialBill `json:"bills"`
}

// TaskStore binds the pipeline's persistence callbacks to one task id.
type TaskStore struct {
	q      *Queries
	taskID string
}

var _ plan.Store = (*TaskStore)(nil)

func NewTaskStore(q *Queries, taskID string) *TaskStore {
	return &TaskStore{q: q, taskID: taskID}
}

func (s *TaskStore) SaveClassifications(ctx context.Context, classifications []plan.Classification) error {
	return s.q.UpsertClassifications(ctx, s.taskID, classifications)
}

func (s *TaskStore) SaveStructure(ctx context.Context, structure *plan.ProjectStructure) error {
	return s.q.InsertIntermediate(ctx, s.taskID, "structure", DataTypeStructure, structure)
}

func (s *TaskStore) SaveRoomData(ctx context.Context, data *plan.ExtractedRoomData) error {
	return s.q.UpsertRoomData(ctx, s.taskID, data)
}

func (s *TaskStore) SaveMaterialBills(ctx context.Context, roomName string, bills []plan.MaterialBill) error {
	return s.q.InsertIntermediate(ctx, s.taskID, "rooms", DataTypeMaterialBills, RoomBills{
		RoomName: roomName,
		Bills:    bills,
	})
}

func (s *TaskStore) SaveIntermediate(ctx context.Context, stage string, payload any) error {
	return s.q.InsertIntermediate(ctx, s.taskID, stage, DataTypeSnapshot, payload)
}
