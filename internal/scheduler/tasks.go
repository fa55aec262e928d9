package scheduler

import (
	"encoding/json"

	"dn_tracker_backend/internal/dn/writeback"

	"github.com/hibiken/asynq"
)

const TaskSheetSync = "dn.sheet.sync"

const TaskSheetWriteBack = "dn.sheet.writeback"

const TaskSheetArchive = "dn.sheet.archive"

// SheetSyncPayload must stay constant per trigger: asynq.Unique locks on
// the payload bytes.
type SheetSyncPayload struct {
	Trigger string `json:"trigger"`
}

type SheetWriteBackPayload struct {
	Request writeback.Request `json:"request"`
}

type SheetArchivePayload struct {
	ThresholdDays int `json:"thresholdDays"`
}

func NewSheetSyncTask(payload SheetSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSheetSync, data), nil
}

func ParseSheetSyncPayload(task *asynq.Task) (SheetSyncPayload, error) {
	var payload SheetSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SheetSyncPayload{}, err
	}
	return payload, nil
}

func NewSheetWriteBackTask(payload SheetWriteBackPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSheetWriteBack, data), nil
}

func ParseSheetWriteBackPayload(task *asynq.Task) (SheetWriteBackPayload, error) {
	var payload SheetWriteBackPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SheetWriteBackPayload{}, err
	}
	return payload, nil
}

func NewSheetArchiveTask(payload SheetArchivePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSheetArchive, data), nil
}

func ParseSheetArchivePayload(task *asynq.Task) (SheetArchivePayload, error) {
	var payload SheetArchivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SheetArchivePayload{}, err
	}
	return payload, nil
}
