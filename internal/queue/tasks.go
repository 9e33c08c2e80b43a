package queue

import (
	"encoding/json"

	"github.com/stampcard-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskStampPendingExpire 待确认集点超时驳回任务
	TaskStampPendingExpire = constants.TaskStampPendingExpire
)

// StampPendingExpirePayload 待确认集点超时任务载荷
type StampPendingExpirePayload struct {
	TransactionID uint `json:"transaction_id"`
}

// NewStampPendingExpireTask 创建待确认集点超时任务
func NewStampPendingExpireTask(payload StampPendingExpirePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStampPendingExpire, body), nil
}

// ParseStampPendingExpirePayload 解析任务载荷
func ParseStampPendingExpirePayload(task *asynq.Task) (StampPendingExpirePayload, error) {
	var payload StampPendingExpirePayload
	if task == nil {
		return payload, nil
	}
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}
