package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSagaPartialFailure = "leads.saga.partial_failure"

type SagaPartialFailurePayload struct {
	OrganizationID string `json:"organizationId"`
	LeadID         string `json:"leadId"`
	OrderID        string `json:"orderId"`
	Operation      string `json:"operation"`
	Cause          string `json:"cause"`
}

func NewSagaPartialFailureTask(payload SagaPartialFailurePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSagaPartialFailure, data), nil
}

func ParseSagaPartialFailurePayload(task *asynq.Task) (SagaPartialFailurePayload, error) {
	var payload SagaPartialFailurePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SagaPartialFailurePayload{}, err
	}
	return payload, nil
}
