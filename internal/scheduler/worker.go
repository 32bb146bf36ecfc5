package scheduler

import (
	"context"
	"fmt"

	"sales_pipeline_backend/internal/email"
	"sales_pipeline_backend/internal/reconciliation"
	"sales_pipeline_backend/platform/config"
	"sales_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// IncidentRecorder persists a partial-failure incident. Recording the same
// lead and order twice must be a no-op.
type IncidentRecorder interface {
	Record(ctx context.Context, in reconciliation.NewIncident) (reconciliation.Incident, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	recorder IncidentRecorder
	alerts   email.AlertSender
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, recorder IncidentRecorder, alerts email.AlertSender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := newWorker(recorder, alerts, log)
	w.server = server
	return w, nil
}

func newWorker(recorder IncidentRecorder, alerts email.AlertSender, log *logger.Logger) *Worker {
	if alerts == nil {
		alerts = email.NoopAlertSender{}
	}
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:      mux,
		recorder: recorder,
		alerts:   alerts,
		log:      log,
	}
	mux.HandleFunc(TaskSagaPartialFailure, w.handleSagaPartialFailure)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleSagaPartialFailure(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSagaPartialFailurePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return fmt.Errorf("%w: organization id: %v", asynq.SkipRetry, err)
	}
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%w: lead id: %v", asynq.SkipRetry, err)
	}

	incident, err := w.recorder.Record(ctx, reconciliation.NewIncident{
		OrganizationID: orgID,
		LeadID:         leadID,
		OrderID:        payload.OrderID,
		Operation:      payload.Operation,
		Cause:          payload.Cause,
	})
	if err != nil {
		w.log.DatabaseError("record saga incident", err)
		return err
	}

	// Alert failures are retried; Record is idempotent on (lead, order).
	if err := w.alerts.SendPartialFailureAlert(ctx, email.PartialFailureAlert{
		IncidentID:     incident.ID.String(),
		OrganizationID: payload.OrganizationID,
		LeadID:         payload.LeadID,
		OrderID:        payload.OrderID,
		Operation:      payload.Operation,
		Cause:          payload.Cause,
		DetectedAt:     incident.CreatedAt,
	}); err != nil {
		w.log.Warn("partial failure alert not sent", "incidentId", incident.ID, "error", err)
		return err
	}

	w.log.Info("saga incident recorded", "incidentId", incident.ID, "leadId", leadID, "orderId", payload.OrderID)
	return nil
}
