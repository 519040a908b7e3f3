package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/actual-categoriser/internal/jobs"
	"github.com/dvloznov/actual-categoriser/internal/logger"
	"github.com/dvloznov/actual-categoriser/internal/pipeline"
	"google.golang.org/api/option"
)

// Recorder is the BigQuery audit sink. It records every classification
// decision and every finished job run, holding one shared client.
type Recorder struct {
	client    *bigquery.Client
	datasetID string
}

var (
	_ pipeline.DecisionRecorder = (*Recorder)(nil)
	_ jobs.RunObserver          = (*Recorder)(nil)
)

// NewRecorder creates a Recorder writing to projectID.datasetID.
func NewRecorder(ctx context.Context, projectID, datasetID string, opts ...option.ClientOption) (*Recorder, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewRecorder: creating client: %w", err)
	}
	return &Recorder{client: client, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *Recorder) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// RecordDecision implements pipeline.DecisionRecorder.
func (r *Recorder) RecordDecision(ctx context.Context, d pipeline.Decision) error {
	return InsertDecisionsWithClient(ctx, r.client, r.datasetID, []*DecisionRow{NewDecisionRow(d)})
}

// RunFinished implements jobs.RunObserver. Failures are logged only.
func (r *Recorder) RunFinished(ctx context.Context, run *jobs.Run) {
	log := logger.FromContext(ctx)

	row, err := NewRunRow(run)
	if err == nil {
		err = InsertRunWithClient(ctx, r.client, r.datasetID, row)
	}
	if err != nil {
		log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to record run in BigQuery")
	}
}

// EnsureTables creates the audit dataset and tables when missing.
func (r *Recorder) EnsureTables(ctx context.Context) ([]string, error) {
	return EnsureTablesWithClient(ctx, r.client, r.datasetID)
}

// ListDecisions returns the recorded decisions of one run.
func (r *Recorder) ListDecisions(ctx context.Context, runID string) ([]*DecisionRow, error) {
	return ListDecisionsByRunWithClient(ctx, r.client, r.datasetID, runID)
}
