package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/actual-categoriser/internal/jobs"
	"github.com/dvloznov/actual-categoriser/internal/pipeline"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const (
	decisionsTable = "categorisation_decisions"
	runsTable      = "job_runs"
	maxErrorLen    = 2000
)

// NewDecisionRow converts a pipeline decision into a table row with a fresh decision_id.
func NewDecisionRow(d pipeline.Decision) *DecisionRow {
	row := &DecisionRow{
		DecisionID:    uuid.New().String(),
		RunID:         d.RunID,
		TransactionID: d.TransactionID,
		AccountName:   d.AccountName,
		Payee:         d.Payee,
		Amount:        d.Amount,
		ModelName:     d.Model,
		ModelResponse: d.Response,
		Outcome:       string(d.Outcome),
		DryRun:        d.DryRun,
		DecidedTS:     d.DecidedAt,
	}
	if d.CategoryID != "" {
		row.CategoryID = bigquery.NullString{StringVal: d.CategoryID, Valid: true}
		row.CategoryName = bigquery.NullString{StringVal: d.CategoryName, Valid: true}
	}
	return row
}

// NewRunRow converts a finished run into a table row. Error messages are
// truncated to 2000 bytes.
func NewRunRow(run *jobs.Run) (*RunRow, error) {
	row := &RunRow{
		RunID:        run.RunID,
		JobType:      string(run.Job),
		Trigger:      run.Trigger,
		StartedTS:    run.StartedAt,
		Status:       string(run.Status),
		ErrorMessage: run.Error,
	}
	if len(row.ErrorMessage) > maxErrorLen {
		row.ErrorMessage = row.ErrorMessage[:maxErrorLen]
	}
	if run.CompletedAt != nil {
		row.FinishedTS = bigquery.NullTimestamp{Timestamp: *run.CompletedAt, Valid: true}
	}
	if len(run.Stats) > 0 {
		stats, err := json.Marshal(run.Stats)
		if err != nil {
			return nil, fmt.Errorf("NewRunRow: marshalling stats: %w", err)
		}
		row.Stats = bigquery.NullJSON{JSONVal: string(stats), Valid: true}
	}
	return row, nil
}

// InsertDecisionsWithClient streams decision rows into datasetID.categorisation_decisions.
func InsertDecisionsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*DecisionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(decisionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertDecisions: inserting rows: %w", err)
	}
	return nil
}

// InsertRunWithClient inserts one run row into datasetID.job_runs.
// Uses DML INSERT to avoid streaming buffer issues.
func InsertRunWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *RunRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO `+"`%s.%s`"+` (
			run_id, job_type, trigger,
			started_ts, finished_ts,
			status, error_message, stats
		)
		VALUES (
			@run_id, @job_type, @trigger,
			@started_ts, @finished_ts,
			@status, @error_message, PARSE_JSON(@stats)
		)
	`, datasetID, runsTable))

	stats := "null"
	if row.Stats.Valid {
		stats = row.Stats.JSONVal
	}

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "job_type", Value: row.JobType},
		{Name: "trigger", Value: row.Trigger},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "finished_ts", Value: row.FinishedTS},
		{Name: "status", Value: row.Status},
		{Name: "error_message", Value: row.ErrorMessage},
		{Name: "stats", Value: stats},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("InsertRun: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("InsertRun: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("InsertRun: job error: %w", err)
	}
	return nil
}

// ListDecisionsByRunWithClient returns the decisions of one run in decision order.
func ListDecisionsByRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string) ([]*DecisionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			decision_id,
			run_id,
			transaction_id,
			account_name,
			payee,
			amount,
			model_name,
			model_response,
			outcome,
			category_id,
			category_name,
			dry_run,
			decided_ts
		FROM `+"`%s.%s`"+`
		WHERE run_id = @run_id
		ORDER BY decided_ts
	`, datasetID, decisionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListDecisionsByRun: query read: %w", err)
	}

	var rows []*DecisionRow
	for {
		var r DecisionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListDecisionsByRun: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// EnsureTablesWithClient creates the dataset and both audit tables when missing.
// Existing objects are left untouched. It returns the names of created tables.
func EnsureTablesWithClient(ctx context.Context, client *bigquery.Client, datasetID string) ([]string, error) {
	dataset := client.Dataset(datasetID)
	if err := dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil && !isAlreadyExists(err) {
		return nil, fmt.Errorf("EnsureTables: creating dataset %s: %w", datasetID, err)
	}

	tables := []struct {
		name      string
		row       interface{}
		partition string
	}{
		{decisionsTable, DecisionRow{}, "decided_ts"},
		{runsTable, RunRow{}, "started_ts"},
	}

	var created []string
	for _, t := range tables {
		schema, err := bigquery.InferSchema(t.row)
		if err != nil {
			return created, fmt.Errorf("EnsureTables: inferring %s schema: %w", t.name, err)
		}

		meta := &bigquery.TableMetadata{
			Schema:           schema,
			TimePartitioning: &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: t.partition},
		}
		err = dataset.Table(t.name).Create(ctx, meta)
		switch {
		case err == nil:
			created = append(created, t.name)
		case isAlreadyExists(err):
		default:
			return created, fmt.Errorf("EnsureTables: creating table %s: %w", t.name, err)
		}
	}
	return created, nil
}

// isAlreadyExists reports whether err is a 409 from the BigQuery API.
func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
