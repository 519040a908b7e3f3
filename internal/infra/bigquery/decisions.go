package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// DecisionRow is one classification decision in finance.categorisation_decisions.
type DecisionRow struct {
	DecisionID    string `bigquery:"decision_id"`    // REQUIRED
	RunID         string `bigquery:"run_id"`         // REQUIRED
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	AccountName string `bigquery:"account_name"`
	Payee       string `bigquery:"payee"`
	Amount      int64  `bigquery:"amount"` // minor units

	ModelName     string `bigquery:"model_name"`
	ModelResponse string `bigquery:"model_response"`
	Outcome       string `bigquery:"outcome"` // APPLIED, UNKNOWN, UNRESOLVED

	CategoryID   bigquery.NullString `bigquery:"category_id"`   // NULLABLE, set when APPLIED
	CategoryName bigquery.NullString `bigquery:"category_name"` // NULLABLE

	DryRun    bool      `bigquery:"dry_run"`
	DecidedTS time.Time `bigquery:"decided_ts"` // REQUIRED
}

// RunRow is one finished job run in finance.job_runs.
type RunRow struct {
	RunID   string `bigquery:"run_id"` // REQUIRED
	JobType string `bigquery:"job_type"`
	Trigger string `bigquery:"trigger"`

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	Stats bigquery.NullJSON `bigquery:"stats"` // NULLABLE
}
