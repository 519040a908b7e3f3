package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/actual-categoriser/internal/domain"
	"github.com/dvloznov/actual-categoriser/internal/llm"
)

// fixtureStore serves one account with a categorised history and two
// uncategorised transactions.
func fixtureStore(t *testing.T) *mockStore {
	t.Helper()
	return &mockStore{
		DownloadBudgetFunc: func(ctx context.Context, budgetID, password string) error {
			if budgetID != "budget-1" || password != "pw" {
				t.Errorf("DownloadBudget(%q, %q)", budgetID, password)
			}
			return nil
		},
		GetAccountsFunc: func(ctx context.Context) ([]domain.Account, error) {
			return []domain.Account{{ID: "a1", Name: "Checking"}}, nil
		},
		GetCategoryGroupsFunc: func(ctx context.Context) ([]domain.CategoryGroup, error) {
			return []domain.CategoryGroup{
				{ID: "g1", Categories: []domain.Category{{ID: "c1", Name: "Groceries (expense)"}}},
				{ID: "g2", IsIncome: true, Categories: []domain.Category{{ID: "c2", Name: "Salary (income)", IsIncome: true}}},
			}, nil
		},
		GetTransactionsFunc: func(ctx context.Context, accountID string, start, end civil.Date) ([]domain.Transaction, error) {
			return []domain.Transaction{
				{ID: "h1", AccountID: "a1", Date: civil.Date{Year: 2024, Month: 10, Day: 1}, ImportedPayee: "LIDL", Amount: -900, CategoryID: strPtr("c1")},
				{ID: "t1", AccountID: "a1", Date: civil.Date{Year: 2024, Month: 10, Day: 2}, ImportedPayee: "TESCO", Amount: -500},
				{ID: "t2", AccountID: "a1", Date: civil.Date{Year: 2024, Month: 10, Day: 3}, ImportedPayee: "MYSTERY", Amount: -1},
			}, nil
		},
	}
}

func testOptions() Options {
	return Options{
		BudgetID:       "budget-1",
		BudgetPassword: "pw",
		HistoryDays:    90,
		CategoriseDays: 30,
		MaxHistoryRows: 10,
		Now:            func() time.Time { return time.Date(2024, 10, 30, 9, 0, 0, 0, time.Local) },
	}
}

func TestRun_EndToEnd(t *testing.T) {
	store := fixtureStore(t)
	recorder := &mockRecorder{}
	model := &mockModel{CreateChatCompletionFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		reply := "###UNKNOWN###"
		if strings.Contains(req.Messages[1].Content, "TESCO") {
			reply = "Groceries (expense)"
		}
		return &llm.ChatResponse{Choices: []llm.Choice{{Message: llm.Message{Content: reply}}}}, nil
	}}

	deps := Deps{Store: store, Model: model, Templates: StaticTemplate("C={{Categories}}\nH={{HistoricalTransactions}}"), Recorder: recorder}
	summary, err := Run(context.Background(), "run-1", deps, testOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary != (Summary{Processed: 2, Applied: 1, Unknown: 1}) {
		t.Errorf("summary = %+v", summary)
	}
	if len(store.updates) != 1 || store.updates[0] != [2]string{"t1", "c1"} {
		t.Errorf("updates = %v, want [[t1 c1]]", store.updates)
	}

	system := model.requests[0].Messages[0].Content
	if !strings.Contains(system, "C='Groceries (expense)', 'Salary (income)'") {
		t.Errorf("system prompt categories wrong:\n%s", system)
	}
	if !strings.Contains(system, "| Checking | LIDL |  | -900 | Groceries (expense) |") {
		t.Errorf("system prompt missing history:\n%s", system)
	}
	if strings.Contains(system, "TESCO") {
		t.Errorf("uncategorised transaction leaked into history:\n%s", system)
	}
	if len(recorder.decisions) != 2 {
		t.Errorf("recorded %d decisions, want 2", len(recorder.decisions))
	}
}

func TestRun_StepFailure(t *testing.T) {
	store := fixtureStore(t)
	store.GetAccountsFunc = func(ctx context.Context) ([]domain.Account, error) {
		return nil, errors.New("store offline")
	}

	deps := Deps{Store: store, Model: replyWith("x"), Templates: StaticTemplate("")}
	_, err := Run(context.Background(), "run-1", deps, testOptions())
	if err == nil || !strings.Contains(err.Error(), "pipeline step 2 failed") {
		t.Errorf("Run() error = %v, want step 2 failure", err)
	}
	if len(store.updates) != 0 {
		t.Errorf("updates = %v, want none", store.updates)
	}
}

func TestRun_Windows(t *testing.T) {
	store := fixtureStore(t)
	var windows []string
	inner := store.GetTransactionsFunc
	store.GetTransactionsFunc = func(ctx context.Context, accountID string, start, end civil.Date) ([]domain.Transaction, error) {
		windows = append(windows, start.String()+".."+end.String())
		return inner(ctx, accountID, start, end)
	}

	deps := Deps{Store: store, Model: replyWith("###UNKNOWN###"), Templates: StaticTemplate("")}
	if _, err := Run(context.Background(), "run-1", deps, testOptions()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"2024-08-01..2024-10-30", "2024-09-30..2024-10-30"}
	if strings.Join(windows, " ") != strings.Join(want, " ") {
		t.Errorf("windows = %v, want %v", windows, want)
	}
}

func TestBuildPrompt_DoesNotClassify(t *testing.T) {
	store := fixtureStore(t)
	model := replyWith("Groceries (expense)")

	pc, err := BuildPrompt(context.Background(), Deps{Store: store, Model: model, Templates: StaticTemplate("{{HistoricalTransactions}}")}, testOptions())
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if !strings.Contains(pc.SystemPrompt, "LIDL") {
		t.Errorf("SystemPrompt = %q", pc.SystemPrompt)
	}
	if len(model.requests) != 0 || len(store.updates) != 0 {
		t.Error("BuildPrompt must not call the model or write")
	}
}

func TestPipeline_Execute(t *testing.T) {
	var order []int
	step := func(n int, err error) PipelineStep {
		return stepFunc(func(ctx context.Context, state *PipelineState) error {
			order = append(order, n)
			return err
		})
	}

	err := NewPipeline(step(1, nil), step(2, errors.New("nope")), step(3, nil)).Execute(context.Background(), &PipelineState{})
	if err == nil || !strings.Contains(err.Error(), "pipeline step 2 failed: nope") {
		t.Errorf("Execute() error = %v", err)
	}
	if len(order) != 2 {
		t.Errorf("steps run = %v, want [1 2]", order)
	}
}

type stepFunc func(ctx context.Context, state *PipelineState) error

func (f stepFunc) Execute(ctx context.Context, state *PipelineState) error { return f(ctx, state) }
