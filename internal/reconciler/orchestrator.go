// Package reconciler matches bank statement rows to club athletes and books
// the confirmed payments on their accounts.
//
// The package coordinates a whole import:
//   - Statement parsing through the parsers package
//   - Reading the roster, ledger and match history once per session
//   - History, automatic and manual matching of every row
//   - Splitting one transfer across siblings
//   - Batch confirmation into the ledger, payment and history stores
//
// Collaborator stores are injected as interfaces, so the same workflow runs
// against the SQLite store of the CLI and the in-memory store of the tests.
//
// Example usage:
//
//	service, err := reconciler.NewReconciliationService(store, store, store, store.History(), nil, nil)
//	orchestrator, err := reconciler.NewReconciliationOrchestrator(service, nil)
//	orchestrator.AddProgressCallback(func(p *reconciler.ImportProgress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.CurrentStep)
//	})
//
//	result, err := orchestrator.ProcessImport(ctx, &reconciler.ImportRequest{
//		File:    "statement.xlsx",
//		Splits:  map[int][]string{7: {"ath-1", "ath-2"}},
//		Confirm: true,
//	})
package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/internal/parsers"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

const importSteps = 5

// ReconciliationOrchestrator runs an import end to end and reports its
// progress to registered callbacks.
type ReconciliationOrchestrator struct {
	service *ReconciliationService
	parser  *parsers.StatementParser
	logger  logger.Logger

	progressCallbacks []ProgressCallback
	currentProgress   *ImportProgress
	progressMutex     sync.RWMutex
}

// ImportProgress tracks the steps of one import
type ImportProgress struct {
	TotalSteps      int           `json:"totalSteps"`
	CompletedSteps  int           `json:"completedSteps"`
	CurrentStep     string        `json:"currentStep"`
	PercentComplete float64       `json:"percentComplete"`
	StartTime       time.Time     `json:"startTime"`
	ElapsedTime     time.Duration `json:"elapsedTime"`
}

// ProgressCallback is called to report import progress
type ProgressCallback func(*ImportProgress)

// ImportRequest describes one statement import. Assignments and Splits are
// keyed by statement row number and applied after automatic matching.
type ImportRequest struct {
	File        string
	Assignments map[int]string
	Splits      map[int][]string
	Confirm     bool
}

// Validate validates the import request
func (r *ImportRequest) Validate() error {
	if r.File == "" {
		return errors.ValidationError(errors.CodeMissingField, "file", nil, nil).
			WithSuggestion("pass the bank statement with --file")
	}
	for row := range r.Assignments {
		if _, ok := r.Splits[row]; ok {
			return errors.ValidationError(errors.CodeInvalidSelection, "row", row, fmt.Errorf("row %d is both assigned and split", row))
		}
	}
	return nil
}

// ImportResult is the outcome of an import
type ImportResult struct {
	Source       string                   `json:"source"`
	ParseStats   *parsers.ParseStats      `json:"parseStats"`
	Candidates   []*models.MatchCandidate `json:"candidates"`
	Summary      *SessionSummary          `json:"summary"`
	Confirmation *ConfirmResult           `json:"confirmation,omitempty"`
	Errors       []*errors.AppError       `json:"errors,omitempty"`
	ProcessedAt  time.Time                `json:"processedAt"`
	Duration     time.Duration            `json:"duration"`
}

// NewReconciliationOrchestrator creates a new orchestrator. A nil parse
// configuration uses the defaults.
func NewReconciliationOrchestrator(service *ReconciliationService, parseConfig *parsers.ParseConfig) (*ReconciliationOrchestrator, error) {
	if service == nil {
		return nil, errors.ValidationError(
			errors.CodeMissingField,
			"reconciliation_service",
			nil,
			nil,
		).WithSuggestion("Provide a valid ReconciliationService instance")
	}

	log := logger.GetGlobalLogger().WithComponent("reconciliation_orchestrator")
	log.Debug("Creating reconciliation orchestrator")

	return &ReconciliationOrchestrator{
		service:         service,
		parser:          parsers.NewStatementParser(parseConfig),
		logger:          log,
		currentProgress: &ImportProgress{TotalSteps: importSteps},
	}, nil
}

// AddProgressCallback adds a progress callback function
func (ro *ReconciliationOrchestrator) AddProgressCallback(callback ProgressCallback) {
	ro.progressCallbacks = append(ro.progressCallbacks, callback)
}

// ProcessImport parses the statement, matches every row, applies the manual
// choices of the request and confirms the batch when asked.
//
// A row whose manual choice fails keeps its automatic result and the error is
// listed in the result; the other rows are unaffected. A failed confirmation
// returns both the partial result and the error.
func (ro *ReconciliationOrchestrator) ProcessImport(ctx context.Context, request *ImportRequest) (*ImportResult, error) {
	if request == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "import_request", nil, nil)
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	ro.logger.WithFields(logger.Fields{
		"file":        request.File,
		"assignments": len(request.Assignments),
		"splits":      len(request.Splits),
		"confirm":     request.Confirm,
	}).Info("Starting statement import")

	ro.initializeProgress()
	startTime := time.Now()
	result := &ImportResult{Source: request.File, ProcessedAt: startTime}

	ro.updateProgress("Parsing statement", 0, 0)
	rows, stats, err := ro.parser.ParseFile(ctx, request.File)
	if err != nil {
		ro.logger.WithError(err).WithField("file", request.File).Error("Failed to parse statement")
		return nil, err
	}
	result.ParseStats = stats

	ro.updateProgress("Loading roster and ledger", 1, time.Since(startTime))
	session, err := ro.service.NewSession(ctx)
	if err != nil {
		return nil, err
	}

	ro.updateProgress("Matching rows", 2, time.Since(startTime))
	if _, err := session.MatchRows(ctx, rows); err != nil {
		return nil, err
	}

	ro.updateProgress("Applying manual matches", 3, time.Since(startTime))
	result.Errors = append(result.Errors, ro.applyChoices(session, request)...)

	var confirmErr error
	if request.Confirm {
		ro.updateProgress("Confirming payments", 4, time.Since(startTime))
		result.Confirmation, confirmErr = session.Confirm(ctx)
	}

	result.Candidates = session.Candidates()
	result.Summary = session.Summary()
	result.Duration = time.Since(startTime)
	ro.updateProgress("Completed", importSteps, result.Duration)

	ro.logger.WithFields(logger.Fields{
		"rows":      result.Summary.TotalRows,
		"matched":   result.Summary.MatchedRows,
		"unmatched": result.Summary.UnmatchedRows,
		"duration":  result.Duration,
	}).Info("Statement import completed")

	return result, confirmErr
}

func (ro *ReconciliationOrchestrator) applyChoices(session *Session, request *ImportRequest) []*errors.AppError {
	var errs []*errors.AppError
	record := func(err error) {
		if err == nil {
			return
		}
		appErr := errors.WrapIfNeeded(err, errors.CategoryValidation, errors.CodeInvalidSelection, "manual match failed")
		ro.logger.WithError(appErr).Warn("Manual choice rejected")
		errs = append(errs, appErr)
	}

	for _, row := range sortedRows(request.Assignments) {
		_, err := session.ManualMatch(row, request.Assignments[row])
		record(err)
	}
	for _, row := range sortedRows(request.Splits) {
		_, err := session.MultiMatch(row, request.Splits[row])
		record(err)
	}
	return errs
}

func sortedRows[V any](m map[int]V) []int {
	rows := make([]int, 0, len(m))
	for row := range m {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	return rows
}

func (ro *ReconciliationOrchestrator) initializeProgress() {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()

	ro.currentProgress = &ImportProgress{
		TotalSteps: importSteps,
		StartTime:  time.Now(),
	}
}

func (ro *ReconciliationOrchestrator) updateProgress(step string, completed int, elapsed time.Duration) {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()

	ro.currentProgress.CurrentStep = step
	ro.currentProgress.CompletedSteps = completed
	ro.currentProgress.ElapsedTime = elapsed
	ro.currentProgress.PercentComplete = float64(completed) / float64(ro.currentProgress.TotalSteps) * 100

	for _, callback := range ro.progressCallbacks {
		callback(ro.currentProgress)
	}
}

// GetProgress returns a copy of the current progress
func (ro *ReconciliationOrchestrator) GetProgress() ImportProgress {
	ro.progressMutex.RLock()
	defer ro.progressMutex.RUnlock()
	return *ro.currentProgress
}
