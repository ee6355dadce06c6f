package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/internal/sampledata"
	"athlete-payment-reconciler/internal/storage"
)

// Every named payment of a generated statement lands on its own family.
// Which sibling a parent's transfer settles first is not fixed.
func TestSampleStatementMatchesFamilies(t *testing.T) {
	ctx := context.Background()

	config := sampledata.DefaultConfig()
	config.Families = 10
	config.ReferenceRows = 0
	config.UnrelatedRows = 0
	dataset, err := sampledata.Generate(config)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	require.NoError(t, store.SaveAthletes(ctx, dataset.Athletes))
	for _, charge := range dataset.Charges {
		require.NoError(t, store.AppendEntry(ctx, charge))
	}
	files, err := sampledata.WriteFiles(t.TempDir(), dataset, sampledata.FormatCSV)
	require.NoError(t, err)

	orchestrator, err := NewReconciliationOrchestrator(newServiceFor(t, store, store), nil)
	require.NoError(t, err)
	result, err := orchestrator.ProcessImport(ctx, &ImportRequest{File: files.Statement, Confirm: true})
	require.NoError(t, err)

	incoming := 0
	for _, row := range dataset.Statement {
		if row.Amount.IsPositive() {
			incoming++
		}
	}
	require.Len(t, result.Candidates, incoming)
	assert.Equal(t, config.OutgoingRows, result.ParseStats.OutgoingRows)
	assert.Zero(t, result.Summary.UnmatchedRows)

	roster := models.NewRoster(dataset.Athletes)
	family := func(id string) string {
		athlete, ok := roster.Get(id)
		require.True(t, ok, "unknown athlete %s", id)
		return athlete.ParentFullName()
	}

	i := 0
	for _, row := range dataset.Statement {
		if !row.Amount.IsPositive() {
			continue
		}
		candidate := result.Candidates[i]
		i++
		require.True(t, candidate.IsMatched(), "row %d %q", candidate.Transaction.RowIndex, row.Description)
		assert.Equal(t, family(row.AthleteIDs[0]), family(candidate.AthleteID),
			"row %d %q matched outside its family", candidate.Transaction.RowIndex, row.Description)
	}

	require.NotNil(t, result.Confirmation)
	assert.Empty(t, result.Confirmation.Errors)
	assert.Len(t, creditsOf(t, store), incoming)
}
