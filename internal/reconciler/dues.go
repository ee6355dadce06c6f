package reconciler

import (
	"sort"
	"time"

	"athlete-payment-reconciler/internal/models"
)

// OutstandingDues derives the unpaid charges from ledger entries.
//
// A charge counts as paid when the same athlete has any credit of at least
// the charge amount dated on or after the charge. Credits carry no link to
// the charge they settle, so one credit can mark several equal charges as
// paid. This inference is kept for compatibility with existing ledgers and
// is a known gap.
//
// Dues are ordered oldest charge first. A due is Overdue once now is past its
// due date, termMonths after the charge.
func OutstandingDues(entries []*models.LedgerEntry, now time.Time, termMonths int) []models.OutstandingDue {
	credits := make(map[string][]*models.LedgerEntry)
	for _, e := range entries {
		if e.IsCredit() {
			credits[e.AthleteID] = append(credits[e.AthleteID], e)
		}
	}

	var dues []models.OutstandingDue
	for _, e := range entries {
		if !e.IsDebit() || isPaid(e, credits[e.AthleteID]) {
			continue
		}
		dueDate := e.Date.AddDate(0, termMonths, 0)
		status := models.DueStatusPending
		if now.After(dueDate) {
			status = models.DueStatusOverdue
		}
		dues = append(dues, models.OutstandingDue{
			AthleteID:   e.AthleteID,
			EntryID:     e.ID,
			Description: e.Description,
			Amount:      e.AmountIncludingVAT,
			ChargeDate:  e.Date,
			DueDate:     dueDate,
			Status:      status,
		})
	}

	sort.SliceStable(dues, func(i, j int) bool {
		return dues[i].ChargeDate.Before(dues[j].ChargeDate)
	})
	return dues
}

func isPaid(debit *models.LedgerEntry, credits []*models.LedgerEntry) bool {
	for _, c := range credits {
		if c.AmountIncludingVAT.GreaterThanOrEqual(debit.AmountIncludingVAT) && !c.Date.Before(debit.Date) {
			return true
		}
	}
	return false
}
