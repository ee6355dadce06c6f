package reconciler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

// ConfirmResult reports what a confirmation booked
type ConfirmResult struct {
	ConfirmedRows   int                     `json:"confirmedRows"`
	SkippedRows     int                     `json:"skippedRows"`
	Credits         []*models.LedgerEntry   `json:"credits"`
	Payments        []*models.PaymentRecord `json:"payments"`
	HistoryRecorded int                     `json:"historyRecorded"`
	Errors          []*errors.AppError      `json:"errors,omitempty"`
}

// Confirm books every matched row: each allocation becomes a credit on the
// athlete's ledger and a Paid payment record, and descriptions matched by
// hand to a single athlete are remembered. Unmatched rows are dropped.
//
// Rows are written one after another without a surrounding transaction. A
// failing row is reported in the result and the remaining rows are still
// booked, so a failed confirmation can leave partial writes. A session can be
// confirmed once.
func (s *Session) Confirm(ctx context.Context) (*ConfirmResult, error) {
	if s.confirmed {
		return nil, errors.ReconciliationError(errors.CodeConfirmationFailed, "batch confirmation", fmt.Errorf("session already confirmed"))
	}
	s.confirmed = true

	result := &ConfirmResult{}
	for _, c := range s.candidates {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors,
				errors.ReconciliationError(errors.CodeConfirmationFailed, "batch confirmation", err))
			break
		}
		if !c.IsMatched() {
			result.SkippedRows++
			continue
		}
		if err := s.confirmRow(ctx, c, result); err != nil {
			s.logger.WithError(err).WithField("row", c.Transaction.RowIndex).Error("Failed to confirm row")
			result.Errors = append(result.Errors, err)
			continue
		}
		result.ConfirmedRows++

		if c.IsManual && !c.IsMultiple && s.history.Remember(c.Transaction.Description, c.AthleteID) {
			result.HistoryRecorded++
		}
	}

	if err := s.history.Save(ctx); err != nil {
		result.Errors = append(result.Errors, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeWriteFailed, "failed to save match history"))
	}

	s.logger.WithFields(logger.Fields{
		"confirmed": result.ConfirmedRows,
		"skipped":   result.SkippedRows,
		"credits":   len(result.Credits),
		"errors":    len(result.Errors),
	}).Info("Confirmed reconciliation session")

	if len(result.Errors) > 0 {
		return result, errors.ReconciliationError(errors.CodeConfirmationFailed, "batch confirmation", errors.NewErrorSummary(result.Errors))
	}
	return result, nil
}

func (s *Session) confirmRow(ctx context.Context, c *models.MatchCandidate, result *ConfirmResult) *errors.AppError {
	row := c.Transaction
	for _, alloc := range c.Allocations() {
		rate := s.service.config.DefaultVATRate
		if alloc.Due != nil {
			if r, ok := s.vatRates[alloc.Due.EntryID]; ok {
				rate = r
			}
		}

		credit := models.NewCreditFromGross(alloc.AthleteID, row.ParsedDate, row.Description, alloc.Amount, rate)
		if err := s.service.ledger.AppendEntry(ctx, credit); err != nil {
			return errors.StorageError(errors.CodeWriteFailed, "ledger", err).
				WithContext("row", row.RowIndex).
				WithContext("athlete_id", alloc.AthleteID)
		}
		result.Credits = append(result.Credits, credit)

		payment, err := s.paymentFor(ctx, alloc)
		if err != nil {
			return errors.StorageError(errors.CodeReadFailed, "payments", err).
				WithContext("row", row.RowIndex)
		}
		paidAt := row.ParsedDate
		payment.Amount = alloc.Amount
		payment.Status = models.PaymentStatusPaid
		payment.PaidAt = &paidAt
		payment.Method = s.service.config.PaymentMethod
		payment.Reference = row.Reference

		if err := s.service.payments.SavePayment(ctx, payment); err != nil {
			return errors.StorageError(errors.CodeWriteFailed, "payments", err).
				WithContext("row", row.RowIndex).
				WithContext("athlete_id", alloc.AthleteID)
		}
		result.Payments = append(result.Payments, payment)
	}
	return nil
}

// paymentFor returns the record of the settled due, or a new record when the
// due has none or the allocation settles no known due.
func (s *Session) paymentFor(ctx context.Context, alloc models.Allocation) (*models.PaymentRecord, error) {
	if alloc.Due != nil {
		existing, err := s.service.payments.FindPaymentByDue(ctx, alloc.Due.EntryID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	payment := &models.PaymentRecord{
		ID:        uuid.NewString(),
		AthleteID: alloc.AthleteID,
	}
	if alloc.Due != nil {
		payment.DueEntryID = alloc.Due.EntryID
	}
	return payment, nil
}
