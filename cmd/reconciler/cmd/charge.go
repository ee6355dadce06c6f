package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/internal/parsers"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

// Flags for the charge command
var (
	chargeAthletes    []string
	chargeAll         bool
	chargeAmount      string
	chargeDate        string
	chargeDescription string
	chargeVAT         string
)

var chargeCmd = &cobra.Command{
	Use:   "charge",
	Short: "Add a charge (debit) to athlete accounts",
	Long: `Charge books a debit entry, such as a monthly due, on the account of
the given athletes or of every active athlete. The amount excludes VAT; VAT
and the gross amount are derived from the rate.

Examples:
  reconciler charge --all --amount 350 --date 2024-06-01 --description "Haziran aidatı"
  reconciler charge --athlete ath-3 --athlete ath-4 --amount 1.250,00 --vat 20 --description "Kamp ücreti"`,
	RunE: runCharge,
}

func init() {
	rootCmd.AddCommand(chargeCmd)

	chargeCmd.Flags().StringArrayVar(&chargeAthletes, "athlete", nil, "athlete ID to charge (repeatable)")
	chargeCmd.Flags().BoolVar(&chargeAll, "all", false, "charge every active athlete")
	chargeCmd.Flags().StringVar(&chargeAmount, "amount", "", "amount excluding VAT (required)")
	chargeCmd.Flags().StringVar(&chargeDate, "date", "", "charge date YYYY-MM-DD or DD.MM.YYYY (default: today)")
	chargeCmd.Flags().StringVar(&chargeDescription, "description", "", "description shown on the account (required)")
	chargeCmd.Flags().StringVar(&chargeVAT, "vat", "", "VAT rate in percent (default from reconciler.vat_rate)")

	chargeCmd.MarkFlagRequired("amount")
	chargeCmd.MarkFlagRequired("description")
	chargeCmd.MarkFlagsMutuallyExclusive("athlete", "all")
	chargeCmd.MarkFlagsOneRequired("athlete", "all")
}

// chargeRequest is a validated charge
type chargeRequest struct {
	amount      decimal.Decimal
	vatRate     decimal.Decimal
	date        time.Time
	description string
}

func parseChargeRequest(amount, date, description, vat string, defaultVAT decimal.Decimal, now time.Time) (*chargeRequest, error) {
	req := &chargeRequest{
		amount:      parsers.ParseAmount(amount),
		vatRate:     defaultVAT,
		description: strings.TrimSpace(description),
		date:        time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
	if !req.amount.IsPositive() {
		return nil, errors.ValidationError(errors.CodeInvalidFormat, "amount", amount, nil).
			WithSuggestion("use a positive amount such as 350 or 1.250,00")
	}
	if req.description == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "description", nil, nil)
	}
	if date != "" {
		parsed, ok := parsers.ParseTurkishDate(date)
		if !ok {
			return nil, errors.ValidationError(errors.CodeInvalidFormat, "date", date, nil).
				WithSuggestion("use YYYY-MM-DD or DD.MM.YYYY")
		}
		req.date = parsed
	}
	if vat != "" {
		rate, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(vat), "%"))
		if err != nil || rate.IsNegative() {
			return nil, errors.ValidationError(errors.CodeInvalidFormat, "vat", vat, err)
		}
		req.vatRate = rate
	}
	return req, nil
}

func runCharge(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	service, err := newService(store, false)
	if err != nil {
		return err
	}
	serviceConfig := service.GetConfiguration()

	req, err := parseChargeRequest(chargeAmount, chargeDate, chargeDescription, chargeVAT,
		serviceConfig.DefaultVATRate, serviceConfig.Now())
	if err != nil {
		return err
	}

	athletes, err := store.ListAthletes(ctx)
	if err != nil {
		return errors.StorageError(errors.CodeReadFailed, "roster", err)
	}
	targets, err := chargeTargets(models.NewRoster(athletes), chargeAthletes, chargeAll)
	if err != nil {
		return err
	}

	total, gross := decimal.Zero, decimal.Zero
	for _, athlete := range targets {
		entry := models.NewLedgerEntry(athlete.ID, req.date, req.description, req.amount, req.vatRate, models.EntryTypeDebit)
		if err := store.AppendEntry(ctx, entry); err != nil {
			return errors.StorageError(errors.CodeWriteFailed, "ledger", err).
				WithContext("athlete_id", athlete.ID)
		}
		gross = entry.AmountIncludingVAT
		total = total.Add(gross)
	}

	logger.GetGlobalLogger().WithFields(logger.Fields{
		"athletes":    len(targets),
		"description": req.description,
		"total":       total.StringFixed(2),
	}).Info("Charges booked")

	fmt.Fprintf(cmd.OutOrStdout(), "Charged %d athletes %s each (%s including VAT, total %s)\n",
		len(targets), req.amount.StringFixed(2), gross.StringFixed(2), total.StringFixed(2))
	return nil
}

// chargeTargets resolves the athletes to charge. all selects the active
// athletes in roster order.
func chargeTargets(roster *models.Roster, ids []string, all bool) ([]models.Athlete, error) {
	var targets []models.Athlete
	if all {
		for _, athlete := range roster.All() {
			if athlete.IsActive() {
				targets = append(targets, athlete)
			}
		}
		if len(targets) == 0 {
			return nil, errors.ValidationError(errors.CodeAthleteNotFound, "athlete", "any active athlete", nil).
				WithSuggestion("load the roster first with 'reconciler roster load'")
		}
		return targets, nil
	}

	seen := make(map[string]bool)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		athlete, ok := roster.Get(id)
		if !ok {
			return nil, errors.ValidationError(errors.CodeAthleteNotFound, "athlete", id, nil)
		}
		targets = append(targets, athlete)
	}
	return targets, nil
}
