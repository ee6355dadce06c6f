package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"athlete-payment-reconciler/cmd/reconciler/config"
	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/internal/reporter"
	"athlete-payment-reconciler/pkg/errors"
)

var (
	duesAthlete      string
	duesOverdueOnly  bool
	duesOutputFormat string
	duesOutputFile   string
)

var duesCmd = &cobra.Command{
	Use:   "dues",
	Short: "List the unpaid charges of the athletes",
	Long: `Dues lists every charge that no payment covers yet, oldest first, with
its due date and whether it is overdue.

Examples:
  reconciler dues
  reconciler dues --athlete ath-3
  reconciler dues --overdue --output-format csv -o overdue.csv`,
	RunE: runDues,
}

func init() {
	rootCmd.AddCommand(duesCmd)

	duesCmd.Flags().StringVar(&duesAthlete, "athlete", "", "only list the dues of this athlete")
	duesCmd.Flags().BoolVar(&duesOverdueOnly, "overdue", false, "only list overdue charges")
	duesCmd.Flags().StringVar(&duesOutputFormat, "output-format", "", "output format: console, json, csv")
	duesCmd.Flags().StringVarP(&duesOutputFile, "output-file", "o", "", "output file path (default: stdout)")
}

func runDues(cmd *cobra.Command, args []string) error {
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
	dues, err := service.OutstandingDues(ctx)
	if err != nil {
		return err
	}
	athletes, err := store.ListAthletes(ctx)
	if err != nil {
		return errors.StorageError(errors.CodeReadFailed, "roster", err)
	}
	if duesAthlete != "" {
		if _, ok := models.NewRoster(athletes).Get(duesAthlete); !ok {
			return errors.ValidationError(errors.CodeAthleteNotFound, "athlete", duesAthlete, nil)
		}
	}

	reportConfig, err := config.CreateReportConfig(viper.GetViper(), duesOutputFormat)
	if err != nil {
		return err
	}
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	output, closeOutput, err := reportWriter(cmd, duesOutputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	return generator.GenerateDuesReport(filterDues(dues, duesAthlete, duesOverdueOnly), athletes, output)
}

func filterDues(dues []models.OutstandingDue, athleteID string, overdueOnly bool) []models.OutstandingDue {
	var out []models.OutstandingDue
	for _, due := range dues {
		if athleteID != "" && due.AthleteID != athleteID {
			continue
		}
		if overdueOnly && due.Status != models.DueStatusOverdue {
			continue
		}
		out = append(out, due)
	}
	return out
}
