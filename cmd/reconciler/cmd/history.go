package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"athlete-payment-reconciler/cmd/reconciler/config"
	"athlete-payment-reconciler/internal/matchhistory"
	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/internal/reporter"
	"athlete-payment-reconciler/pkg/errors"
)

var (
	historyOutputFormat string
	historyOutputFile   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the remembered description matches",
	Long: `The match history remembers which athlete a transfer description was
manually assigned to. Later imports match the same description to the same
athlete automatically.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the remembered descriptions",
	RunE:  runHistoryList,
}

var historyLookupCmd = &cobra.Command{
	Use:   "lookup DESCRIPTION",
	Short: "Show which athlete a description is remembered for",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistoryLookup,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyLookupCmd)

	historyListCmd.Flags().StringVar(&historyOutputFormat, "output-format", "", "output format: console, json, csv")
	historyListCmd.Flags().StringVarP(&historyOutputFile, "output-file", "o", "", "output file path (default: stdout)")
}

func loadHistory(cmd *cobra.Command) (*matchhistory.Cache, []models.Athlete, error) {
	ctx := commandContext(cmd)

	store, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	service, err := newService(store, false)
	if err != nil {
		return nil, nil, err
	}
	history, err := service.History(ctx)
	if err != nil {
		return nil, nil, err
	}
	athletes, err := store.ListAthletes(ctx)
	if err != nil {
		return nil, nil, errors.StorageError(errors.CodeReadFailed, "roster", err)
	}
	return history, athletes, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	history, athletes, err := loadHistory(cmd)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(viper.GetViper(), historyOutputFormat)
	if err != nil {
		return err
	}
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	output, closeOutput, err := reportWriter(cmd, historyOutputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	return generator.GenerateHistoryReport(history.Entries(), athletes, output)
}

func runHistoryLookup(cmd *cobra.Command, args []string) error {
	history, athletes, err := loadHistory(cmd)
	if err != nil {
		return err
	}

	description := strings.Join(args, " ")
	athleteID, ok := history.Lookup(description)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "No athlete remembered for %q\n", matchhistory.Key(description))
		return nil
	}

	name := "(not in roster)"
	if athlete, found := models.NewRoster(athletes).Get(athleteID); found {
		name = athlete.FullName()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s %s\n", matchhistory.Key(description), athleteID, name)
	return nil
}
