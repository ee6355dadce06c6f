package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"athlete-payment-reconciler/internal/storage"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

var rosterFile string

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage the athlete roster",
}

var rosterLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load athletes from a YAML or JSON roster export",
	Long: `Load reads a roster export and stores its athletes. Athletes already
stored under the same ID are updated. Records without an ID get a generated
one; records without a first name or with an invalid e-mail are skipped and
listed.

Examples:
  reconciler roster load --file athletes.yaml
  reconciler roster load --file export.json --db club.db`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFileExists(rosterFile, "roster")
	},
	RunE: runRosterLoad,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterLoadCmd)

	rosterLoadCmd.Flags().StringVarP(&rosterFile, "file", "f", "", "path to the roster export (.yaml, .yml or .json, required)")
	rosterLoadCmd.MarkFlagRequired("file")
}

func runRosterLoad(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	roster, err := storage.LoadRosterFile(rosterFile)
	if err != nil {
		return err
	}
	if len(roster.Athletes) == 0 {
		return errors.ParseError(errors.CodeNoValidRows, rosterFile, nil).
			WithSuggestion("every athlete record needs at least a first name")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveAthletes(ctx, roster.Athletes); err != nil {
		return err
	}

	logger.GetGlobalLogger().WithFields(logger.Fields{
		"file":     rosterFile,
		"athletes": len(roster.Athletes),
	}).Info("Roster stored")

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d athletes from %s\n", len(roster.Athletes), rosterFile)
	if len(roster.Skipped) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d invalid records:\n", len(roster.Skipped))
		for _, skipped := range roster.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "  record %d: %v\n", skipped.Index+1, skipped.Err)
		}
	}
	return nil
}
