package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"athlete-payment-reconciler/cmd/reconciler/config"
	"athlete-payment-reconciler/internal/reconciler"
	"athlete-payment-reconciler/internal/reporter"
	"athlete-payment-reconciler/pkg/errors"
)

// Flags for the import command
var (
	statementFile string
	assignFlags   []string
	splitFlags    []string
	confirmImport bool
	strictMatch   bool
	outputFormat  string
	outputFile    string
	showProgress  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Match a bank statement against the club's athletes",
	Long: `Import reads an .xlsx or .csv bank statement, matches every incoming
transfer to an athlete and prints the result. Nothing is booked unless
--confirm is given.

Rows are numbered as in the statement file (the header is row 1). Use the
report of a first run to choose athletes for unmatched rows, then repeat the
import with --assign or --split and --confirm.

Examples:
  # Preview the matches
  reconciler import --file statement.xlsx

  # Assign row 7, split row 9 between two siblings and book everything
  reconciler import --file statement.xlsx --assign 7=ath-12 --split 9=ath-3,ath-4 --confirm

  # Machine-readable output of the rows that still need a decision
  reconciler import --file statement.csv --output-format json --output-file rows.json`,

	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&statementFile, "file", "f", "", "path to the bank statement (.xlsx or .csv, required)")
	importCmd.Flags().StringArrayVar(&assignFlags, "assign", nil, "assign a row to an athlete: ROW=ATHLETE_ID (repeatable)")
	importCmd.Flags().StringArrayVar(&splitFlags, "split", nil, "split a row evenly: ROW=ATHLETE_ID,ATHLETE_ID (repeatable)")
	importCmd.Flags().BoolVar(&confirmImport, "confirm", false, "book the matched rows")
	importCmd.Flags().BoolVar(&strictMatch, "strict", false, "use the strict matching profile")
	importCmd.Flags().StringVar(&outputFormat, "output-format", "", "output format: console, json, csv (default from report.format)")
	importCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	importCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	importCmd.MarkFlagRequired("file")
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(statementFile, "bank statement"); err != nil {
		return err
	}
	if _, err := parseAssignments(assignFlags); err != nil {
		return err
	}
	if _, err := parseSplits(splitFlags); err != nil {
		return err
	}
	if outputFormat != "" && !reporter.OutputFormat(strings.ToLower(outputFormat)).IsValid() {
		return errors.ValidationError(errors.CodeInvalidSelection, "output-format", outputFormat, nil).
			WithSuggestion("valid formats: console, json, csv")
	}
	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, description, nil, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	if info.IsDir() {
		return errors.FileError(errors.CodeUnsupportedFile, filePath, fmt.Errorf("%s is a directory, expected a file", description))
	}
	return nil
}

// parseAssignments reads ROW=ATHLETE_ID pairs
func parseAssignments(values []string) (map[int]string, error) {
	out := make(map[int]string)
	for _, value := range values {
		row, target, err := splitRowFlag(value)
		if err != nil {
			return nil, err
		}
		if strings.Contains(target, ",") {
			return nil, errors.ValidationError(errors.CodeInvalidSelection, "assign", value, nil).
				WithSuggestion("use --split to divide a row between several athletes")
		}
		if _, dup := out[row]; dup {
			return nil, errors.ValidationError(errors.CodeInvalidSelection, "assign", value, fmt.Errorf("row %d assigned twice", row))
		}
		out[row] = target
	}
	return out, nil
}

// parseSplits reads ROW=ATHLETE_ID,ATHLETE_ID pairs
func parseSplits(values []string) (map[int][]string, error) {
	out := make(map[int][]string)
	for _, value := range values {
		row, target, err := splitRowFlag(value)
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, id := range strings.Split(target, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, errors.ValidationError(errors.CodeInvalidSelection, "split", value, nil)
		}
		if _, dup := out[row]; dup {
			return nil, errors.ValidationError(errors.CodeInvalidSelection, "split", value, fmt.Errorf("row %d split twice", row))
		}
		out[row] = ids
	}
	return out, nil
}

func splitRowFlag(value string) (int, string, error) {
	rowText, target, ok := strings.Cut(value, "=")
	if !ok {
		return 0, "", errors.ValidationError(errors.CodeInvalidSelection, "row", value, nil).
			WithSuggestion("use the form ROW=ATHLETE_ID, e.g. 7=ath-12")
	}
	row, err := strconv.Atoi(strings.TrimSpace(rowText))
	if err != nil || row < 1 {
		return 0, "", errors.ValidationError(errors.CodeInvalidSelection, "row", rowText, err)
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return 0, "", errors.ValidationError(errors.CodeMissingField, "athlete_id", value, nil)
	}
	return row, target, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	assignments, _ := parseAssignments(assignFlags)
	splits, _ := parseSplits(splitFlags)

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	service, err := newService(store, strictMatch)
	if err != nil {
		return err
	}
	parseConfig, err := config.CreateParseConfig(viper.GetViper())
	if err != nil {
		return err
	}
	reportConfig, err := config.CreateReportConfig(viper.GetViper(), outputFormat)
	if err != nil {
		return err
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, nil)
	if err != nil {
		return err
	}

	orchestrator, err := reconciler.NewReconciliationOrchestrator(service, parseConfig)
	if err != nil {
		return err
	}
	if showProgress {
		orchestrator.AddProgressCallback(func(progress *reconciler.ImportProgress) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\r[%d/%d] %-28s (%.0f%% complete)",
				progress.CompletedSteps, progress.TotalSteps,
				progress.CurrentStep, progress.PercentComplete)
		})
	}

	result, importErr := orchestrator.ProcessImport(ctx, &reconciler.ImportRequest{
		File:        statementFile,
		Assignments: assignments,
		Splits:      splits,
		Confirm:     confirmImport,
	})
	if showProgress {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if result == nil {
		return importErr
	}

	output, closeOutput, err := reportWriter(cmd, outputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	if err := generator.WriteImportReport(result, output); err != nil {
		return err
	}

	if !confirmImport && result.Summary.MatchedRows > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%d matched rows not booked; run again with --confirm to book them.\n", result.Summary.MatchedRows)
	}
	return importErr
}
