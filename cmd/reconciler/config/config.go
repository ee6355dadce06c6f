// Package config builds the component configurations of the CLI from viper.
// Every value can come from the config file, a RECONCILER_* environment
// variable or a flag, and falls back to the component's own default.
package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"athlete-payment-reconciler/internal/matcher"
	"athlete-payment-reconciler/internal/parsers"
	"athlete-payment-reconciler/internal/reconciler"
	"athlete-payment-reconciler/internal/reporter"
	"athlete-payment-reconciler/internal/storage"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

// Matching profiles
const (
	ProfileDefault = "default"
	ProfileStrict  = "strict"
)

// SetDefaults registers the default of every key so that environment
// variables are picked up for keys missing from the config file.
func SetDefaults(v *viper.Viper) {
	store := storage.DefaultConfig()
	v.SetDefault("storage.driver", string(store.Driver))
	v.SetDefault("storage.path", store.Path)
	v.SetDefault("storage.history_file", "")

	rec := reconciler.DefaultConfig()
	v.SetDefault("reconciler.payment_method", rec.PaymentMethod)
	v.SetDefault("reconciler.vat_rate", rec.DefaultVATRate.String())
	v.SetDefault("reconciler.due_term_months", rec.DueTermMonths)
	v.SetDefault("reconciler.progress_interval", rec.ProgressInterval.String())

	v.SetDefault("matching.profile", ProfileDefault)

	v.SetDefault("parser.has_header", true)
	v.SetDefault("parser.delimiter", "")

	report := reporter.DefaultReportConfig()
	v.SetDefault("report.format", string(report.Format))
	v.SetDefault("report.include_suggestions", report.IncludeSuggestions)
	v.SetDefault("report.max_suggestions", report.MaxSuggestions)
	v.SetDefault("report.include_sibling_options", report.IncludeSiblingOptions)
	v.SetDefault("report.unmatched_only", report.UnmatchedOnly)
	v.SetDefault("report.description_width", report.DescriptionWidth)
	v.SetDefault("report.csv_delimiter", string(report.CSVDelimiter))
	v.SetDefault("report.csv_headers", report.CSVHeaders)

	log := logger.DefaultConfig()
	v.SetDefault("log.level", string(log.Level))
	v.SetDefault("log.format", string(log.Format))
	v.SetDefault("log.output", string(log.Output))
	v.SetDefault("log.file", "")
}

// CreateLoggerConfig creates the logger configuration. verbose forces debug
// level.
func CreateLoggerConfig(v *viper.Viper, verbose bool) (*logger.Config, error) {
	config := logger.DefaultConfig()
	setString(v, "log.level", (*string)(&config.Level))
	setString(v, "log.format", (*string)(&config.Format))
	setString(v, "log.output", (*string)(&config.Output))
	setString(v, "log.file", &config.File)
	if verbose {
		config.Level = logger.DebugLevel
		config.CallerInfo = true
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", config, err)
	}
	return config, nil
}

// CreateMatchingConfig creates the matching configuration from the selected
// profile and any individual matching.* overrides.
func CreateMatchingConfig(v *viper.Viper) (*matcher.MatchingConfig, error) {
	var config *matcher.MatchingConfig
	switch profile := strings.ToLower(v.GetString("matching.profile")); profile {
	case "", ProfileDefault:
		config = matcher.DefaultMatchingConfig()
	case ProfileStrict:
		config = matcher.StrictMatchingConfig()
	default:
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching.profile", profile, nil).
			WithSuggestion("use 'default' or 'strict'")
	}

	floats := map[string]*float64{
		"matching.amount_weight":           &config.AmountWeight,
		"matching.amount_decay":            &config.AmountDecay,
		"matching.name_weight":             &config.NameWeight,
		"matching.auto_match_threshold":    &config.AutoMatchThreshold,
		"matching.suggestion_floor":        &config.SuggestionFloor,
		"matching.sibling_relevance_floor": &config.SiblingRelevanceFloor,
		"matching.sibling_bonus":           &config.SiblingBonus,
		"matching.sibling_tie_window":      &config.SiblingTieWindow,
		"matching.parent_boost":            &config.ParentBoost,
		"matching.fuzzy_token_floor":       &config.FuzzyTokenFloor,
		"matching.fuzzy_token_credit":      &config.FuzzyTokenCredit,
	}
	for key, target := range floats {
		if v.IsSet(key) {
			*target = v.GetFloat64(key)
		}
	}

	decimals := map[string]*decimal.Decimal{
		"matching.amount_tolerance":         &config.AmountTolerance,
		"matching.multi_tolerance":          &config.MultiTolerance,
		"matching.multi_absolute_threshold": &config.MultiAbsoluteThreshold,
	}
	for key, target := range decimals {
		if !v.IsSet(key) {
			continue
		}
		d, err := decimal.NewFromString(v.GetString(key))
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, key, v.GetString(key), err)
		}
		*target = d
	}

	if v.IsSet("matching.suggestion_limit") {
		config.SuggestionLimit = v.GetInt("matching.suggestion_limit")
	}
	if v.IsSet("matching.fee_multipliers") {
		config.FeeMultipliers = v.GetIntSlice("matching.fee_multipliers")
	}
	if v.IsSet("matching.common_fees") {
		fees, err := parseFees(v.GetStringSlice("matching.common_fees"))
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching.common_fees", v.Get("matching.common_fees"), err)
		}
		config.CommonFees = fees
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", config, err)
	}
	return config, nil
}

func parseFees(values []string) ([]decimal.Decimal, error) {
	var fees []decimal.Decimal
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			fee, err := decimal.NewFromString(part)
			if err != nil {
				return nil, fmt.Errorf("invalid fee %q: %w", part, err)
			}
			fees = append(fees, fee)
		}
	}
	return fees, nil
}

// CreateReconcilerConfig creates the reconciliation service configuration
func CreateReconcilerConfig(v *viper.Viper) (*reconciler.Config, error) {
	config := reconciler.DefaultConfig()
	setString(v, "reconciler.payment_method", &config.PaymentMethod)
	if v.IsSet("reconciler.due_term_months") {
		config.DueTermMonths = v.GetInt("reconciler.due_term_months")
	}
	if v.IsSet("reconciler.progress_interval") {
		config.ProgressInterval = v.GetDuration("reconciler.progress_interval")
	}
	if raw := strings.TrimSpace(v.GetString("reconciler.vat_rate")); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler.vat_rate", raw, err)
		}
		config.DefaultVATRate = rate
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", config, err)
	}
	return config, nil
}

// CreateStorageConfig creates the storage configuration
func CreateStorageConfig(v *viper.Viper) (*storage.Config, error) {
	config := storage.DefaultConfig()
	setString(v, "storage.driver", (*string)(&config.Driver))
	setString(v, "storage.path", &config.Path)
	setString(v, "storage.history_file", &config.HistoryFile)
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "storage", config, err).
			WithSuggestion("set storage.driver to 'sqlite' with a storage.path, or to 'memory'")
	}
	return config, nil
}

// CreateParseConfig creates the statement parser configuration
func CreateParseConfig(v *viper.Viper) (*parsers.ParseConfig, error) {
	config := parsers.DefaultParseConfig()
	if v.IsSet("parser.has_header") {
		config.HasHeader = v.GetBool("parser.has_header")
	}
	delimiter, err := singleRune(v.GetString("parser.delimiter"))
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parser.delimiter", v.GetString("parser.delimiter"), err)
	}
	config.Delimiter = delimiter
	return config, nil
}

// CreateReportConfig creates the report configuration. A non-empty format
// overrides report.format.
func CreateReportConfig(v *viper.Viper, format string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	setString(v, "report.format", (*string)(&config.Format))
	if format != "" {
		config.Format = reporter.OutputFormat(strings.ToLower(format))
	}
	for key, target := range map[string]*bool{
		"report.include_suggestions":     &config.IncludeSuggestions,
		"report.include_sibling_options": &config.IncludeSiblingOptions,
		"report.unmatched_only":          &config.UnmatchedOnly,
		"report.csv_headers":             &config.CSVHeaders,
	} {
		if v.IsSet(key) {
			*target = v.GetBool(key)
		}
	}
	if v.IsSet("report.max_suggestions") {
		config.MaxSuggestions = v.GetInt("report.max_suggestions")
	}
	if v.IsSet("report.description_width") {
		config.DescriptionWidth = v.GetInt("report.description_width")
	}

	delimiter, err := singleRune(v.GetString("report.csv_delimiter"))
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report.csv_delimiter", v.GetString("report.csv_delimiter"), err)
	}
	if delimiter != 0 {
		config.CSVDelimiter = delimiter
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// setString overwrites target when key has a non-empty value
func setString(v *viper.Viper, key string, target *string) {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		*target = s
	}
}

// singleRune returns the only rune of s, or zero for an empty string.
// "\t" and "tab" select a tab.
func singleRune(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("expected a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
