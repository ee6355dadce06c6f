package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

// SkippedRecord is a roster record that could not be adapted
type SkippedRecord struct {
	Index int   `json:"index"`
	Err   error `json:"-"`
}

// RosterFile is the outcome of reading a roster export
type RosterFile struct {
	Athletes []models.Athlete
	Skipped  []SkippedRecord
}

// LoadRosterFile reads a YAML or JSON roster export. The document is either
// a list of records or a mapping with an "athletes" list. Records may use
// legacy field names; records that fail validation are skipped with a warning.
func LoadRosterFile(path string) (*RosterFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := errors.CodeFileNotFound
		if os.IsPermission(err) {
			code = errors.CodeFilePermission
		}
		return nil, errors.FileError(code, path, err)
	}
	return ParseRoster(data, path)
}

// ParseRoster adapts the records of a YAML or JSON roster document
func ParseRoster(data []byte, source string) (*RosterFile, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, source, err).
			WithSuggestion("the roster must be a YAML or JSON list of athlete records")
	}

	records, err := rosterRecords(doc)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, source, err).
			WithSuggestion("the roster must be a YAML or JSON list of athlete records")
	}

	log := logger.GetGlobalLogger().WithComponent("roster_loader")
	result := &RosterFile{}
	for i, item := range records {
		rec, ok := item.(map[string]interface{})
		if !ok {
			result.Skipped = append(result.Skipped, SkippedRecord{Index: i, Err: fmt.Errorf("record %d is not a mapping", i)})
			continue
		}
		athlete, err := models.AthleteFromRecord(rec)
		if err != nil {
			log.WithError(err).WithField("index", i).Warn("Skipping invalid roster record")
			result.Skipped = append(result.Skipped, SkippedRecord{Index: i, Err: err})
			continue
		}
		result.Athletes = append(result.Athletes, athlete)
	}

	log.WithFields(logger.Fields{
		"source":   source,
		"athletes": len(result.Athletes),
		"skipped":  len(result.Skipped),
	}).Info("Loaded roster")
	return result, nil
}

func rosterRecords(doc interface{}) ([]interface{}, error) {
	switch v := doc.(type) {
	case []interface{}:
		return v, nil
	case map[string]interface{}:
		list, ok := v["athletes"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("mapping has no athletes list")
		}
		return list, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected document of type %T", doc)
	}
}
