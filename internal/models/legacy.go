package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Roster exports from older registration screens name the same field several
// ways. Each list is tried in order and the first non-empty value wins.
var legacyFieldNames = map[string][]string{
	"id":             {"id", "ID", "athleteId", "athlete_id"},
	"studentName":    {"studentName", "firstName", "name", "ad"},
	"studentSurname": {"studentSurname", "lastName", "surname", "soyad"},
	"parentName":     {"parentName", "parentFirstName", "veliAdi"},
	"parentSurname":  {"parentSurname", "parentLastName", "veliSoyadi"},
	"parentPhone":    {"parentPhone", "phone", "telefon"},
	"parentEmail":    {"parentEmail", "email", "eposta"},
	"sportsBranches": {"sportsBranches", "branches", "branch", "brans"},
	"status":         {"status", "durum"},
}

// AthleteFromRecord adapts a loosely typed roster record into the canonical
// Athlete. Missing IDs are generated. The result is validated.
func AthleteFromRecord(rec map[string]interface{}) (Athlete, error) {
	a := Athlete{
		ID:             lookupString(rec, "id"),
		StudentName:    lookupString(rec, "studentName"),
		StudentSurname: lookupString(rec, "studentSurname"),
		ParentName:     lookupString(rec, "parentName"),
		ParentSurname:  lookupString(rec, "parentSurname"),
		ParentPhone:    lookupString(rec, "parentPhone"),
		ParentEmail:    strings.TrimSpace(lookupString(rec, "parentEmail")),
		SportsBranches: lookupStrings(rec, "sportsBranches"),
		Status:         ParseAthleteStatus(lookupString(rec, "status")),
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := a.Validate(); err != nil {
		return Athlete{}, err
	}
	return a, nil
}

// ParseAthleteStatus maps the status spellings found in exports. Empty means active.
func ParseAthleteStatus(s string) AthleteStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inactive", "pasif", "passive":
		return AthleteStatusInactive
	default:
		return AthleteStatusActive
	}
}

func lookup(rec map[string]interface{}, field string) interface{} {
	for _, key := range legacyFieldNames[field] {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func lookupString(rec map[string]interface{}, field string) string {
	switch v := lookup(rec, field).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func lookupStrings(rec map[string]interface{}, field string) []string {
	var out []string
	switch v := lookup(rec, field).(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	case []interface{}:
		for _, item := range v {
			if p := strings.TrimSpace(fmt.Sprint(item)); p != "" {
				out = append(out, p)
			}
		}
	case []string:
		for _, item := range v {
			if p := strings.TrimSpace(item); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
