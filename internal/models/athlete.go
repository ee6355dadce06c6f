package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AthleteStatus is the membership state of an athlete
type AthleteStatus string

const (
	AthleteStatusActive   AthleteStatus = "Active"
	AthleteStatusInactive AthleteStatus = "Inactive"
)

// Athlete is the canonical roster record. The reconciliation core only reads it.
type Athlete struct {
	ID             string        `json:"id" yaml:"id" validate:"required"`
	StudentName    string        `json:"studentName" yaml:"studentName" validate:"required"`
	StudentSurname string        `json:"studentSurname" yaml:"studentSurname"`
	ParentName     string        `json:"parentName" yaml:"parentName"`
	ParentSurname  string        `json:"parentSurname" yaml:"parentSurname"`
	ParentPhone    string        `json:"parentPhone" yaml:"parentPhone"`
	ParentEmail    string        `json:"parentEmail" yaml:"parentEmail" validate:"omitempty,email"`
	SportsBranches []string      `json:"sportsBranches" yaml:"sportsBranches"`
	Status         AthleteStatus `json:"status" yaml:"status" validate:"oneof=Active Inactive"`
}

var validate = validator.New()

// Validate checks the record against its struct tags
func (a *Athlete) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("athlete %q: %w", a.ID, err)
	}
	return nil
}

// FullName returns "name surname" of the athlete
func (a *Athlete) FullName() string {
	return joinName(a.StudentName, a.StudentSurname)
}

// ParentFullName returns "name surname" of the parent, empty when unknown
func (a *Athlete) ParentFullName() string {
	return joinName(a.ParentName, a.ParentSurname)
}

// IsActive reports whether the athlete is an active member
func (a *Athlete) IsActive() bool {
	return a.Status == AthleteStatusActive
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// Roster indexes athletes by ID while keeping their input order
type Roster struct {
	athletes []Athlete
	byID     map[string]int
}

// NewRoster builds a roster. Later duplicates of an ID replace earlier ones.
func NewRoster(athletes []Athlete) *Roster {
	r := &Roster{byID: make(map[string]int, len(athletes))}
	for _, a := range athletes {
		if i, ok := r.byID[a.ID]; ok {
			r.athletes[i] = a
			continue
		}
		r.byID[a.ID] = len(r.athletes)
		r.athletes = append(r.athletes, a)
	}
	return r
}

// All returns the athletes in input order
func (r *Roster) All() []Athlete {
	return r.athletes
}

// Get looks an athlete up by ID
func (r *Roster) Get(id string) (Athlete, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Athlete{}, false
	}
	return r.athletes[i], true
}

// Len returns the number of athletes
func (r *Roster) Len() int {
	return len(r.athletes)
}
