package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEntryType_IsValid(t *testing.T) {
	tests := []struct {
		entryType EntryType
		expected  bool
	}{
		{EntryTypeDebit, true},
		{EntryTypeCredit, true},
		{EntryType("refund"), false},
		{EntryType(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.entryType), func(t *testing.T) {
			if result := tt.entryType.IsValid(); result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestNewLedgerEntry_VATInvariant(t *testing.T) {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		net      string
		rate     string
		expected string
	}{
		{"no vat", "350", "0", "350"},
		{"twenty percent", "350", "20", "420"},
		{"ten percent with cents", "123.45", "10", "135.80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewLedgerEntry("a1", date, "Aidat", decimal.RequireFromString(tt.net), decimal.RequireFromString(tt.rate), EntryTypeDebit)
			if !entry.AmountIncludingVAT.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("Expected gross %s, got %s", tt.expected, entry.AmountIncludingVAT)
			}
			if !entry.AmountExcludingVAT.Add(entry.VATAmount).Equal(entry.AmountIncludingVAT) {
				t.Errorf("Expected net + vat = gross, got %s + %s != %s", entry.AmountExcludingVAT, entry.VATAmount, entry.AmountIncludingVAT)
			}
			if entry.Month != "2024-06" {
				t.Errorf("Expected month 2024-06, got %s", entry.Month)
			}
			if err := entry.Validate(); err != nil {
				t.Errorf("Expected valid entry, got %v", err)
			}
		})
	}
}

func TestNewCreditFromGross(t *testing.T) {
	date := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	entry := NewCreditFromGross("a1", date, "EFT", decimal.NewFromInt(420), decimal.NewFromInt(20))

	if !entry.IsCredit() {
		t.Error("Expected a credit entry")
	}
	if !entry.AmountIncludingVAT.Equal(decimal.NewFromInt(420)) {
		t.Errorf("Expected gross 420, got %s", entry.AmountIncludingVAT)
	}
	if !entry.AmountExcludingVAT.Equal(decimal.NewFromInt(350)) {
		t.Errorf("Expected net 350, got %s", entry.AmountExcludingVAT)
	}
}

func TestLedgerEntry_Validate(t *testing.T) {
	entry := &LedgerEntry{Type: EntryTypeCredit, Date: time.Now()}
	if err := entry.Validate(); err == nil {
		t.Error("Expected error for missing athlete ID")
	}
	entry.AthleteID = "a1"
	entry.Type = "bogus"
	if err := entry.Validate(); err == nil {
		t.Error("Expected error for invalid type")
	}
}

func TestAthleteNames(t *testing.T) {
	a := Athlete{StudentName: " Ahmet ", StudentSurname: "Yılmaz", ParentName: "Mehmet", ParentSurname: "Yılmaz"}
	if a.FullName() != "Ahmet Yılmaz" {
		t.Errorf("Expected 'Ahmet Yılmaz', got %q", a.FullName())
	}
	if a.ParentFullName() != "Mehmet Yılmaz" {
		t.Errorf("Expected 'Mehmet Yılmaz', got %q", a.ParentFullName())
	}

	orphan := Athlete{StudentName: "Can"}
	if orphan.ParentFullName() != "" {
		t.Errorf("Expected empty parent name, got %q", orphan.ParentFullName())
	}
}

func TestAthlete_Validate(t *testing.T) {
	valid := Athlete{ID: "a1", StudentName: "Ahmet", Status: AthleteStatusActive}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid athlete, got %v", err)
	}

	badEmail := valid
	badEmail.ParentEmail = "not-an-email"
	if err := badEmail.Validate(); err == nil {
		t.Error("Expected error for malformed email")
	}

	noName := valid
	noName.StudentName = ""
	if err := noName.Validate(); err == nil {
		t.Error("Expected error for missing student name")
	}
}

func TestRoster(t *testing.T) {
	r := NewRoster([]Athlete{
		{ID: "a1", StudentName: "Ahmet"},
		{ID: "a2", StudentName: "Ayşe"},
		{ID: "a1", StudentName: "Ahmet Can"},
	})

	if r.Len() != 2 {
		t.Fatalf("Expected 2 athletes, got %d", r.Len())
	}
	a, ok := r.Get("a1")
	if !ok || a.StudentName != "Ahmet Can" {
		t.Errorf("Expected later duplicate to win, got %+v", a)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Expected missing athlete lookup to fail")
	}
	if r.All()[1].ID != "a2" {
		t.Errorf("Expected input order preserved, got %s", r.All()[1].ID)
	}
}

func TestAthleteFromRecord(t *testing.T) {
	tests := []struct {
		name     string
		record   map[string]interface{}
		check    func(t *testing.T, a Athlete)
		hasError bool
	}{
		{
			name: "canonical names",
			record: map[string]interface{}{
				"id": "a1", "studentName": "Ahmet", "studentSurname": "Yılmaz",
				"parentName": "Mehmet", "parentSurname": "Yılmaz", "status": "Active",
				"sportsBranches": []interface{}{"Basketbol", "Yüzme"},
			},
			check: func(t *testing.T, a Athlete) {
				if len(a.SportsBranches) != 2 {
					t.Errorf("Expected 2 branches, got %v", a.SportsBranches)
				}
			},
		},
		{
			name: "legacy names",
			record: map[string]interface{}{
				"ID": 42, "firstName": "Elif", "lastName": "Kaya",
				"phone": "0532 111 22 33", "email": "ayse@example.com", "branch": "Voleybol, Tenis",
				"status": "Pasif",
			},
			check: func(t *testing.T, a Athlete) {
				if a.ID != "42" || a.StudentName != "Elif" || a.StudentSurname != "Kaya" {
					t.Errorf("Unexpected adaptation: %+v", a)
				}
				if a.ParentPhone != "0532 111 22 33" || a.ParentEmail != "ayse@example.com" {
					t.Errorf("Expected parent contact mapped, got %+v", a)
				}
				if a.Status != AthleteStatusInactive {
					t.Errorf("Expected Inactive, got %s", a.Status)
				}
				if strings.Join(a.SportsBranches, "|") != "Voleybol|Tenis" {
					t.Errorf("Expected split branches, got %v", a.SportsBranches)
				}
			},
		},
		{
			name:   "generated id",
			record: map[string]interface{}{"name": "Can"},
			check: func(t *testing.T, a Athlete) {
				if a.ID == "" {
					t.Error("Expected generated ID")
				}
				if a.Status != AthleteStatusActive {
					t.Errorf("Expected default Active, got %s", a.Status)
				}
			},
		},
		{
			name:     "missing name",
			record:   map[string]interface{}{"id": "x", "studentName": "  "},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := AthleteFromRecord(tt.record)
			if tt.hasError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			tt.check(t, a)
		})
	}
}

func TestMatchCandidate_Allocations(t *testing.T) {
	row := BankTransactionRow{Amount: decimal.NewFromInt(350)}

	unmatched := MatchCandidate{Transaction: row, Status: MatchStatusUnmatched}
	if unmatched.Allocations() != nil {
		t.Error("Expected no allocations without an athlete")
	}

	single := MatchCandidate{Transaction: row, AthleteID: "a1", Status: MatchStatusMatched}
	allocs := single.Allocations()
	if len(allocs) != 1 || !allocs[0].Amount.Equal(row.Amount) {
		t.Errorf("Expected full amount to one athlete, got %+v", allocs)
	}

	multi := MatchCandidate{Transaction: row, IsMultiple: true, MultiplePayments: []Allocation{{AthleteID: "a"}, {AthleteID: "b"}}}
	if len(multi.Allocations()) != 2 {
		t.Errorf("Expected 2 allocations, got %d", len(multi.Allocations()))
	}
}

func TestBankTransactionRow_MarshalJSON(t *testing.T) {
	row := BankTransactionRow{
		RowIndex:   1,
		Date:       "15/06/2024",
		ParsedDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromInt(350),
	}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"parsedDate":"2024-06-15"`) {
		t.Errorf("Expected calendar date in JSON, got %s", data)
	}
}
