// Package sampledata generates a reproducible club roster, its monthly
// charges and a bank statement paying them, for trying the importer and for
// tests that need a realistic statement file.
package sampledata

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"athlete-payment-reconciler/internal/models"
)

// Scenario tells which matching path a generated statement row exercises
type Scenario string

const (
	// ScenarioParentName is paid by the parent with their own name in the description
	ScenarioParentName Scenario = "parent_name"
	// ScenarioAthleteName names the athlete instead of the payer
	ScenarioAthleteName Scenario = "athlete_name"
	// ScenarioSiblingTotal pays the dues of two siblings in one transfer
	ScenarioSiblingTotal Scenario = "sibling_total"
	// ScenarioReference carries only a bank reference, never a name
	ScenarioReference Scenario = "reference"
	// ScenarioUnrelated is an incoming transfer that is not a due payment
	ScenarioUnrelated Scenario = "unrelated"
	// ScenarioOutgoing is a payment made by the club
	ScenarioOutgoing Scenario = "outgoing"
)

// Config controls the generated dataset
type Config struct {
	Seed           int64
	Families       int
	MonthlyFee     decimal.Decimal
	Month          time.Time
	UnrelatedRows  int
	OutgoingRows   int
	ReferenceRows  int
	SiblingRatio   float64 // share of families with two children
	CombinedRatio  float64 // share of two-child families paying both dues at once
	AthleteNameMix float64 // share of single payments naming the athlete
}

// DefaultConfig returns a small June 2024 dataset
func DefaultConfig() *Config {
	return &Config{
		Seed:           1,
		Families:       8,
		MonthlyFee:     decimal.NewFromInt(350),
		Month:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		UnrelatedRows:  2,
		OutgoingRows:   2,
		ReferenceRows:  1,
		SiblingRatio:   0.4,
		CombinedRatio:  0.6,
		AthleteNameMix: 0.3,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Families < 1 || c.Families > len(surnames) {
		return fmt.Errorf("families must be between 1 and %d, got %d", len(surnames), c.Families)
	}
	if !c.MonthlyFee.IsPositive() {
		return fmt.Errorf("monthly fee must be positive")
	}
	if c.Month.IsZero() {
		return fmt.Errorf("month cannot be empty")
	}
	if c.UnrelatedRows < 0 || c.OutgoingRows < 0 || c.ReferenceRows < 0 {
		return fmt.Errorf("row counts cannot be negative")
	}
	for name, ratio := range map[string]float64{
		"sibling ratio":    c.SiblingRatio,
		"combined ratio":   c.CombinedRatio,
		"athlete name mix": c.AthleteNameMix,
	} {
		if ratio < 0 || ratio > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, ratio)
		}
	}
	return nil
}

// StatementRow is one generated bank statement line
type StatementRow struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Reference   string
	Scenario    Scenario
	AthleteIDs  []string
}

// Dataset is a generated roster with its charges and the statement paying them
type Dataset struct {
	Athletes  []models.Athlete
	Charges   []*models.LedgerEntry
	Statement []StatementRow
}

var (
	maleNames   = []string{"Ahmet", "Mehmet", "Mustafa", "Ali", "Hüseyin", "Emre", "Burak", "Oğuz", "Çağrı", "İbrahim"}
	femaleNames = []string{"Ayşe", "Fatma", "Zeynep", "Elif", "Şule", "Gül", "Özge", "Merve", "İrem", "Dilek"}
	allNames    = append(append([]string{}, maleNames...), femaleNames...)
	surnames    = []string{
		"Yılmaz", "Kaya", "Demir", "Şahin", "Çelik", "Yıldız", "Yıldırım", "Öztürk", "Aydın", "Özdemir",
		"Arslan", "Doğan", "Kılıç", "Aslan", "Çetin", "Kara", "Koç", "Kurt", "Özkan", "Şimşek",
	}
	branches     = []string{"Yüzme", "Basketbol", "Voleybol", "Futbol", "Tenis", "Jimnastik"}
	transferTags = []string{"EFT", "HAVALE", "FAST", "AIDAT", "AİDAT ÖDEMESİ"}
	unrelated    = []string{"ELEKTRIK FATURASI IADE", "KIRA GELIRI SALON", "SPONSOR KATKI PAYI", "FAIZ TAHAKKUKU"}
	outgoing     = []string{"ANTRENOR MAAS ODEMESI", "SU FATURASI", "MALZEME ALIMI", "SALON KIRASI"}
	monthNames   = []string{"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran", "Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık"}
)

// Generate builds a dataset. The same configuration always yields the same
// roster and statement.
func Generate(config *Config) (*Dataset, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(config.Seed))
	month := time.Date(config.Month.Year(), config.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
	dueDescription := fmt.Sprintf("%s %d aidatı", monthNames[month.Month()-1], month.Year())
	familyNames := rng.Perm(len(surnames))[:config.Families]

	ds := &Dataset{}
	for i, surnameIndex := range familyNames {
		surname := surnames[surnameIndex]
		parentName := pick(rng, allNames)
		children := 1
		if rng.Float64() < config.SiblingRatio {
			children = 2
		}

		var family []models.Athlete
		for c := 0; c < children; c++ {
			athlete := models.Athlete{
				ID:             fmt.Sprintf("ath-%03d", len(ds.Athletes)+1),
				StudentName:    childName(rng, parentName, family),
				StudentSurname: surname,
				ParentName:     parentName,
				ParentSurname:  surname,
				ParentPhone:    fmt.Sprintf("05%02d %03d %02d %02d", 30+rng.Intn(30), rng.Intn(1000), rng.Intn(100), rng.Intn(100)),
				ParentEmail:    fmt.Sprintf("veli%d@example.com", i+1),
				SportsBranches: []string{pick(rng, branches)},
				Status:         models.AthleteStatusActive,
			}
			family = append(family, athlete)
			ds.Athletes = append(ds.Athletes, athlete)
			ds.Charges = append(ds.Charges, models.NewLedgerEntry(
				athlete.ID, month, dueDescription, config.MonthlyFee, decimal.Zero, models.EntryTypeDebit))
		}

		ds.Statement = append(ds.Statement, familyPayments(rng, config, month, family)...)
	}

	// reference-only rows replace the description of single payments
	for i := 0; i < config.ReferenceRows; i++ {
		for j := range ds.Statement {
			row := &ds.Statement[j]
			if row.Scenario == ScenarioParentName || row.Scenario == ScenarioAthleteName {
				row.Reference = fmt.Sprintf("REF%06d", rng.Intn(1000000))
				row.Description = row.Reference
				row.Scenario = ScenarioReference
				break
			}
		}
	}
	for i := 0; i < config.UnrelatedRows; i++ {
		ds.Statement = append(ds.Statement, StatementRow{
			Date:        paymentDate(rng, month),
			Description: pick(rng, unrelated),
			Amount:      decimal.NewFromInt(int64(40+rng.Intn(200)) * 5).Add(decimal.New(int64(rng.Intn(100)), -2)),
			Scenario:    ScenarioUnrelated,
		})
	}
	for i := 0; i < config.OutgoingRows; i++ {
		ds.Statement = append(ds.Statement, StatementRow{
			Date:        paymentDate(rng, month),
			Description: pick(rng, outgoing),
			Amount:      decimal.NewFromInt(int64(100+rng.Intn(900)) * 10).Neg(),
			Scenario:    ScenarioOutgoing,
		})
	}

	sort.SliceStable(ds.Statement, func(i, j int) bool {
		return ds.Statement[i].Date.Before(ds.Statement[j].Date)
	})
	return ds, nil
}

func familyPayments(rng *rand.Rand, config *Config, month time.Time, family []models.Athlete) []StatementRow {
	parent := family[0].ParentFullName()
	if len(family) > 1 && rng.Float64() < config.CombinedRatio {
		ids := make([]string, len(family))
		for i, a := range family {
			ids[i] = a.ID
		}
		return []StatementRow{{
			Date:        paymentDate(rng, month),
			Description: fmt.Sprintf("%s %s", turkishUpper(parent), pick(rng, transferTags)),
			Amount:      config.MonthlyFee.Mul(decimal.NewFromInt(int64(len(family)))),
			Scenario:    ScenarioSiblingTotal,
			AthleteIDs:  ids,
		}}
	}

	rows := make([]StatementRow, 0, len(family))
	for _, athlete := range family {
		row := StatementRow{
			Date:        paymentDate(rng, month),
			Description: fmt.Sprintf("%s %s", parent, pick(rng, transferTags)),
			Amount:      config.MonthlyFee,
			Scenario:    ScenarioParentName,
			AthleteIDs:  []string{athlete.ID},
		}
		if rng.Float64() < config.AthleteNameMix {
			row.Description = fmt.Sprintf("%s %s", turkishUpper(athlete.FullName()), pick(rng, transferTags))
			row.Scenario = ScenarioAthleteName
		}
		rows = append(rows, row)
	}
	return rows
}

func childName(rng *rand.Rand, parentName string, siblings []models.Athlete) string {
	for {
		name := pick(rng, allNames)
		if name == parentName {
			continue
		}
		taken := false
		for _, s := range siblings {
			taken = taken || s.StudentName == name
		}
		if !taken {
			return name
		}
	}
}

func paymentDate(rng *rand.Rand, month time.Time) time.Time {
	return month.AddDate(0, 0, rng.Intn(27))
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}

var upperTR = cases.Upper(language.Turkish)

// turkishUpper upper-cases with the dotted/dotless i rules bank exports use
func turkishUpper(s string) string {
	return upperTR.String(s)
}
