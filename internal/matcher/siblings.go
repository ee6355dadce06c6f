package matcher

import (
	"strings"

	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/internal/textnorm"
)

// SiblingBasis names the shared parent attribute that formed a group
type SiblingBasis string

const (
	BasisParentName SiblingBasis = "parent_name"
	BasisPhone      SiblingBasis = "phone"
	BasisEmail      SiblingBasis = "email"
)

// minPhoneDigits rejects placeholder phone numbers that would group strangers.
const minPhoneDigits = 7

// SiblingGroup is a household: two or more athletes sharing a parent attribute
type SiblingGroup struct {
	Key         string           `json:"key"`
	DisplayName string           `json:"displayName"`
	Basis       SiblingBasis     `json:"basis"`
	Members     []models.Athlete `json:"members"`
}

// MemberIDs returns the athlete IDs of the group in roster order
func (g SiblingGroup) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// SiblingIndex holds the households of a roster
type SiblingIndex struct {
	groups    []SiblingGroup
	byAthlete map[string][]int
}

// FindSiblings groups athletes by normalized parent full name, by phone
// digits and by email, independently, so an athlete may sit in several
// groups, and one household found by name and by phone is two groups.
// Groups keep only distinct athletes and must have at least two, and are
// ordered by first appearance in the roster.
func FindSiblings(athletes []models.Athlete) *SiblingIndex {
	type bucket struct {
		group SiblingGroup
		seen  map[string]bool
	}
	buckets := make(map[string]*bucket)
	var order []string

	add := func(key string, basis SiblingBasis, a models.Athlete) {
		b, ok := buckets[key]
		if !ok {
			display := a.ParentFullName()
			if display == "" {
				display = strings.SplitN(key, ":", 2)[1]
			}
			b = &bucket{
				group: SiblingGroup{Key: key, DisplayName: display, Basis: basis},
				seen:  make(map[string]bool),
			}
			buckets[key] = b
			order = append(order, key)
		}
		if b.seen[a.ID] {
			return
		}
		b.seen[a.ID] = true
		b.group.Members = append(b.group.Members, a)
	}

	for _, a := range athletes {
		if key := parentNameKey(a); key != "" {
			add("name:"+key, BasisParentName, a)
		}
		if key := phoneKey(a.ParentPhone); key != "" {
			add("phone:"+key, BasisPhone, a)
		}
		if key := strings.ToLower(strings.TrimSpace(a.ParentEmail)); key != "" {
			add("email:"+key, BasisEmail, a)
		}
	}

	idx := &SiblingIndex{byAthlete: make(map[string][]int)}
	for _, key := range order {
		if g := buckets[key].group; len(g.Members) >= 2 {
			idx.groups = append(idx.groups, g)
		}
	}
	for i, g := range idx.groups {
		for _, m := range g.Members {
			idx.byAthlete[m.ID] = append(idx.byAthlete[m.ID], i)
		}
	}
	return idx
}

// Groups returns every household
func (s *SiblingIndex) Groups() []SiblingGroup {
	return s.groups
}

// GroupsOf returns the households an athlete belongs to
func (s *SiblingIndex) GroupsOf(athleteID string) []SiblingGroup {
	var out []SiblingGroup
	for _, i := range s.byAthlete[athleteID] {
		out = append(out, s.groups[i])
	}
	return out
}

// HasSiblings reports whether the athlete belongs to any household
func (s *SiblingIndex) HasSiblings(athleteID string) bool {
	return len(s.byAthlete[athleteID]) > 0
}

// Group looks a household up by key
func (s *SiblingIndex) Group(key string) (SiblingGroup, bool) {
	for _, g := range s.groups {
		if g.Key == key {
			return g, true
		}
	}
	return SiblingGroup{}, false
}

func parentNameKey(a models.Athlete) string {
	key := textnorm.Key(a.ParentFullName())
	if len(strings.Fields(key)) < 2 {
		return ""
	}
	return key
}

func phoneKey(phone string) string {
	digits := textnorm.Digits(phone)
	if len(digits) < minPhoneDigits {
		return ""
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}
