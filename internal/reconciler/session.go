package reconciler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"athlete-payment-reconciler/internal/matcher"
	"athlete-payment-reconciler/internal/matchhistory"
	"athlete-payment-reconciler/internal/models"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

// Session is one import: the roster, dues and history read at its start and
// the match state of every statement row. A Session is not safe for
// concurrent use.
//
// Every row moves through
//
//	parsed -> historical | auto-matched | unmatched -> [manual | multiple] -> confirmed
//
// and matching never fails: the worst outcome for a row is unmatched.
type Session struct {
	service  *ReconciliationService
	config   *matcher.MatchingConfig
	roster   *models.Roster
	engine   *matcher.Engine
	history  *matchhistory.Cache
	dues     []models.OutstandingDue
	vatRates map[string]decimal.Decimal

	// claimed maps a due entry ID to the row that settles it in this session
	claimed map[string]int

	candidates []*models.MatchCandidate
	byRow      map[int]*models.MatchCandidate
	confirmed  bool
	logger     logger.Logger
}

// SessionSummary counts the match outcomes of a session
type SessionSummary struct {
	TotalRows         int             `json:"totalRows"`
	MatchedRows       int             `json:"matchedRows"`
	HistoricalMatches int             `json:"historicalMatches"`
	ManualMatches     int             `json:"manualMatches"`
	MultipleMatches   int             `json:"multipleMatches"`
	UnmatchedRows     int             `json:"unmatchedRows"`
	MatchedAmount     decimal.Decimal `json:"matchedAmount"`
	UnmatchedAmount   decimal.Decimal `json:"unmatchedAmount"`
}

func newSession(rs *ReconciliationService, athletes []models.Athlete, entries []*models.LedgerEntry, history *matchhistory.Cache) *Session {
	vatRates := make(map[string]decimal.Decimal)
	for _, e := range entries {
		if e.IsDebit() {
			vatRates[e.ID] = e.VATRate
		}
	}

	return &Session{
		service:  rs,
		config:   rs.matchingConfig,
		roster:   models.NewRoster(athletes),
		engine:   matcher.NewEngine(rs.matchingConfig, athletes),
		history:  history,
		dues:     OutstandingDues(entries, rs.config.Now(), rs.config.DueTermMonths),
		vatRates: vatRates,
		claimed:  make(map[string]int),
		byRow:    make(map[int]*models.MatchCandidate),
		logger:   logger.GetGlobalLogger().WithComponent("reconciliation_session"),
	}
}

// Dues returns the outstanding dues read at session start
func (s *Session) Dues() []models.OutstandingDue {
	return s.dues
}

// Athletes returns the roster read at session start
func (s *Session) Athletes() []models.Athlete {
	return s.roster.All()
}

// Siblings returns the households of the session roster
func (s *Session) Siblings() *matcher.SiblingIndex {
	return s.engine.Siblings()
}

// Candidates returns the match state of every row in statement order
func (s *Session) Candidates() []*models.MatchCandidate {
	return s.candidates
}

// Candidate returns the match state of one row
func (s *Session) Candidate(rowIndex int) (*models.MatchCandidate, bool) {
	c, ok := s.byRow[rowIndex]
	return c, ok
}

// MatchRows matches every row in order. Dues settled by one row are not
// offered to later rows.
func (s *Session) MatchRows(ctx context.Context, rows []models.BankTransactionRow) ([]*models.MatchCandidate, error) {
	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "row matching",
		Total:       int64(len(rows)),
		LogInterval: s.service.config.ProgressInterval,
		Logger:      s.logger,
	})

	out := make([]*models.MatchCandidate, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			tracker.CompleteWithError(err)
			return out, errors.ReconciliationError(errors.CodeMatchingFailed, "row matching", err)
		}
		out = append(out, s.MatchRow(row))
		tracker.Increment()
	}
	tracker.Complete()

	summary := s.Summary()
	s.logger.WithFields(logger.Fields{
		"rows":       summary.TotalRows,
		"matched":    summary.MatchedRows,
		"historical": summary.HistoricalMatches,
		"unmatched":  summary.UnmatchedRows,
	}).Info("Matched statement rows")
	return out, nil
}

// MatchRow resolves one row from history, then by automatic matching against
// the open dues, and otherwise leaves it unmatched with suggestions. Matching
// a row again replaces its previous result.
func (s *Session) MatchRow(row models.BankTransactionRow) *models.MatchCandidate {
	s.release(row.RowIndex)

	c := &models.MatchCandidate{Transaction: row, Status: models.MatchStatusUnmatched}
	if !s.matchFromHistory(c) && !s.autoMatch(c) {
		c.Suggestions = s.engine.Suggest(row.Description, s.config.SuggestionLimit)
		c.SiblingOptions = s.unmatchedSiblingOptions(c)
	}

	s.store(c)
	return c
}

func (s *Session) matchFromHistory(c *models.MatchCandidate) bool {
	id, ok := s.history.Lookup(c.Transaction.Description)
	if !ok {
		return false
	}
	athlete, ok := s.roster.Get(id)
	if !ok {
		s.logger.WithField("athlete_id", id).Debug("Remembered athlete no longer in roster")
		return false
	}

	c.Status = models.MatchStatusMatched
	c.AthleteID = athlete.ID
	c.AthleteName = athlete.FullName()
	c.Confidence = 100
	c.IsHistorical = true
	c.MatchedDue = s.claimOpenDue(athlete.ID, c.Transaction.RowIndex)
	c.SiblingOptions = s.matchedSiblingOptions(c)
	return true
}

// dueMatch is the best scoring due for a row. held is set when another row
// of the session already settles the due.
type dueMatch struct {
	due        *models.OutstandingDue
	athlete    models.Athlete
	confidence float64
	holder     int
	held       bool
}

// bestDue scores the dues accepted by accept against row. An open due wins a
// tie with a held one, and earlier dues win ties among their own kind.
func (s *Session) bestDue(row models.BankTransactionRow, includeHeld bool, accept func(models.Athlete) bool) dueMatch {
	nameScores := make(map[string]float64)

	var best dueMatch
	for i := range s.dues {
		due := &s.dues[i]
		holder, held := s.claimed[due.EntryID]
		if held && !includeHeld {
			continue
		}
		athlete, ok := s.roster.Get(due.AthleteID)
		if !ok || (accept != nil && !accept(athlete)) {
			continue
		}
		name, seen := nameScores[athlete.ID]
		if !seen {
			name = s.engine.NameConfidence(row.Description, athlete)
			nameScores[athlete.ID] = name
		}
		confidence := s.config.NameWeight*name + s.config.AmountConfidence(row.Amount, due.Amount)
		if confidence > best.confidence || (confidence == best.confidence && best.held && !held) {
			best = dueMatch{due: due, athlete: athlete, confidence: confidence, holder: holder, held: held}
		}
	}
	return best
}

// autoMatch matches the row to the athlete of the best scoring due. Dues
// already settled by earlier rows still count, so a row naming an athlete
// whose due went to a parent's transfer stays with that athlete.
func (s *Session) autoMatch(c *models.MatchCandidate) bool {
	row := c.Transaction
	best := s.bestDue(row, true, nil)
	if best.due == nil || best.confidence <= s.config.AutoMatchThreshold {
		return false
	}

	var matched *models.OutstandingDue
	switch {
	case !best.held:
		due := *best.due
		s.claimed[due.EntryID] = row.RowIndex
		matched = &due
	case s.handOver(best.holder, *best.due, row.RowIndex):
		due := *best.due
		matched = &due
	default:
		matched = s.claimOpenDue(best.athlete.ID, row.RowIndex)
	}

	c.Status = models.MatchStatusMatched
	c.MatchedDue = matched
	c.AthleteID = best.athlete.ID
	c.AthleteName = best.athlete.FullName()
	c.Confidence = best.confidence
	c.SiblingOptions = s.matchedSiblingOptions(c)
	return true
}

// handOver moves an automatic match of holderRow from due to an open due of
// a sibling scoring within the sibling tie window, then gives due to
// rowIndex. Manual, historical and multiple matches are never moved.
func (s *Session) handOver(holderRow int, due models.OutstandingDue, rowIndex int) bool {
	prev, ok := s.byRow[holderRow]
	if !ok || prev.IsManual || prev.IsHistorical || prev.IsMultiple {
		return false
	}

	siblings := make(map[string]bool)
	for _, g := range s.engine.Siblings().GroupsOf(prev.AthleteID) {
		for _, id := range g.MemberIDs() {
			if id != prev.AthleteID {
				siblings[id] = true
			}
		}
	}
	if len(siblings) == 0 {
		return false
	}

	alt := s.bestDue(prev.Transaction, false, func(a models.Athlete) bool { return siblings[a.ID] })
	if alt.due == nil || alt.confidence <= s.config.AutoMatchThreshold ||
		alt.confidence < prev.Confidence-s.config.SiblingTieWindow {
		return false
	}

	altDue := *alt.due
	s.claimed[altDue.EntryID] = holderRow
	s.claimed[due.EntryID] = rowIndex
	prev.MatchedDue = &altDue
	prev.AthleteID = alt.athlete.ID
	prev.AthleteName = alt.athlete.FullName()
	prev.Confidence = alt.confidence
	prev.SiblingOptions = s.matchedSiblingOptions(prev)

	s.logger.WithFields(logger.Fields{
		"row":        holderRow,
		"athlete_id": alt.athlete.ID,
		"for_row":    rowIndex,
	}).Debug("Moved match to sibling")
	return true
}

// ManualMatch assigns a row to an athlete chosen by the user. The athlete's
// oldest open due, if any, is the one settled.
func (s *Session) ManualMatch(rowIndex int, athleteID string) (*models.MatchCandidate, error) {
	c, err := s.editable(rowIndex)
	if err != nil {
		return nil, err
	}
	athlete, ok := s.roster.Get(athleteID)
	if !ok {
		return nil, errors.ValidationError(errors.CodeAthleteNotFound, "athlete_id", athleteID, nil).
			WithContext("row", rowIndex)
	}

	s.release(rowIndex)
	c.Status = models.MatchStatusMatched
	c.AthleteID = athlete.ID
	c.AthleteName = athlete.FullName()
	c.Confidence = 100
	c.IsManual = true
	c.IsHistorical = false
	c.IsMultiple = false
	c.MultiplePayments = nil
	c.MatchedDue = s.claimOpenDue(athlete.ID, rowIndex)

	s.logger.WithFields(logger.Fields{
		"row":        rowIndex,
		"athlete_id": athlete.ID,
	}).Info("Row matched manually")
	return c, nil
}

// MultiMatch splits a row evenly across the selected athletes, usually
// siblings paying with one transfer. The last share absorbs the rounding
// remainder so the shares add up to the transaction amount.
func (s *Session) MultiMatch(rowIndex int, athleteIDs []string) (*models.MatchCandidate, error) {
	c, err := s.editable(rowIndex)
	if err != nil {
		return nil, err
	}

	var selected []models.Athlete
	seen := make(map[string]bool)
	for _, id := range athleteIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		athlete, ok := s.roster.Get(id)
		if !ok {
			return nil, errors.ValidationError(errors.CodeAthleteNotFound, "athlete_id", id, nil).
				WithContext("row", rowIndex)
		}
		selected = append(selected, athlete)
	}
	if len(selected) == 0 {
		return nil, errors.ValidationError(errors.CodeInvalidSelection, "athlete_ids", athleteIDs, nil).
			WithContext("row", rowIndex)
	}

	s.release(rowIndex)
	shares := splitEvenly(c.Transaction.Amount, len(selected))
	allocations := make([]models.Allocation, len(selected))
	names := make([]string, len(selected))
	for i, athlete := range selected {
		names[i] = athlete.FullName()
		allocations[i] = models.Allocation{
			AthleteID:   athlete.ID,
			AthleteName: names[i],
			Amount:      shares[i],
			Due:         s.claimOpenDue(athlete.ID, rowIndex),
		}
	}

	c.Status = models.MatchStatusMatched
	c.AthleteID = ""
	c.AthleteName = strings.Join(names, ", ")
	c.MatchedDue = nil
	c.Confidence = 100
	c.IsManual = true
	c.IsHistorical = false
	c.IsMultiple = true
	c.MultiplePayments = allocations

	s.logger.WithFields(logger.Fields{
		"row":      rowIndex,
		"athletes": len(allocations),
		"share":    shares[0].StringFixed(2),
	}).Info("Row split across athletes")
	return c, nil
}

// Summary counts the current match outcomes
func (s *Session) Summary() *SessionSummary {
	summary := &SessionSummary{
		TotalRows:       len(s.candidates),
		MatchedAmount:   decimal.Zero,
		UnmatchedAmount: decimal.Zero,
	}
	for _, c := range s.candidates {
		if !c.IsMatched() {
			summary.UnmatchedRows++
			summary.UnmatchedAmount = summary.UnmatchedAmount.Add(c.Transaction.Amount)
			continue
		}
		summary.MatchedRows++
		summary.MatchedAmount = summary.MatchedAmount.Add(c.Transaction.Amount)
		switch {
		case c.IsMultiple:
			summary.MultipleMatches++
		case c.IsManual:
			summary.ManualMatches++
		case c.IsHistorical:
			summary.HistoricalMatches++
		}
	}
	return summary
}

func (s *Session) editable(rowIndex int) (*models.MatchCandidate, error) {
	if s.confirmed {
		return nil, errors.ReconciliationError(errors.CodeConfirmationFailed, "match edit", fmt.Errorf("session already confirmed"))
	}
	c, ok := s.byRow[rowIndex]
	if !ok {
		return nil, errors.ValidationError(errors.CodeInvalidSelection, "row", rowIndex, nil)
	}
	return c, nil
}

func (s *Session) store(c *models.MatchCandidate) {
	if old, ok := s.byRow[c.Transaction.RowIndex]; ok {
		for i, existing := range s.candidates {
			if existing == old {
				s.candidates[i] = c
				break
			}
		}
	} else {
		s.candidates = append(s.candidates, c)
	}
	s.byRow[c.Transaction.RowIndex] = c
}

// claimOpenDue reserves the oldest unclaimed due of an athlete for a row
func (s *Session) claimOpenDue(athleteID string, rowIndex int) *models.OutstandingDue {
	for i := range s.dues {
		if s.dues[i].AthleteID != athleteID {
			continue
		}
		if _, taken := s.claimed[s.dues[i].EntryID]; taken {
			continue
		}
		due := s.dues[i]
		s.claimed[due.EntryID] = rowIndex
		return &due
	}
	return nil
}

func (s *Session) release(rowIndex int) {
	for id, row := range s.claimed {
		if row == rowIndex {
			delete(s.claimed, id)
		}
	}
}

// matchedSiblingOptions offers a household split when a matched row looks
// like it pays for more than one athlete.
func (s *Session) matchedSiblingOptions(c *models.MatchCandidate) []models.SiblingOption {
	if !s.engine.IsLikelyMultiPayment(c.Transaction.Amount) {
		return nil
	}
	return s.siblingOptions(c.Transaction.Amount, []string{c.AthleteID})
}

// unmatchedSiblingOptions offers the households of flagged sibling
// suggestions, or of every suggestion when the amount looks like several fees.
func (s *Session) unmatchedSiblingOptions(c *models.MatchCandidate) []models.SiblingOption {
	multi := s.engine.IsLikelyMultiPayment(c.Transaction.Amount)
	var ids []string
	for _, sg := range c.Suggestions {
		if sg.IsSibling || multi {
			ids = append(ids, sg.AthleteID)
		}
	}
	return s.siblingOptions(c.Transaction.Amount, ids)
}

func (s *Session) siblingOptions(amount decimal.Decimal, athleteIDs []string) []models.SiblingOption {
	var out []models.SiblingOption
	seen := make(map[string]bool)
	for _, id := range athleteIDs {
		for _, g := range s.engine.Siblings().GroupsOf(id) {
			// a household found by name and by phone is offered once
			members := g.MemberIDs()
			sort.Strings(members)
			key := strings.Join(members, ",")
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, models.SiblingOption{
				GroupKey:    g.Key,
				DisplayName: g.DisplayName,
				Basis:       string(g.Basis),
				AthleteIDs:  g.MemberIDs(),
				EvenSplit:   splitEvenly(amount, len(g.Members))[0],
			})
		}
	}
	return out
}

// splitEvenly divides total into n shares rounded to cents, the last share
// taking the remainder.
func splitEvenly(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	share := total.DivRound(decimal.NewFromInt(int64(n)), 2)
	shares := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		shares[i] = share
	}
	shares[n-1] = total.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
	return shares
}
