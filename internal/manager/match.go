package manager

import (
	"context"
	"strings"
	"time"

	"github.com/dmarkov/finsight/internal/domain"
)

// matchThreshold is the minimum confidence for a fuzzy criteria match. Below
// it the command is rejected rather than acting on a guess.
const matchThreshold = 0.5

// matchWindow is how far a candidate's date may differ from the requested
// date.
const matchWindow = 24 * time.Hour

// ResolveByCriteria finds the single transaction best matching a date and
// description, considering candidates dated within one day of the requested
// date. Zero candidates is a NotFoundError; a best candidate below the
// confidence threshold is a LowConfidenceMatchError telling the caller to
// address the transaction by id instead.
func (m *Manager) ResolveByCriteria(ctx context.Context, ownerID *int64, criteria domain.MatchCriteria) (*domain.Transaction, error) {
	date, err := parseDate(criteria.Date)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(criteria.Description) == "" {
		return nil, &domain.ValidationError{Field: "description", Reason: "must not be empty"}
	}

	candidates, err := m.store.TransactionsInDateRange(ctx, ownerID, date.Add(-matchWindow), date.Add(matchWindow))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &domain.NotFoundError{Entity: "transaction"}
	}

	best := -1
	bestScore := 0.0
	for i, c := range candidates {
		score := matchConfidence(criteria.Description, c.Description)
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 || bestScore < matchThreshold {
		return nil, &domain.LowConfidenceMatchError{Confidence: bestScore}
	}

	m.log.Debug().Int64("id", candidates[best].ID).Float64("confidence", bestScore).Msg("resolved transaction by criteria")
	return &candidates[best], nil
}

// matchConfidence scores how well a candidate description matches the query,
// in [0, 1]. Exact match scores 1; containment scores by relative length;
// otherwise the word sets are compared.
func matchConfidence(query, candidate string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if q == "" || c == "" {
		return 0
	}
	if q == c {
		return 1
	}

	if strings.Contains(c, q) || strings.Contains(q, c) {
		shorter, longer := len(q), len(c)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.6 + 0.4*float64(shorter)/float64(longer)
	}

	qWords := wordSet(q)
	cWords := wordSet(c)
	if len(qWords) == 0 || len(cWords) == 0 {
		return 0
	}

	common := 0
	for w := range qWords {
		if cWords[w] {
			common++
		}
	}
	union := len(qWords) + len(cWords) - common
	return float64(common) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}
