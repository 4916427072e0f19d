package budget

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"
)

// =============================================================================
// CLASSIFIER - Category resolution for incoming transactions
// =============================================================================

// Classifier resolves free-form category labels to stored categories. It
// does no free-text parsing itself; the conversational front end hands
// it an already-extracted label.
type Classifier struct {
	Store CategoryStore
	NewID func() string
}

func NewClassifier(store CategoryStore, newID func() string) *Classifier {
	return &Classifier{Store: store, NewID: newID}
}

// ResolveOrCreateCategory looks the label up by case-insensitive exact
// match. Unknown labels are created as discretionary: unknown spending
// is assumed optional, not protected.
func (c *Classifier) ResolveOrCreateCategory(ctx context.Context, label string, userID UserID) (Category, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Category{}, &ValidationError{Field: "category", Reason: "must not be empty"}
	}

	existing, err := c.Store.CategoryByName(ctx, userID, label)
	if err != nil {
		return Category{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	created := Category{
		ID:          CategoryID(c.NewID()),
		UserID:      userID,
		Name:        label,
		IsFixedCost: false,
	}
	if err := c.Store.SaveCategory(ctx, created); err != nil {
		return Category{}, err
	}
	return created, nil
}

// Suggest returns the nearest known category label by normalized edit
// distance, or "" when nothing is close. Informational only: resolution
// always uses exact matching, this just helps a front end offer "did you
// mean" prompts for likely typos.
func (c *Classifier) Suggest(ctx context.Context, label string, userID UserID) (string, error) {
	categories, err := c.Store.Categories(ctx, userID)
	if err != nil {
		return "", err
	}

	const threshold = 0.4
	upper := strings.ToUpper(strings.TrimSpace(label))

	best := ""
	bestRatio := threshold
	for _, cat := range categories {
		candidate := strings.ToUpper(cat.Name)
		if candidate == upper {
			return cat.Name, nil
		}
		dist := levenshtein.ComputeDistance(upper, candidate)
		maxLen := len(upper)
		if len(candidate) > maxLen {
			maxLen = len(candidate)
		}
		if maxLen == 0 {
			continue
		}
		ratio := float64(dist) / float64(maxLen)
		if ratio < bestRatio {
			bestRatio = ratio
			best = cat.Name
		}
	}
	return best, nil
}
