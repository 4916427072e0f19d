package budget_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsend/budget-engine/budget"
	"github.com/spendsend/budget-engine/budget/store"
)

func newTestClassifier() (*budget.Classifier, budget.CategoryStore) {
	mem := store.NewMemory()
	seq := 0
	c := budget.NewClassifier(mem, func() string {
		seq++
		return fmt.Sprintf("cat-%02d", seq)
	})
	return c, mem
}

func TestResolveOrCreateCategory_CaseInsensitiveMatch(t *testing.T) {
	// GIVEN: "Groceries" exists
	// WHEN: Resolving "groceries" and "  GROCERIES  "
	// THEN: The stored category comes back, no duplicate is created

	c, mem := newTestClassifier()
	ctx := context.Background()

	require.NoError(t, mem.SaveCategory(ctx, budget.Category{
		ID: "cat-groceries", UserID: "u1", Name: "Groceries",
	}))

	for _, label := range []string{"groceries", "  GROCERIES  ", "Groceries"} {
		got, err := c.ResolveOrCreateCategory(ctx, label, "u1")
		require.NoError(t, err)
		assert.Equal(t, budget.CategoryID("cat-groceries"), got.ID, "label %q", label)
	}

	cats, err := mem.Categories(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestResolveOrCreateCategory_CreatesDiscretionaryOnMiss(t *testing.T) {
	// GIVEN: An empty vocabulary
	// WHEN: Resolving an unknown label
	// THEN: It is created as discretionary with the label's original casing

	c, mem := newTestClassifier()
	ctx := context.Background()

	got, err := c.ResolveOrCreateCategory(ctx, "Board Games", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Board Games", got.Name)
	assert.False(t, got.IsFixedCost)

	stored, err := mem.CategoryByName(ctx, "u1", "board games")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, got.ID, stored.ID)
}

func TestResolveOrCreateCategory_RejectsEmptyLabel(t *testing.T) {
	c, _ := newTestClassifier()

	for _, label := range []string{"", "   ", "\t"} {
		_, err := c.ResolveOrCreateCategory(context.Background(), label, "u1")
		require.Error(t, err, "label %q", label)
		assert.True(t, budget.IsClientError(err))
	}
}

func TestSuggest_NearbyLabel(t *testing.T) {
	// GIVEN: "Groceries" and "Transport" exist
	// WHEN: Suggesting for the typo "Grocries"
	// THEN: "Groceries" is offered; for gibberish, nothing is

	c, mem := newTestClassifier()
	ctx := context.Background()

	for _, name := range []string{"Groceries", "Transport"} {
		require.NoError(t, mem.SaveCategory(ctx, budget.Category{
			ID: budget.CategoryID("cat-" + name), UserID: "u1", Name: name,
		}))
	}

	got, err := c.Suggest(ctx, "Grocries", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got)

	got, err = c.Suggest(ctx, "xzqwv", "u1")
	require.NoError(t, err)
	assert.Empty(t, got, "gibberish should not match anything")
}
