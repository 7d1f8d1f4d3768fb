package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/goldenkey/pkg/models"
)

func TestParseMergePolicy(t *testing.T) {
	for in, want := range map[string]MergePolicy{"": MergeOverwrite, "overwrite": MergeOverwrite, " Union ": MergeUnion} {
		got, err := ParseMergePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMergePolicy("confidence")
	assert.Error(t, err)
}

func TestMergePolicy(t *testing.T) {
	const fb = models.FallbackSector
	tests := []struct {
		name   string
		policy MergePolicy
		rule   []string
		model  []string
		want   []string
	}{
		{"overwrite replaces", MergeOverwrite, []string{"반도체"}, []string{"로봇/AI", "삼성그룹"}, []string{"로봇/AI", "삼성그룹"}},
		{"overwrite with fallback model", MergeOverwrite, []string{"반도체"}, []string{fb}, []string{fb}},
		{"union keeps rule first", MergeUnion, []string{"반도체"}, []string{"삼성그룹", "반도체"}, []string{"반도체", "삼성그룹"}},
		{"union drops fallback", MergeUnion, []string{fb}, []string{"바이오"}, []string{"바이오"}},
		{"union of fallbacks", MergeUnion, []string{fb}, []string{fb}, []string{fb}},
		{"empty model", MergeOverwrite, []string{"반도체"}, nil, []string{fb}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Merge(tt.rule, tt.model, fb))
		})
	}
}

func TestSessionDeriveSharesNothing(t *testing.T) {
	theme := "HBM"
	s := &Session{
		ID:          "one",
		Quotes:      []models.Quote{{Name: "A", Theme: &theme, Sectors: []string{"반도체"}}},
		RuleSectors: map[string][]string{"A": {"반도체"}},
		States:      map[string]State{"A": StateRuleTagged},
		News:        map[string][]string{"A": {"h"}},
		Warnings:    []string{"w"},
	}
	n := s.derive("two")

	n.Quotes[0].Sectors[0] = "changed"
	*n.Quotes[0].Theme = "changed"
	n.RuleSectors["A"][0] = "changed"
	n.States["A"] = StateModelRefined
	n.News["A"][0] = "changed"
	n.Warnings[0] = "changed"

	assert.Equal(t, "two", n.ID)
	assert.Equal(t, "one", n.ParentID)
	assert.Equal(t, "반도체", s.Quotes[0].Sectors[0])
	assert.Equal(t, "HBM", *s.Quotes[0].Theme)
	assert.Equal(t, "반도체", s.RuleSectors["A"][0])
	assert.Equal(t, StateRuleTagged, s.States["A"])
	assert.Equal(t, "h", s.News["A"][0])
	assert.Equal(t, "w", s.Warnings[0])
}

func TestSessionHelpers(t *testing.T) {
	s := &Session{Quotes: []models.Quote{
		quote("A", 5, 100, "x"),
		{Name: "B", Sectors: []string{"x"}},
		quote("C", 5, 250, "x"),
	}}
	total := s.TotalTradedValue()
	require.True(t, total.Valid)
	assert.Equal(t, "350", total.Decimal.String())

	q, ok := s.Quote("C")
	assert.True(t, ok)
	assert.Equal(t, "C", q.Name)
	_, ok = s.Quote("Z")
	assert.False(t, ok)

	assert.False(t, (&Session{}).TotalTradedValue().Valid)
	assert.False(t, s.Refined())
}

func TestSessionStateOf(t *testing.T) {
	s := &Session{States: map[string]State{"A": StateModelRefined}}
	assert.Equal(t, StateModelRefined, s.StateOf("A"))
	assert.Equal(t, StateUnclassified, s.StateOf("B"))
	assert.Equal(t, StateUnclassified, (&Session{}).StateOf("A"))
}
