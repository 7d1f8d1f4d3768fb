package sector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/pkg/models"
)

func ptr(s string) *string { return &s }

func TestRuleClassifierFirstMatchWins(t *testing.T) {
	c := NewRuleClassifierFromConfig(config.ScanConfig{
		Rules:          config.DefaultRules,
		Overrides:      config.DefaultOverrides,
		FallbackSector: models.FallbackSector,
	})

	tests := []struct {
		name  string
		theme *string
		want  string
	}{
		{"semis", ptr("HBM(고대역폭메모리),2차전지(소재)"), "반도체"},
		{"battery", ptr("리튬,전기차"), "2차전지"},
		{"bio before robot", ptr("신약개발,AI 헬스케어"), "바이오"},
		{"robot", ptr("로봇(산업용/협동로봇 등)"), "로봇/AI"},
		{"finance", ptr("밸류업,증권"), "금융/지주"},
		{"no match", ptr("건설,시멘트"), models.FallbackSector},
		{"empty theme", ptr(""), models.FallbackSector},
		{"absent theme", nil, models.FallbackSector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify("아무개", tt.theme)
			assert.Equal(t, []string{tt.want}, got)
		})
	}
}

func TestRuleClassifierOverrideShortCircuits(t *testing.T) {
	c := NewRuleClassifier(
		[]Rule{{Tag: "반도체", Keywords: []string{"반도체"}}},
		map[string]string{"현대ADM": "바이오"},
		"",
	)
	assert.Equal(t, []string{"바이오"}, c.Classify("현대ADM", ptr("반도체")))
	assert.Equal(t, []string{"바이오"}, c.Classify("현대ADM", nil))
	assert.Equal(t, []string{"반도체"}, c.Classify("다른종목", ptr("반도체 장비")))
	assert.Equal(t, models.FallbackSector, c.Fallback())
}

func TestRuleClassifierOrderIsCommitted(t *testing.T) {
	theme := ptr("AI 반도체")
	a := NewRuleClassifier([]Rule{
		{Tag: "반도체", Keywords: []string{"반도체"}},
		{Tag: "로봇/AI", Keywords: []string{"AI"}},
	}, nil, "x")
	b := NewRuleClassifier([]Rule{
		{Tag: "로봇/AI", Keywords: []string{"AI"}},
		{Tag: "반도체", Keywords: []string{"반도체"}},
	}, nil, "x")

	assert.Equal(t, []string{"반도체"}, a.Classify("n", theme))
	assert.Equal(t, []string{"로봇/AI"}, b.Classify("n", theme))
}

func TestRuleClassifierAlwaysOneTag(t *testing.T) {
	c := NewRuleClassifier(nil, nil, "")
	for _, theme := range []*string{nil, ptr(""), ptr("무엇이든")} {
		got := c.Classify("n", theme)
		require.Len(t, got, 1)
		assert.Equal(t, models.FallbackSector, got[0])
	}
}

func TestRuleMatchesIgnoresEmptyKeyword(t *testing.T) {
	r := Rule{Tag: "t", Keywords: []string{""}}
	assert.False(t, r.Matches("anything"))
}

func TestNewRuleClassifierFromConfigSkipsUntagged(t *testing.T) {
	c := NewRuleClassifierFromConfig(config.ScanConfig{
		Rules: []config.RuleConfig{
			{Tag: "", Keywords: []string{"건설"}},
			{Tag: "건설", Keywords: []string{"건설"}},
		},
		FallbackSector: "기타",
	})
	assert.Equal(t, []string{"건설"}, c.Classify("n", ptr("건설")))
	assert.Equal(t, []string{"기타"}, c.Classify("n", ptr("유통")))
}
