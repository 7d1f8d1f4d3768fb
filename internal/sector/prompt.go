package sector

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const systemPrompt = `You are an analyst of the Korean stock market.
You group stocks that rose today into sectors and themes based on the news headlines given for each stock.
Answer with JSON only. Do not add commentary or code fences.`

// buildPrompt renders the batched user prompt. The mapping is embedded as
// JSON; encoding/json sorts map keys so the prompt is deterministic.
func buildPrompt(headlines map[string][]string, hints []string, fallback string, date time.Time) (string, error) {
	data, err := json.MarshalIndent(headlines, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode headlines: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s (KST).\n\n", date.Format("2006-01-02"))
	b.WriteString("Below is a JSON object mapping each stock name to its recent news headlines.\n")
	b.WriteString("For every stock, decide which sectors or themes explain today's move.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- A stock may belong to several sectors. Include group affiliations (e.g. a conglomerate) as their own tag when the news supports it.\n")
	if len(hints) > 0 {
		fmt.Fprintf(&b, "- Prefer these tags when they fit: %s.\n", strings.Join(hints, ", "))
	}
	fmt.Fprintf(&b, "- If the headlines give no usable signal, use [%q].\n", fallback)
	b.WriteString("- Write tags and rationale in Korean. Keep each rationale to one sentence.\n")
	b.WriteString("- evidence_date is the date (YYYY-MM-DD) of the news the decision is based on, or empty if unknown.\n\n")
	b.WriteString("Return a JSON array with exactly one object per stock:\n")
	b.WriteString(`[{"name": "<stock name>", "sectors": ["<tag>", ...], "rationale": "<why>", "evidence_date": "<YYYY-MM-DD>"}]`)
	b.WriteString("\n\nStocks:\n")
	b.Write(data)
	b.WriteString("\n")
	return b.String(), nil
}
