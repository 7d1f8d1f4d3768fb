package sector

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// CoerceSectors turns a decoded JSON "sectors" value into a clean tag list.
//
// A bare string becomes a one-element list. A list whose elements are all
// single characters is treated as one string that was split apart and is
// joined back. Tags are trimmed, empties dropped, duplicates removed in
// first-seen order. An empty result yields []string{fallback}.
func CoerceSectors(raw any, fallback string) []string {
	var tags []string
	switch v := raw.(type) {
	case nil:
	case string:
		tags = []string{v}
	case []string:
		tags = repairSplit(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, e := range v {
			if s := scalarString(e); s != "" {
				items = append(items, s)
			}
		}
		tags = repairSplit(items)
	default:
		tags = []string{scalarString(v)}
	}

	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return []string{fallback}
	}
	return out
}

// repairSplit joins items when every one of them is a single rune and
// there are at least two, e.g. ["반","도","체"] -> ["반도체"].
func repairSplit(items []string) []string {
	if !isCharSplit(items) {
		return items
	}
	return []string{strings.Join(items, "")}
}

func isCharSplit(items []string) bool {
	if len(items) < 2 {
		return false
	}
	for _, s := range items {
		if utf8.RuneCountInString(s) != 1 {
			return false
		}
	}
	return true
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return fmt.Sprintf("%g", s)
	case bool, int, int64:
		return fmt.Sprint(s)
	}
	return ""
}
