package scan

import (
	"sort"

	"github.com/seenimoa/goldenkey/pkg/models"
)

// Summary is the sector view of a cycle.
//
// Groups excludes the fallback tag. Quotes that carry only the fallback
// tag are listed in Individual instead.
type Summary struct {
	Groups     []models.SectorGroup `json:"groups"`
	Individual []models.Quote       `json:"individual"`
}

// GroupBySector partitions quotes by each of their tags. A quote with two
// tags lands in two groups. Members are ordered by change percent
// descending and the first member leads. Groups are ordered by member
// count, then summed traded value, then first appearance.
func GroupBySector(quotes []models.Quote, fallback string) Summary {
	if fallback == "" {
		fallback = models.FallbackSector
	}

	index := map[string]int{}
	var groups []models.SectorGroup
	var individual []models.Quote

	for _, q := range quotes {
		if len(q.Sectors) == 0 || (len(q.Sectors) == 1 && q.Sectors[0] == fallback) {
			individual = append(individual, q)
			continue
		}
		for _, tag := range q.Sectors {
			if tag == fallback {
				continue
			}
			i, ok := index[tag]
			if !ok {
				i = len(groups)
				index[tag] = i
				groups = append(groups, models.SectorGroup{Sector: tag})
			}
			g := &groups[i]
			g.Members = append(g.Members, q)
			if q.TradedValue.Valid {
				g.TotalValue = g.TotalValue.Add(q.TradedValue.Decimal)
			}
		}
	}

	for i := range groups {
		sortByChange(groups[i].Members)
		groups[i].Leader = groups[i].Members[0]
	}
	// groups is in first-appearance order, so a stable sort keeps it as
	// the last tie-break.
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Count() != b.Count() {
			return a.Count() > b.Count()
		}
		return a.TotalValue.GreaterThan(b.TotalValue)
	})
	sortByChange(individual)

	return Summary{Groups: groups, Individual: individual}
}

func sortByChange(qs []models.Quote) {
	sort.SliceStable(qs, func(i, j int) bool {
		return nullDesc(qs[i].ChangePercent, qs[j].ChangePercent)
	})
}

// Group returns the group for tag, if present.
func (s Summary) Group(tag string) (models.SectorGroup, bool) {
	for _, g := range s.Groups {
		if g.Sector == tag {
			return g, true
		}
	}
	return models.SectorGroup{}, false
}
