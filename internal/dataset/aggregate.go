package dataset

import "sort"

// ExplorationCount is the number of individuals of one stage at one site that
// explored the artificial matrix, out of those tested.
type ExplorationCount struct {
	Stage     Stage
	Site      Site
	Successes int
	Trials    int
}

// Failures returns the number of individuals that did not explore.
func (c ExplorationCount) Failures() int { return c.Trials - c.Successes }

// Proportion returns the observed exploration proportion.
func (c ExplorationCount) Proportion() float64 {
	if c.Trials == 0 {
		return 0
	}
	return float64(c.Successes) / float64(c.Trials)
}

type stageSite struct {
	stage Stage
	site  string
}

// AggregateExploration groups joined exploration trials by (stage, site).
// The result is sorted by stage, then site name.
func AggregateExploration(rows []Joined[ExplorationRecord]) []ExplorationCount {
	idx := make(map[stageSite]int)
	var out []ExplorationCount
	for _, row := range rows {
		key := stageSite{row.Record.Stage, row.Site.Name}
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, ExplorationCount{Stage: row.Record.Stage, Site: row.Site})
		}
		out[i].Trials++
		if row.Record.Explored {
			out[i].Successes++
		}
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].Stage != out[b].Stage {
			return out[a].Stage < out[b].Stage
		}
		return out[a].Site.Name < out[b].Site.Name
	})
	return out
}
