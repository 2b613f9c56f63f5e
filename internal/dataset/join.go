package dataset

import (
	"fmt"
	"sort"
)

// Joined pairs a survey record with the site it was collected at.
type Joined[T SiteNamer] struct {
	Record T
	Site   Site
}

// JoinReport summarises a left join of a survey table onto the site table.
type JoinReport struct {
	Table       string
	Rows        int      // survey rows read
	Matched     int      // rows that found their site
	Unmatched   []string // distinct unknown site names, sorted
	DroppedRows int      // rows excluded because their site is unknown
}

// OK reports whether every row found its site.
func (r JoinReport) OK() bool { return len(r.Unmatched) == 0 }

func (r JoinReport) String() string {
	if r.OK() {
		return fmt.Sprintf("%s: %d/%d rows matched", r.Table, r.Matched, r.Rows)
	}
	return fmt.Sprintf("%s: %d/%d rows matched, %d rows dropped, unmatched sites %v",
		r.Table, r.Matched, r.Rows, r.DroppedRows, r.Unmatched)
}

// Join attaches each record to the site with the same name. Rows whose site
// is unknown cannot carry covariates, so they are left out of the result and
// listed in the report instead of being silently lost. With strict set, any
// unmatched row turns into an ErrJoinMismatch error.
func Join[T SiteNamer](table string, records []T, sites []Site, strict bool) ([]Joined[T], JoinReport, error) {
	byName := make(map[string]Site, len(sites))
	for _, s := range sites {
		byName[s.Name] = s
	}

	report := JoinReport{Table: table, Rows: len(records)}
	unmatched := make(map[string]bool)
	out := make([]Joined[T], 0, len(records))
	for _, rec := range records {
		site, ok := byName[rec.GetSiteName()]
		if !ok {
			unmatched[rec.GetSiteName()] = true
			report.DroppedRows++
			continue
		}
		out = append(out, Joined[T]{Record: rec, Site: site})
	}
	report.Matched = len(out)

	for name := range unmatched {
		report.Unmatched = append(report.Unmatched, name)
	}
	sort.Strings(report.Unmatched)

	if strict && !report.OK() {
		return nil, report, fmt.Errorf("%s: %w: %v", table, ErrJoinMismatch, report.Unmatched)
	}
	return out, report, nil
}
