package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/analysis"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/model"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/spatial"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/urban"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/version"
)

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID     string
	Version   string
	GitSHA    string
	StartedAt time.Time
	Elapsed   time.Duration
	Seed      uint64
	Draws     int
}

// FitRow is one archived model fit.
type FitRow struct {
	Family   string
	Label    string
	Formula  string
	K, N     int
	LogLik   float64
	AICc     float64
	Delta    float64
	Weight   float64
	Selected bool
}

// RecordRun stores a result and the configuration that produced it in one
// transaction.
func (db *DB) RecordRun(res *analysis.Result, configJSON []byte) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, version, git_sha, started_at, elapsed_ms, seed, draws, config_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, version.Version, version.GitSHA, res.StartedAt.UTC().Format(time.RFC3339Nano),
		res.Elapsed.Milliseconds(), strconv.FormatUint(res.Options.Seed, 10), res.Options.Draws, string(configJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.RunID, err)
	}

	if p := res.Prepared; p != nil {
		for _, ix := range []*urban.Index{p.Index10, p.Index50} {
			if err := insertIndex(tx, res.RunID, ix); err != nil {
				return err
			}
		}
		for _, j := range p.Joins {
			_, err := tx.Exec(
				`INSERT INTO join_reports (run_id, table_name, rows_read, rows_matched, rows_dropped, unmatched_sites)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				res.RunID, j.Table, j.Rows, j.Matched, j.DroppedRows, strings.Join(j.Unmatched, ","),
			)
			if err != nil {
				return fmt.Errorf("failed to insert join report %s: %w", j.Table, err)
			}
		}
	}

	if e := res.Exploration; e != nil {
		if err := insertFamily(tx, res.RunID, e.Family, e.Selected); err != nil {
			return err
		}
		if err := insertCorrelogram(tx, res.RunID, analysis.StageExploration, e.Correlogram); err != nil {
			return err
		}
	}
	if pr := res.Perception; pr != nil {
		if err := insertFamily(tx, res.RunID, pr.Historical, nil); err != nil {
			return err
		}
		if err := insertFamily(tx, res.RunID, pr.Corrected, pr.Selected); err != nil {
			return err
		}
		if err := insertCorrelogram(tx, res.RunID, analysis.StagePerception, pr.Correlogram); err != nil {
			return err
		}
	}
	if d := res.Dissection; d != nil {
		if err := insertFamily(tx, res.RunID, d.Family, d.Selected); err != nil {
			return err
		}
		if err := insertCorrelogram(tx, res.RunID, analysis.StageDissection, d.Correlogram); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", res.RunID, err)
	}
	return nil
}

func insertIndex(tx *sql.Tx, runID string, ix *urban.Index) error {
	if ix == nil {
		return nil
	}
	for i, v := range ix.Variables {
		_, err := tx.Exec(
			`INSERT INTO pca_loadings (run_id, buffer_m, variable, mean, sd, loading, explained)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, int(ix.Buffer), v, ix.Means[i], ix.StdDevs[i], ix.Loadings[i], ix.Explained[0],
		)
		if err != nil {
			return fmt.Errorf("failed to insert loading %s: %w", v, err)
		}
	}
	return nil
}

func insertFamily(tx *sql.Tx, runID string, fam *analysis.Family, selected *model.Fit) error {
	for _, r := range fam.Table.Rows {
		fit := fam.Fit(r.Label)
		isSelected := selected != nil && selected.Label == r.Label
		_, err := tx.Exec(
			`INSERT INTO fits (run_id, family, label, formula, k, n, log_lik, aicc, delta, weight, selected)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, fam.Name, r.Label, fit.Formula, r.K, r.N, r.LogLik, r.AICc, r.Delta, r.Weight, isSelected,
		)
		if err != nil {
			return fmt.Errorf("failed to insert fit %s/%s: %w", fam.Name, r.Label, err)
		}

		se := fit.SE()
		for i, name := range fit.Names {
			_, err := tx.Exec(
				`INSERT INTO coefficients (run_id, family, label, term, estimate, std_error)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				runID, fam.Name, r.Label, name, fit.Coef[i], se[i],
			)
			if err != nil {
				return fmt.Errorf("failed to insert coefficient %s of %s/%s: %w", name, fam.Name, r.Label, err)
			}
		}

		for _, tt := range fam.Tests[r.Label] {
			_, err := tx.Exec(
				`INSERT INTO term_tests (run_id, family, label, term, df, statistic, p_value, test)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, fam.Name, r.Label, tt.Term, tt.Df, tt.Statistic, tt.PValue, tt.Test,
			)
			if err != nil {
				return fmt.Errorf("failed to insert test %s of %s/%s: %w", tt.Term, fam.Name, r.Label, err)
			}
		}
	}
	return nil
}

func insertCorrelogram(tx *sql.Tx, runID, domain string, c *spatial.Correlogram) error {
	if c == nil {
		return nil
	}
	for _, b := range c.Bins {
		_, err := tx.Exec(
			`INSERT INTO correlogram_bins (run_id, domain, label, lower_m, upper_m, mean_distance, pairs, moran_i, expected, p_value)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, domain, c.Label, b.Lower, b.Upper, b.MeanDistance, b.Pairs, b.MoranI, b.Expected, b.PValue,
		)
		if err != nil {
			return fmt.Errorf("failed to insert correlogram bin of %s: %w", domain, err)
		}
	}
	return nil
}

// ListRuns returns archived runs, most recent first.
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	rows, err := db.Query(
		`SELECT run_id, version, git_sha, started_at, elapsed_ms, seed, draws
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r         RunSummary
			startedAt string
			elapsedMs int64
			seed      string
		)
		if err := rows.Scan(&r.RunID, &r.Version, &r.GitSHA, &startedAt, &elapsedMs, &seed, &r.Draws); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("run %s: bad start time %q: %w", r.RunID, startedAt, err)
		}
		if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("run %s: bad seed %q: %w", r.RunID, seed, err)
		}
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunFits returns the archived fits of a run ordered by family and AICc.
func (db *DB) RunFits(runID string) ([]FitRow, error) {
	rows, err := db.Query(
		`SELECT family, label, formula, k, n, log_lik, aicc, delta, weight, selected
		 FROM fits WHERE run_id = ? ORDER BY family, aicc`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FitRow
	for rows.Next() {
		var f FitRow
		if err := rows.Scan(&f.Family, &f.Label, &f.Formula, &f.K, &f.N, &f.LogLik, &f.AICc, &f.Delta, &f.Weight, &f.Selected); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
