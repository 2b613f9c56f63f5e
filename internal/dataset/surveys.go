package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Column names of the survey tables.
const (
	colSiteName    = "site_name"
	colDate        = "date"
	colStage       = "stage"
	colExplored    = "explored"
	colDistance    = "distance"
	colStimulus    = "stimulus"
	colAngle       = "angle"
	colDiameter    = "diameter"
	colFootMass    = "foot_mass"
	colReserveMass = "reserve_mass"
)

// Table names used in errors and join reports.
const (
	TableSites       = "sites"
	TableExploration = "exploration"
	TablePerception  = "perception"
	TableDissection  = "dissection"
)

// ReadExploration parses the exploration table.
func ReadExploration(r io.Reader) ([]ExplorationRecord, error) {
	t, err := newTable(TableExploration, r, []string{colSiteName, colDate, colStage, colExplored})
	if err != nil {
		return nil, err
	}

	var out []ExplorationRecord
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		var rec ExplorationRecord
		if rec.SiteName, err = t.nonEmpty(colSiteName); err != nil {
			return nil, err
		}
		if rec.Date, err = t.date(colDate); err != nil {
			return nil, err
		}
		if rec.Stage, err = t.stage(colStage); err != nil {
			return nil, err
		}
		switch v := t.str(colExplored); v {
		case "1":
			rec.Explored = true
		case "0":
			rec.Explored = false
		default:
			return nil, schemaErr(t.name, t.row, colExplored, "outcome must be 0 or 1, got %q", v)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadPerception parses the perception table. Angles must lie in [0,180].
func ReadPerception(r io.Reader) ([]PerceptionRecord, error) {
	t, err := newTable(TablePerception, r, []string{colSiteName, colDate, colStage, colDistance, colStimulus, colAngle})
	if err != nil {
		return nil, err
	}

	var out []PerceptionRecord
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		var rec PerceptionRecord
		if rec.SiteName, err = t.nonEmpty(colSiteName); err != nil {
			return nil, err
		}
		if rec.Date, err = t.date(colDate); err != nil {
			return nil, err
		}
		if rec.Stage, err = t.stage(colStage); err != nil {
			return nil, err
		}
		if rec.Distance, err = t.floatIn(colDistance, 0, 1e6); err != nil {
			return nil, err
		}
		if rec.Stimulus, err = t.boolean(colStimulus); err != nil {
			return nil, err
		}
		if rec.Angle, err = t.floatIn(colAngle, 0, 180); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadDissection parses the dissection table. Sizes and masses must be positive.
func ReadDissection(r io.Reader) ([]DissectionRecord, error) {
	t, err := newTable(TableDissection, r, []string{colSiteName, colStage, colDiameter, colFootMass, colReserveMass})
	if err != nil {
		return nil, err
	}

	var out []DissectionRecord
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		var rec DissectionRecord
		if rec.SiteName, err = t.nonEmpty(colSiteName); err != nil {
			return nil, err
		}
		if rec.Stage, err = t.stage(colStage); err != nil {
			return nil, err
		}
		if rec.Diameter, err = t.float(colDiameter); err != nil {
			return nil, err
		}
		if rec.Diameter <= 0 {
			return nil, schemaErr(t.name, t.row, colDiameter, "shell diameter must be positive, got %g", rec.Diameter)
		}
		if rec.FootMass, err = t.float(colFootMass); err != nil {
			return nil, err
		}
		if rec.FootMass <= 0 {
			return nil, schemaErr(t.name, t.row, colFootMass, "foot mass must be positive, got %g", rec.FootMass)
		}
		if rec.ReserveMass, err = t.float(colReserveMass); err != nil {
			return nil, err
		}
		if rec.ReserveMass < 0 {
			return nil, schemaErr(t.name, t.row, colReserveMass, "reserve mass must be non-negative, got %g", rec.ReserveMass)
		}
		out = append(out, rec)
	}
	return out, nil
}

// readFile opens path and hands it to parse.
func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return zero, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

// LoadExploration reads the exploration table from path.
func LoadExploration(path string) ([]ExplorationRecord, error) {
	return readFile(path, ReadExploration)
}

// LoadPerception reads the perception table from path.
func LoadPerception(path string) ([]PerceptionRecord, error) {
	return readFile(path, ReadPerception)
}

// LoadDissection reads the dissection table from path.
func LoadDissection(path string) ([]DissectionRecord, error) {
	return readFile(path, ReadDissection)
}
