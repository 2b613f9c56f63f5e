// Package testutil provides shared test fixtures.
//
// WriteSurvey generates a complete, internally consistent set of input files
// (site GeoJSON and the three survey tables) with known effect sizes, so that
// pipeline tests can assert on recovered structure without shipping field
// data.
package testutil

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// SurveyOptions controls the generated dataset. Effects are expressed per
// unit of the latent urbanisation gradient, which is standardised across
// sites. The 10 m gradient is orthogonal to the 50 m one, so effects placed
// on the 50 m gradient cannot be picked up by 10 m models.
type SurveyOptions struct {
	Sites  int    // rounded up to a multiple of 4
	Trials int    // exploration trials per stage and site
	Seed   uint64 // PCG seed

	ExplorationEffect50 float64 // logit change per unit of 50 m urbanisation
	PerceptionEffect50  float64 // detectability change per unit of 50 m urbanisation
	ExponentEffect50    float64 // allometric exponent change per unit of 50 m urbanisation

	// Distances at which perception is recorded, cm.
	Distances []float64
	// Snails dissected per site.
	Dissected int
}

// DefaultSurvey returns options with a clear 50 m effect on every response.
func DefaultSurvey() SurveyOptions {
	return SurveyOptions{
		Sites:               20,
		Trials:              20,
		Seed:                2016,
		ExplorationEffect50: 1.0,
		PerceptionEffect50:  0.08,
		ExponentEffect50:    0.12,
		Distances:           []float64{2, 6, 10, 14},
		Dissected:           8,
	}
}

// SurveyFiles are the paths of a generated dataset.
type SurveyFiles struct {
	Dir         string
	Sites       string
	Exploration string
	Perception  string
	Dissection  string
}

// SiteNames returns the names WriteSurvey gives to n sites.
func SiteNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("S%02d", i+1)
	}
	return names
}

// WriteSurvey writes a generated dataset into a fresh temporary directory.
func WriteSurvey(t testing.TB, opts SurveyOptions) SurveyFiles {
	t.Helper()
	dir := t.TempDir()
	files, err := GenerateSurvey(dir, opts)
	if err != nil {
		t.Fatalf("failed to generate survey: %v", err)
	}
	return files
}

// GenerateSurvey writes a generated dataset into dir.
func GenerateSurvey(dir string, opts SurveyOptions) (SurveyFiles, error) {
	n := (opts.Sites + 3) / 4 * 4
	if n < 4 {
		n = 4
	}
	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x5eed))
	g := newGradients(n)
	names := SiteNames(n)

	files := SurveyFiles{
		Dir:         dir,
		Sites:       filepath.Join(dir, "sites.geojson"),
		Exploration: filepath.Join(dir, "exploration.csv"),
		Perception:  filepath.Join(dir, "perception.csv"),
		Dissection:  filepath.Join(dir, "dissection.csv"),
	}

	if err := writeSites(files.Sites, names, g, r); err != nil {
		return files, err
	}
	if err := writeCSV(files.Exploration, explorationRows(names, g, opts, r)); err != nil {
		return files, err
	}
	if err := writeCSV(files.Perception, perceptionRows(names, g, opts, r)); err != nil {
		return files, err
	}
	if err := writeCSV(files.Dissection, dissectionRows(names, g, opts, r)); err != nil {
		return files, err
	}
	return files, nil
}

// gradients holds the latent urbanisation of each site at both radii.
type gradients struct {
	l10, l50 []float64
}

func newGradients(n int) gradients {
	g := gradients{l10: make([]float64, n), l50: make([]float64, n)}
	pattern := [4]float64{1, -1, -1, 1}
	mid := float64(n-1) / 2
	var ss float64
	for i := 0; i < n; i++ {
		g.l50[i] = float64(i) - mid
		ss += g.l50[i] * g.l50[i]
		g.l10[i] = pattern[i%4]
	}
	sd := math.Sqrt(ss / float64(n-1))
	for i := range g.l50 {
		g.l50[i] /= sd
	}
	return g
}

func metricsFor(l float64, r *rand.Rand) [4]float64 {
	return [4]float64{
		500 + 150*l + 10*r.NormFloat64(),
		45 - 12*l + 1.5*r.NormFloat64(),
		35 + 12*l + 1.5*r.NormFloat64(),
		30 - 9*l + 1.5*r.NormFloat64(),
	}
}

func writeSites(path string, names []string, g gradients, r *rand.Rand) error {
	fc := geojson.NewFeatureCollection()
	for i, name := range names {
		x := 350000 + float64(i%5)*800 + 100*(r.Float64()-0.5)
		y := 6780000 + float64(i/5)*800 + 100*(r.Float64()-0.5)
		f := geojson.NewFeature(orb.Point{x, y})
		f.Properties["site_id"] = i + 1
		f.Properties["site_name"] = name
		for _, buf := range []struct {
			radius int
			l      float64
		}{{10, g.l10[i]}, {50, g.l50[i]}} {
			m := metricsFor(buf.l, r)
			f.Properties[fmt.Sprintf("para_%d", buf.radius)] = m[0]
			f.Properties[fmt.Sprintf("hab_%d", buf.radius)] = m[1]
			f.Properties[fmt.Sprintf("artif_%d", buf.radius)] = m[2]
			f.Properties[fmt.Sprintf("lpi_%d", buf.radius)] = m[3]
		}
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode sites: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

var stages = [2]string{"a", "s"}

func surveyDate(i int) string {
	return fmt.Sprintf("%02d/%02d/2016", 1+i%28, 4+i%3)
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

func explorationRows(names []string, g gradients, opts SurveyOptions, r *rand.Rand) [][]string {
	rows := [][]string{{"site_name", "date", "stage", "explored"}}
	for i, name := range names {
		for s, stage := range stages {
			eta := -0.3 + 0.5*float64(s) - opts.ExplorationEffect50*g.l50[i]
			p := 1 / (1 + math.Exp(-eta))
			for k := 0; k < opts.Trials; k++ {
				rows = append(rows, []string{name, surveyDate(k), stage, bit(r.Float64() < p)})
			}
		}
	}
	return rows
}

func perceptionRows(names []string, g gradients, opts SurveyOptions, r *rand.Rand) [][]string {
	rows := [][]string{{"site_name", "date", "stage", "distance", "stimulus", "angle"}}
	k := 0
	for i, name := range names {
		for s, stage := range stages {
			for _, stimulus := range []bool{false, true} {
				for _, d := range opts.Distances {
					for rep := 0; rep < 2; rep++ {
						resp := 0.5 + 0.02*float64(s)
						if stimulus {
							resp += 0.3 - 0.015*d - opts.PerceptionEffect50*g.l50[i]
						}
						resp = math.Min(1, math.Max(0, resp+0.08*r.NormFloat64()))
						angle := 180 * (1 - resp)
						rows = append(rows, []string{name, surveyDate(k), stage, ff(d), bit(stimulus), ff(angle)})
						k++
					}
				}
			}
		}
	}
	return rows
}

func dissectionRows(names []string, g gradients, opts SurveyOptions, r *rand.Rand) [][]string {
	rows := [][]string{{"site_name", "stage", "diameter", "foot_mass", "reserve_mass"}}
	for i, name := range names {
		a := 0.0008 * (1 - 0.05*g.l50[i])
		b := 2.6 - opts.ExponentEffect50*g.l50[i]
		for k := 0; k < opts.Dissected; k++ {
			d := 12 + 10*r.Float64()
			mass := a * math.Pow(d, b) * math.Exp(0.06*r.NormFloat64())
			reserve := 0.3 * mass * r.Float64()
			rows = append(rows, []string{name, stages[k%2], ff(d), strconv.FormatFloat(mass, 'g', 6, 64), strconv.FormatFloat(reserve, 'g', 6, 64)})
		}
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
