// Package urban builds the composite urbanisation indices: the first principal
// component of the standardised landscape metrics of each buffer radius.
//
// Scores are oriented so that the loading on habitat cover is positive.
// Positive scores therefore denote less urbanised sites (more habitat, less
// artificial matrix). Each buffer is standardised with its own statistics.
package urban

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
)

// ErrDegeneratePCA means the metrics cannot support a meaningful index.
var ErrDegeneratePCA = errors.New("degenerate PCA input")

// minSites is the smallest table for which a first component is meaningful.
const minSites = 3

// Index is the result of one PCA run.
type Index struct {
	Buffer    dataset.Buffer
	Variables []string
	Means     []float64 // column means used for centring
	StdDevs   []float64 // column standard deviations used for scaling
	Loadings  []float64 // first component, oriented
	Explained []float64 // proportion of variance per component
	Scores    map[string]float64
}

// Score returns the index value of the named site.
func (ix *Index) Score(site string) (float64, bool) {
	v, ok := ix.Scores[site]
	return v, ok
}

// Build runs a centred and scaled PCA over the four metrics of buffer b.
func Build(sites []dataset.Site, b dataset.Buffer) (*Index, error) {
	rows := make([][]float64, len(sites))
	for i, s := range sites {
		rows[i] = s.MetricsAt(b).Values()
	}
	names := make([]string, len(dataset.MetricNames))
	for i, n := range dataset.MetricNames {
		names[i] = fmt.Sprintf("%s_%d", n, int(b))
	}

	ix, scores, err := buildFromRows(rows, names, dataset.HabitatColumn)
	if err != nil {
		return nil, fmt.Errorf("%s buffer: %w", b, err)
	}
	ix.Buffer = b
	ix.Scores = make(map[string]float64, len(sites))
	for i, s := range sites {
		ix.Scores[s.Name] = scores[i]
	}
	return ix, nil
}

// buildFromRows does the numeric work. orient is the column whose loading is
// forced positive.
func buildFromRows(rows [][]float64, names []string, orient int) (*Index, []float64, error) {
	n := len(rows)
	p := len(names)
	if p < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 variables, got %d", ErrDegeneratePCA, p)
	}
	if n < minSites {
		return nil, nil, fmt.Errorf("%w: need at least %d sites, got %d", ErrDegeneratePCA, minSites, n)
	}

	z := mat.NewDense(n, p, nil)
	means := make([]float64, p)
	sds := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			v := rows[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, fmt.Errorf("%w: %s has a non-finite value at site %d", ErrDegeneratePCA, names[j], i+1)
			}
			col[i] = v
		}
		mean, sd := stat.MeanStdDev(col, nil)
		if sd == 0 || math.IsNaN(sd) {
			return nil, nil, fmt.Errorf("%w: %s has zero variance", ErrDegeneratePCA, names[j])
		}
		means[j], sds[j] = mean, sd
		for i := 0; i < n; i++ {
			z.Set(i, j, (col[i]-mean)/sd)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(z, nil); !ok {
		return nil, nil, fmt.Errorf("%w: decomposition failed", ErrDegeneratePCA)
	}
	vars := pc.VarsTo(nil)
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	total := 0.0
	for _, v := range vars {
		total += v
	}
	if total == 0 {
		return nil, nil, fmt.Errorf("%w: no variance to decompose", ErrDegeneratePCA)
	}
	explained := make([]float64, len(vars))
	for i, v := range vars {
		explained[i] = v / total
	}

	loadings := mat.Col(nil, 0, &vecs)
	sign := 1.0
	if loadings[orient] < 0 {
		sign = -1
	}
	for j := range loadings {
		loadings[j] *= sign
	}

	axis := mat.NewVecDense(p, loadings)
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		scores[i] = mat.Dot(z.RowView(i), axis)
	}

	return &Index{
		Variables: names,
		Means:     means,
		StdDevs:   sds,
		Loadings:  loadings,
		Explained: explained,
	}, scores, nil
}

// Attach returns a copy of sites carrying both urbanisation scores.
func Attach(sites []dataset.Site, idx10, idx50 *Index) ([]dataset.Site, error) {
	out := make([]dataset.Site, len(sites))
	for i, s := range sites {
		u10, ok10 := idx10.Score(s.Name)
		u50, ok50 := idx50.Score(s.Name)
		if !ok10 || !ok50 {
			return nil, fmt.Errorf("site %q has no urbanisation score", s.Name)
		}
		s.Urban10 = u10
		s.Urban50 = u50
		out[i] = s
	}
	return out, nil
}
