package report

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/analysis"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/fsutil"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/monitoring"
)

// Output file names relative to the output directory.
const (
	SummaryFile   = "summary.txt"
	DashboardFile = "dashboard.html"
	PlotDir       = "plots"
)

// Write renders every report of res under dir and returns the files written.
func Write(fsys fsutil.FileSystem, dir string, res *analysis.Result) ([]string, error) {
	plotDir := filepath.Join(dir, PlotDir)
	if err := fsys.MkdirAll(plotDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", plotDir, err)
	}
	var written []string

	var buf bytes.Buffer
	if err := WriteText(&buf, res); err != nil {
		return written, fmt.Errorf("failed to render summary: %w", err)
	}
	name := filepath.Join(dir, SummaryFile)
	if err := fsys.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		return written, fmt.Errorf("failed to write %s: %w", name, err)
	}
	written = append(written, name)

	buf.Reset()
	if err := WriteDashboard(&buf, res); err != nil {
		return written, fmt.Errorf("failed to render dashboard: %w", err)
	}
	name = filepath.Join(dir, DashboardFile)
	if err := fsys.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		return written, fmt.Errorf("failed to write %s: %w", name, err)
	}
	written = append(written, name)

	plots, err := buildPlots(res)
	if err != nil {
		return written, fmt.Errorf("failed to build plots: %w", err)
	}
	for _, np := range plots {
		name := filepath.Join(plotDir, np.name)
		if err := savePNG(fsys, name, np); err != nil {
			return written, err
		}
		written = append(written, name)
	}
	monitoring.Logf("wrote %d report files to %s", len(written), dir)
	return written, nil
}

func savePNG(fsys fsutil.FileSystem, name string, np namedPlot) error {
	wt, err := np.p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", np.name, err)
	}
	f, err := fsys.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return f.Close()
}
