package dataset

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature property names of the site GeoJSON.
const (
	propSiteID   = "site_id"
	propSiteName = "site_name"
)

// metricProperty returns the feature property holding metric i of buffer b,
// e.g. "hab_50".
func metricProperty(i int, b Buffer) string {
	return fmt.Sprintf("%s_%d", MetricNames[i], int(b))
}

// ReadSites parses a GeoJSON FeatureCollection of point features, one per site.
// Coordinates are taken as planar metres.
func ReadSites(r io.Reader) ([]Site, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", TableSites, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, schemaErr(TableSites, 0, "", "invalid GeoJSON: %v", err)
	}
	if len(fc.Features) == 0 {
		return nil, schemaErr(TableSites, 0, "", "no features")
	}

	seen := make(map[string]int, len(fc.Features))
	sites := make([]Site, 0, len(fc.Features))
	for i, f := range fc.Features {
		row := i + 1

		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, schemaErr(TableSites, row, "geometry", "want Point geometry, got %T", f.Geometry)
		}

		name, ok := f.Properties[propSiteName].(string)
		if !ok || name == "" {
			return nil, schemaErr(TableSites, row, propSiteName, "missing or non-string site name")
		}
		if prev, dup := seen[name]; dup {
			return nil, schemaErr(TableSites, row, propSiteName, "duplicate site %q (first at feature %d)", name, prev)
		}
		seen[name] = row

		id, err := numberProperty(f.Properties, row, propSiteID)
		if err != nil {
			return nil, err
		}

		site := Site{ID: int(id), Name: name, X: pt.X(), Y: pt.Y()}
		for _, b := range []Buffer{Buffer10, Buffer50} {
			var vals [4]float64
			for m := range MetricNames {
				v, err := numberProperty(f.Properties, row, metricProperty(m, b))
				if err != nil {
					return nil, err
				}
				vals[m] = v
			}
			metrics := Metrics{
				PerimeterAreaRatio: vals[0],
				HabitatCover:       vals[1],
				ArtificialMatrix:   vals[2],
				LargestPatchIndex:  vals[3],
			}
			if b == Buffer10 {
				site.Metrics10 = metrics
			} else {
				site.Metrics50 = metrics
			}
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func numberProperty(props geojson.Properties, row int, key string) (float64, error) {
	raw, ok := props[key]
	if !ok {
		return 0, schemaErr(TableSites, row, key, "missing property")
	}
	v, ok := raw.(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, schemaErr(TableSites, row, key, "want a finite number, got %v", raw)
	}
	return v, nil
}

// LoadSites reads the site GeoJSON from path.
func LoadSites(path string) ([]Site, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadSites(f)
}
