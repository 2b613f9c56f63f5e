// Package dataset loads the site and survey tables, joins survey rows to their
// site and aggregates exploration trials per stage and site.
package dataset

import (
	"fmt"
	"time"
)

// Stage is the life stage of a tested snail.
type Stage int

const (
	Adult Stage = iota
	Subadult
)

// ParseStage maps the survey stage code ("a" or "s") to a Stage.
func ParseStage(code string) (Stage, error) {
	switch code {
	case "a":
		return Adult, nil
	case "s":
		return Subadult, nil
	default:
		return 0, fmt.Errorf("stage code must be \"a\" or \"s\", got %q", code)
	}
}

func (s Stage) String() string {
	if s == Subadult {
		return "subadult"
	}
	return "adult"
}

// Code returns the single-letter survey code of the stage.
func (s Stage) Code() string {
	if s == Subadult {
		return "s"
	}
	return "a"
}

// Indicator is the treatment-coded dummy used in design matrices (adult = 0).
func (s Stage) Indicator() float64 {
	if s == Subadult {
		return 1
	}
	return 0
}

// Buffer identifies the radius at which landscape metrics were computed.
type Buffer int

const (
	Buffer10 Buffer = 10
	Buffer50 Buffer = 50
)

func (b Buffer) String() string { return fmt.Sprintf("%dm", int(b)) }

// Metrics holds the landscape structure metrics of one buffer.
type Metrics struct {
	PerimeterAreaRatio float64 // PARA
	HabitatCover       float64 // percent of buffer covered by habitat
	ArtificialMatrix   float64 // percent of buffer covered by artificial surfaces
	LargestPatchIndex  float64 // LPI
}

// Values returns the metrics in PCA column order.
func (m Metrics) Values() []float64 {
	return []float64{m.PerimeterAreaRatio, m.HabitatCover, m.ArtificialMatrix, m.LargestPatchIndex}
}

// MetricNames lists the metric names in the order returned by Metrics.Values.
var MetricNames = []string{"para", "hab", "artif", "lpi"}

// HabitatColumn is the index of HabitatCover within Metrics.Values.
const HabitatColumn = 1

// Site is one sampling site with its landscape metrics and planar location.
type Site struct {
	ID        int
	Name      string
	Metrics10 Metrics
	Metrics50 Metrics
	X, Y      float64 // planar coordinates, metres

	// Urbanisation scores, set by urban.Attach. Positive means less urbanised.
	Urban10 float64
	Urban50 float64
}

// MetricsAt returns the metrics of the given buffer.
func (s Site) MetricsAt(b Buffer) Metrics {
	if b == Buffer50 {
		return s.Metrics50
	}
	return s.Metrics10
}

// UrbanAt returns the urbanisation score of the given buffer.
func (s Site) UrbanAt(b Buffer) float64 {
	if b == Buffer50 {
		return s.Urban50
	}
	return s.Urban10
}

// ExplorationRecord is one individual exploration trial.
type ExplorationRecord struct {
	SiteName string
	Date     time.Time
	Stage    Stage
	Explored bool // crossed into the artificial matrix
}

// PerceptionRecord is one orientation trial towards or away from a stimulus.
type PerceptionRecord struct {
	SiteName string
	Date     time.Time
	Stage    Stage
	Distance float64 // distance to the stimulus, cm
	Stimulus bool    // true for the habitat stimulus, false for the control
	Angle    float64 // degrees, 0 = straight at the stimulus
}

// Response rescales the angle to [0,1], 1 meaning oriented straight at the stimulus.
func (r PerceptionRecord) Response() float64 {
	return (180 - r.Angle) / 180
}

// DissectionRecord is one dissected individual.
type DissectionRecord struct {
	SiteName    string
	Stage       Stage
	Diameter    float64 // shell diameter, mm
	FootMass    float64 // dry foot tissue, g
	ReserveMass float64 // dry reserve organ, g; not modelled
}

// SiteNamer is implemented by every survey record type.
type SiteNamer interface {
	GetSiteName() string
}

func (r ExplorationRecord) GetSiteName() string { return r.SiteName }
func (r PerceptionRecord) GetSiteName() string  { return r.SiteName }
func (r DissectionRecord) GetSiteName() string  { return r.SiteName }
