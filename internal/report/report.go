// Package report assembles the per-run JSON report: what resolved how, which
// corner strategies fired, quality warnings, and the agreement score between
// the two construction approaches.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// BoundaryOutcome records how one declared boundary fared.
type BoundaryOutcome struct {
	Name     string `json:"name"`
	Type     string `json:"feature_type"`
	Resolved string `json:"resolved_name,omitempty"`
	Strategy string `json:"resolution_strategy,omitempty"`
	Source   string `json:"geometry_source,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CornerOutcome records one located corner.
type CornerOutcome struct {
	Between  [2]string  `json:"between"`
	Strategy string     `json:"strategy"`
	Lat      float64    `json:"lat"`
	Lon      float64    `json:"lon"`
	SnapM    [2]float64 `json:"snap_distance_m,omitempty"`
}

// PolygonOutcome summarizes a constructed polygon.
type PolygonOutcome struct {
	AreaKm2   float64 `json:"area_km2"`
	RefInside bool    `json:"reference_point_inside"`
	Vertices  int     `json:"vertices,omitempty"`
	Parts     int     `json:"parts,omitempty"`
}

// Report is the full run record.
type Report struct {
	RunID       string            `json:"run_id"`
	Community   string            `json:"community"`
	GeneratedAt time.Time         `json:"generated_at"`
	Boundaries  []BoundaryOutcome `json:"boundaries,omitempty"`
	Corners     []CornerOutcome   `json:"corners,omitempty"`
	Lines       *PolygonOutcome   `json:"lines_polygon,omitempty"`
	Zoning      *PolygonOutcome   `json:"zoning_union,omitempty"`
	IoU         *float64          `json:"iou,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Errors      []string          `json:"errors,omitempty"`
}

// New starts a report for one community run.
func New(community string) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Community:   community,
		GeneratedAt: time.Now().UTC(),
	}
}

// Warnf appends a quality warning.
func (r *Report) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Failf appends a construction error. The run continues; one approach
// failing never hides the other's outcome.
func (r *Report) Failf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// SetIoU records the agreement score.
func (r *Report) SetIoU(v float64) { r.IoU = &v }

// Write saves the report as indented JSON.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}
