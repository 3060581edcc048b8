package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRoundTrip(t *testing.T) {
	r := New("West Rouge")
	r.Boundaries = append(r.Boundaries, BoundaryOutcome{
		Name: "Lawrence Avenue East", Type: "street",
		Resolved: "Lawrence Ave E", Strategy: "exact", Source: "arcgis",
	})
	r.Warnf("detour on %s left uncorrected", "Ravine Rd")
	r.SetIoU(0.87)

	_, err := uuid.Parse(r.RunID)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "West Rouge", got.Community)
	assert.Len(t, got.Warnings, 1)
	require.NotNil(t, got.IoU)
	assert.InDelta(t, 0.87, *got.IoU, 1e-9)
}

func TestErrorsAndWarningsAccumulate(t *testing.T) {
	r := New("x")
	r.Failf("zoning: no parcels for exception %d", 42)
	r.Warnf("reference point outside polygon")
	assert.Len(t, r.Errors, 1)
	assert.Len(t, r.Warnings, 1)
}
