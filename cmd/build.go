package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/perimeter-cli/internal/export"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/internal/pipeline"
)

var (
	buildApproach string
	buildLat      float64
	buildLon      float64
	buildFormats  []string
)

var buildCmd = &cobra.Command{
	Use:   "build <input.json>",
	Short: "Build a community polygon from a perimeter description",
	Long:  "Resolves boundary names, fetches and filters geometry, walks the perimeter corner by corner, and writes the polygon plus a run report. With --approach both, also builds the zoning-parcel union and reports the agreement score.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := model.LoadCommunityInput(args[0])
		if err != nil {
			return err
		}
		if buildLat != 0 || buildLon != 0 {
			in.Reference.Lat, in.Reference.Lon = buildLat, buildLon
		}

		approach := pipeline.Approach(buildApproach)
		switch approach {
		case pipeline.ApproachLines, pipeline.ApproachZoning, pipeline.ApproachBoth:
		default:
			return fmt.Errorf("unknown approach %q", buildApproach)
		}

		out, runErr := newPipeline().Run(cmd.Context(), in, approach)

		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		base := filepath.Join(cfg.Output.Dir, slug(in.Name))

		if out.Report != nil {
			if err := out.Report.Write(base + "_report.json"); err != nil {
				return err
			}
		}
		if err := writeExports(base, in.Name, out); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s_report.json\n", base)
		return nil
	},
}

func writeExports(base, name string, out *pipeline.Outcome) error {
	if out.Lines != nil {
		lines := make([]export.BoundaryLine, 0, len(out.Arcs))
		for i, arc := range out.Arcs {
			lines = append(lines, export.BoundaryLine{
				Name:         out.Edges[i].Descriptor.DisplayName,
				Source:       string(out.Edges[i].Geometry.Source),
				Corrected:    arc.Corrected,
				Straightened: arc.Straightened,
				Coords:       arc.Coords,
			})
		}
		for _, format := range buildFormats {
			var err error
			switch format {
			case "geojson":
				err = export.GeoJSON(base+".geojson", name, out.Lines.Polygon, lines)
			case "kml":
				err = export.KML(base+".kml", name, out.Lines.Polygon)
			case "shp":
				err = export.Shapefile(base+".shp", name, out.Lines.Polygon)
			default:
				err = fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return err
			}
		}
	}

	if out.Zoning != nil {
		mp := export.MultiPolygonFromRaw(out.Zoning.Geom)
		if err := export.GeoJSONMulti(base+"_zoning.geojson", name, mp); err != nil {
			return err
		}
	}
	return nil
}

func slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	return strings.Trim(s, "_")
}

func init() {
	buildCmd.Flags().StringVar(&buildApproach, "approach", "both", "construction approach: lines, zoning, or both")
	buildCmd.Flags().Float64Var(&buildLat, "lat", 0, "override reference point latitude")
	buildCmd.Flags().Float64Var(&buildLon, "lon", 0, "override reference point longitude")
	buildCmd.Flags().StringSliceVar(&buildFormats, "format", []string{"geojson"}, "export formats: geojson, kml, shp")
	rootCmd.AddCommand(buildCmd)
}
