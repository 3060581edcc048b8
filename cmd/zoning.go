package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sells-group/perimeter-cli/internal/export"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/internal/pipeline"
)

var zoningCmd = &cobra.Command{
	Use:   "zoning <input.json>",
	Short: "Build only the zoning-exception parcel union",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := model.LoadCommunityInput(args[0])
		if err != nil {
			return err
		}

		out, runErr := newPipeline().Run(cmd.Context(), in, pipeline.ApproachZoning)

		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		base := filepath.Join(cfg.Output.Dir, slug(in.Name))
		if out.Report != nil {
			if err := out.Report.Write(base + "_report.json"); err != nil {
				return err
			}
		}
		if runErr != nil {
			return runErr
		}

		mp := export.MultiPolygonFromRaw(out.Zoning.Geom)
		if err := export.GeoJSONMulti(base+"_zoning.geojson", in.Name, mp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "zoning union: %d part(s), %.3f km2\n",
			out.Zoning.Parts, out.Zoning.AreaKm2)
		return nil
	},
}

func init() { rootCmd.AddCommand(zoningCmd) }
