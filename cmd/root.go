package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/perimeter-cli/internal/config"
	"github.com/sells-group/perimeter-cli/internal/pipeline"
	"github.com/sells-group/perimeter-cli/pkg/arcgis"
	"github.com/sells-group/perimeter-cli/pkg/geocode"
	"github.com/sells-group/perimeter-cli/pkg/overpass"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "perimeter-cli",
	Short: "Community perimeter polygon builder",
	Long:  "Turns a structured description of a neighborhood's perimeter (named streets, creeks, compass sides) into a geographic polygon, cross-checked against the zoning-parcel union.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newPipeline builds the pipeline with live clients from config.
func newPipeline() *pipeline.Pipeline {
	gis := arcgis.NewClient(
		arcgis.WithBaseURL(cfg.ArcGIS.BaseURL),
		arcgis.WithLayerPaths(cfg.ArcGIS.RoadCentrelinePath, cfg.ArcGIS.WaterlinePath,
			cfg.ArcGIS.ZoningAreaPath, cfg.ArcGIS.PropertyPath),
		arcgis.WithTimeout(time.Duration(cfg.ArcGIS.TimeoutSecs)*time.Second),
	)
	osm := overpass.NewClient(
		overpass.WithEndpoints(cfg.Overpass.Endpoints...),
		overpass.WithMinDelay(time.Duration(cfg.Overpass.MinDelaySecs)*time.Second),
	)

	providers := []geocode.Provider{
		geocode.NewNominatim(cfg.Geocode.UserAgent,
			geocode.WithNominatimURL(cfg.Geocode.NominatimURL),
			geocode.WithNominatimRPS(cfg.Geocode.NominatimRPS),
		),
		geocode.NewGoogle(cfg.Geocode.GoogleAPIKey,
			geocode.WithGoogleURL(cfg.Geocode.GoogleURL),
		),
	}
	geo := geocode.NewCascade(cfg.Geocode.CitySuffix, providers...)

	return pipeline.New(cfg, gis, osm, geo)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
