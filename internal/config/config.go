// Package config loads perimeter-cli configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	ArcGIS   ArcGISConfig   `yaml:"arcgis" mapstructure:"arcgis"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Builder  BuilderConfig  `yaml:"builder" mapstructure:"builder"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ArcGISConfig holds the authoritative feature-service layer endpoints.
type ArcGISConfig struct {
	BaseURL            string `yaml:"base_url" mapstructure:"base_url"`
	RoadCentrelinePath string `yaml:"road_centreline_path" mapstructure:"road_centreline_path"`
	WaterlinePath      string `yaml:"waterline_path" mapstructure:"waterline_path"`
	ZoningAreaPath     string `yaml:"zoning_area_path" mapstructure:"zoning_area_path"`
	PropertyPath       string `yaml:"property_path" mapstructure:"property_path"`
	TimeoutSecs        int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OverpassConfig configures the fallback open-map source. The public
// endpoints enforce a per-caller rate limit, so MinDelaySecs must stay
// conservative.
type OverpassConfig struct {
	Endpoints    []string `yaml:"endpoints" mapstructure:"endpoints"`
	MinDelaySecs int      `yaml:"min_delay_secs" mapstructure:"min_delay_secs"`
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeocodeConfig configures the geocoding provider cascade.
type GeocodeConfig struct {
	NominatimURL string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	GoogleURL    string  `yaml:"google_url" mapstructure:"google_url"`
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	CitySuffix   string  `yaml:"city_suffix" mapstructure:"city_suffix"`
	NominatimRPS float64 `yaml:"nominatim_rps" mapstructure:"nominatim_rps"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ResolverConfig configures colloquial name resolution.
type ResolverConfig struct {
	// Aliases short-circuits exact resolution for known colloquial names.
	// Optional: removing an entry only costs an extra cascade pass, never a
	// different result.
	Aliases            map[string]string `yaml:"aliases" mapstructure:"aliases"`
	IntersectionRadius float64           `yaml:"intersection_radius_m" mapstructure:"intersection_radius_m"`
}

// BuilderConfig holds the polygon-construction thresholds.
type BuilderConfig struct {
	SearchRadiusDeg    float64 `yaml:"search_radius_deg" mapstructure:"search_radius_deg"`
	SparseThresholdM   float64 `yaml:"sparse_threshold_m" mapstructure:"sparse_threshold_m"`
	SelectRadiusM      float64 `yaml:"select_radius_m" mapstructure:"select_radius_m"`
	SnapBothM          float64 `yaml:"snap_both_m" mapstructure:"snap_both_m"`
	SnapOneM           float64 `yaml:"snap_one_m" mapstructure:"snap_one_m"`
	BufferIntersectM   float64 `yaml:"buffer_intersect_m" mapstructure:"buffer_intersect_m"`
	ExtrapolateMaxM    float64 `yaml:"extrapolate_max_m" mapstructure:"extrapolate_max_m"`
	NearestApproachM   float64 `yaml:"nearest_approach_max_m" mapstructure:"nearest_approach_max_m"`
	DetourRatio        float64 `yaml:"detour_ratio" mapstructure:"detour_ratio"`
	CorridorWidthM     float64 `yaml:"corridor_width_m" mapstructure:"corridor_width_m"`
	CorridorTieFrac    float64 `yaml:"corridor_tie_fraction" mapstructure:"corridor_tie_fraction"`
	ZoningRadiusDeg    float64 `yaml:"zoning_radius_deg" mapstructure:"zoning_radius_deg"`
	BoundaryConcurrent int     `yaml:"boundary_concurrency" mapstructure:"boundary_concurrency"`
}

// OutputConfig configures export destinations.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PERIMETER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("arcgis.base_url", "https://gis.toronto.ca/arcgis/rest/services")
	v.SetDefault("arcgis.road_centreline_path", "/cot_geospatial2/FeatureServer/2/query")
	v.SetDefault("arcgis.waterline_path", "/cot_geospatial3/FeatureServer/15/query")
	v.SetDefault("arcgis.zoning_area_path", "/cot_geospatial11/FeatureServer/3/query")
	v.SetDefault("arcgis.property_path", "/cot_geospatial27/FeatureServer/36/query")
	v.SetDefault("arcgis.timeout_secs", 30)

	v.SetDefault("overpass.endpoints", []string{
		"https://overpass-api.de/api/interpreter",
		"https://overpass.kumi.systems/api/interpreter",
	})
	v.SetDefault("overpass.min_delay_secs", 12)
	v.SetDefault("overpass.timeout_secs", 60)

	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.user_agent", "perimeter-cli/1.0")
	v.SetDefault("geocode.google_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("geocode.city_suffix", "Toronto, ON")
	v.SetDefault("geocode.nominatim_rps", 1.0)
	v.SetDefault("geocode.timeout_secs", 10)

	v.SetDefault("resolver.intersection_radius_m", 120)

	v.SetDefault("builder.search_radius_deg", 0.02)
	v.SetDefault("builder.sparse_threshold_m", 200)
	v.SetDefault("builder.select_radius_m", 2000)
	v.SetDefault("builder.snap_both_m", 500)
	v.SetDefault("builder.snap_one_m", 200)
	v.SetDefault("builder.buffer_intersect_m", 30)
	v.SetDefault("builder.extrapolate_max_m", 2000)
	v.SetDefault("builder.nearest_approach_max_m", 1500)
	v.SetDefault("builder.detour_ratio", 2.5)
	v.SetDefault("builder.corridor_width_m", 220)
	v.SetDefault("builder.corridor_tie_fraction", 0.85)
	v.SetDefault("builder.zoning_radius_deg", 0.015)
	v.SetDefault("builder.boundary_concurrency", 4)

	v.SetDefault("output.dir", "output")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
