package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cepro/flexarea/grid"
	"github.com/cepro/flexarea/sampler"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

var ErrInvalidSettings = errors.New("invalid settings")

type PlotSettings struct {
	Plot       bool   `mapstructure:"plot"`
	ConvexHull bool   `mapstructure:"convex_hull"`
	OutputType string `mapstructure:"output type"` // image file extension, e.g. "png" or "svg"
}

// ScenarioSettings holds everything a flexibility study needs to know about one scenario.
type ScenarioSettings struct {
	Network        string               `mapstructure:"network"` // path of the network file, relative paths are relative to the scenario file
	NoSamples      int                  `mapstructure:"no_samples"`
	Distribution   sampler.Distribution `mapstructure:"distribution"`
	KeepMP         bool                 `mapstructure:"keep_mp"` // only move the power factor of generators, keeping their apparent power
	MaxCurrPercent float64              `mapstructure:"max_curr_per"`
	MaxVoltPu      float64              `mapstructure:"max_volt_pu"`
	MinVoltPu      float64              `mapstructure:"min_volt_pu"`
	MonteCarlo     bool                 `mapstructure:"Monte_Carlo_simulation"`
	FSPs           sampler.Services     `mapstructure:"FSPs"`

	// Index lists of [-1] mean "every element of this kind"
	FSPWTIndices    []int `mapstructure:"FSP_WT_indices"`
	FSPPVIndices    []int `mapstructure:"FSP_PV_indices"`
	FSPLoadIndices  []int `mapstructure:"FSP_load_indices"`
	ObservableLines []int `mapstructure:"observable_lines_indices"`
	ObservableBuses []int `mapstructure:"observable_buses_indices"`

	ScenarioType grid.Shift   `mapstructure:"scenario_type"`
	PlotSettings PlotSettings `mapstructure:"plot_settings"`
	ScalePV      float64      `mapstructure:"scale_pv"`
	ScaleWT      float64      `mapstructure:"scale_wt"`
	Seed         uint64       `mapstructure:"seed"`
}

type SupabaseConfig struct {
	Url string `mapstructure:"url"`
	// key is specified via env var
	Schema string `mapstructure:"schema"`
}

type DataPlatformConfig struct {
	UploadChunkSize int            `mapstructure:"upload_chunk_size"`
	Supabase        SupabaseConfig `mapstructure:"supabase"`
}

type Settings struct {
	Name         string              `mapstructure:"name"`
	Scenario     ScenarioSettings    `mapstructure:"scenario_settings"`
	DataPlatform *DataPlatformConfig `mapstructure:"data_platform"`
}

// all is the index list meaning "every element of this kind".
var all = []int{-1}

// Default returns the settings used for anything a scenario file leaves out.
func Default() Settings {
	return Settings{
		Name: "Unnamed",
		Scenario: ScenarioSettings{
			Network:         "network.yaml",
			NoSamples:       100,
			Distribution:    sampler.DistributionNormalLimitsOriented,
			KeepMP:          false,
			MaxCurrPercent:  100,
			MaxVoltPu:       1.05,
			MinVoltPu:       0.95,
			MonteCarlo:      true,
			FSPs:            sampler.ServicesAll,
			FSPWTIndices:    all,
			FSPPVIndices:    all,
			FSPLoadIndices:  all,
			ObservableLines: []int{0, 1, 10, 11},
			ObservableBuses: []int{0, 1, 2, 3, 12, 13, 14},
			PlotSettings:    PlotSettings{Plot: true, ConvexHull: true, OutputType: "png"},
			ScalePV:         1,
			ScaleWT:         1,
			Seed:            sampler.DefaultSeed,
		},
	}
}

// Read loads a scenario file (YAML, or JSON which is read as YAML), applies defaults and validates the result.
func Read(path string) (Settings, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read scenario file: %w", err)
	}

	settings, err := Parse(content)
	if err != nil {
		return Settings{}, fmt.Errorf("parse scenario file %q: %w", path, err)
	}

	if !filepath.IsAbs(settings.Scenario.Network) {
		settings.Scenario.Network = filepath.Join(filepath.Dir(path), settings.Scenario.Network)
	}
	return settings, nil
}

// Parse decodes a scenario document over the defaults and validates it.
func Parse(content []byte) (Settings, error) {
	var raw map[string]interface{}
	err := yaml.Unmarshal(content, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("unmarshal scenario: %w", err)
	}
	if _, ok := raw["scenario_settings"]; !ok {
		return Settings{}, fmt.Errorf("%w: scenario_settings missing", ErrInvalidSettings)
	}

	settings := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &settings,
		ErrorUnused: true,
		ZeroFields:  true,
	})
	if err != nil {
		return Settings{}, fmt.Errorf("create decoder: %w", err)
	}
	err = decoder.Decode(raw)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	err = settings.Validate()
	if err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// FileName returns the name in a form that is safe to use in file names.
func (s Settings) FileName() string {
	return strings.ReplaceAll(s.Name, " ", "_")
}

// Validate checks every field, returning one error per violated field.
func (s Settings) Validate() error {
	var errs []error
	fail := func(field string, format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidSettings, field, fmt.Sprintf(format, args...)))
	}
	wrap := func(field string, err error) {
		errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidSettings, field, err))
	}

	sc := s.Scenario
	if sc.Network == "" {
		fail("network", "must be set")
	}
	if sc.NoSamples < 0 {
		fail("no_samples", "must not be negative, got %d", sc.NoSamples)
	}
	if err := sc.Distribution.Valid(); err != nil {
		wrap("distribution", err)
	}
	if err := sc.FSPs.Valid(); err != nil {
		wrap("FSPs", err)
	}
	if !(sc.MaxCurrPercent > 0) {
		fail("max_curr_per", "must be positive, got %v", sc.MaxCurrPercent)
	}
	if !(sc.MinVoltPu > 0) {
		fail("min_volt_pu", "must be positive, got %v", sc.MinVoltPu)
	}
	if !(sc.MaxVoltPu >= sc.MinVoltPu) {
		fail("max_volt_pu", "must not be below min_volt_pu (%v), got %v", sc.MinVoltPu, sc.MaxVoltPu)
	}
	if sc.ScalePV < 0 {
		fail("scale_pv", "must not be negative, got %v", sc.ScalePV)
	}
	if sc.ScaleWT < 0 {
		fail("scale_wt", "must not be negative, got %v", sc.ScaleWT)
	}

	indexLists := []struct {
		field   string
		indices []int
	}{
		{"FSP_WT_indices", sc.FSPWTIndices},
		{"FSP_PV_indices", sc.FSPPVIndices},
		{"FSP_load_indices", sc.FSPLoadIndices},
		{"observable_lines_indices", sc.ObservableLines},
		{"observable_buses_indices", sc.ObservableBuses},
	}
	for _, list := range indexLists {
		if err := validateIndices(list.indices); err != nil {
			fail(list.field, "%v", err)
		}
	}

	if s.DataPlatform != nil {
		if s.DataPlatform.Supabase.Url == "" {
			fail("data_platform.supabase.url", "must be set when a data platform is configured")
		}
		if s.DataPlatform.UploadChunkSize < 0 {
			fail("data_platform.upload_chunk_size", "must not be negative, got %d", s.DataPlatform.UploadChunkSize)
		}
	}

	return errors.Join(errs...)
}

// validateIndices accepts [-1], or a list of distinct non-negative indices.
func validateIndices(indices []int) error {
	if isAll(indices) {
		return nil
	}
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 {
			return fmt.Errorf("index %d is negative, use [-1] alone to select everything", i)
		}
		if seen[i] {
			return fmt.Errorf("index %d given more than once", i)
		}
		seen[i] = true
	}
	return nil
}

func isAll(indices []int) bool {
	return len(indices) == 1 && indices[0] == -1
}
