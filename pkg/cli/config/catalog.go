package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/service/catalog"
	"github.com/secmon-lab/strategos/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Catalog holds CLI flags for the strategy catalog
type Catalog struct {
	path string
}

// Flags returns CLI flags for catalog configuration
func (c *Catalog) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "Path to a TOML strategy catalog (built-in strategies when empty)",
			Sources:     cli.EnvVars("STRATEGOS_CATALOG"),
			Destination: &c.path,
		},
	}
}

// CatalogFile is the TOML layout of a strategy catalog
type CatalogFile struct {
	Strategies []CatalogStrategy `toml:"strategy"`
}

// CatalogStrategy is one strategy definition in the catalog file
type CatalogStrategy struct {
	Name             string   `toml:"name"`
	Profile          string   `toml:"profile"`
	ContentTypes     []string `toml:"content_types"`
	ComplexityLevels []string `toml:"complexity_levels"`
	DeviceOptimized  bool     `toml:"device_optimized"`
	EstimatedLatency int      `toml:"estimated_latency_ms"`
	Cost             float64  `toml:"cost"`
	Description      string   `toml:"description"`
}

func (s *CatalogStrategy) toDescriptor() (*model.StrategyDescriptor, error) {
	profile, err := types.ParsePerformanceProfile(s.Profile)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid strategy profile", goerr.V("name", s.Name))
	}

	contentTypes := make([]types.ContentType, 0, len(s.ContentTypes))
	for _, v := range s.ContentTypes {
		ct, err := types.ParseContentType(v)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid content type", goerr.V("name", s.Name))
		}
		contentTypes = append(contentTypes, ct)
	}

	levels := make([]types.Complexity, 0, len(s.ComplexityLevels))
	for _, v := range s.ComplexityLevels {
		cx, err := types.ParseComplexity(v)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid complexity level", goerr.V("name", s.Name))
		}
		levels = append(levels, cx)
	}

	d := &model.StrategyDescriptor{
		Name:             s.Name,
		Profile:          profile,
		ContentTypes:     contentTypes,
		ComplexityLevels: levels,
		DeviceOptimized:  s.DeviceOptimized,
		EstimatedLatency: s.EstimatedLatency,
		Cost:             s.Cost,
		Description:      s.Description,
	}
	if err := d.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid strategy descriptor", goerr.V("name", s.Name))
	}
	return d, nil
}

// Configure loads the strategy catalog. An empty path yields the built-in
// default strategies.
func (c *Catalog) Configure() (*catalog.Catalog, error) {
	if c.path == "" {
		logging.Default().Info("Using built-in strategy catalog")
		return catalog.NewDefault(), nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read catalog file", goerr.V("path", c.path))
	}

	var file CatalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML catalog", goerr.V("path", c.path))
	}
	if len(file.Strategies) == 0 {
		return nil, goerr.New("catalog file defines no strategies", goerr.V("path", c.path))
	}

	seen := make(map[string]bool)
	descriptors := make([]model.StrategyDescriptor, 0, len(file.Strategies))
	for _, s := range file.Strategies {
		d, err := s.toDescriptor()
		if err != nil {
			return nil, goerr.Wrap(err, "catalog validation failed", goerr.V("path", c.path))
		}
		if seen[d.Name] {
			return nil, goerr.New("duplicate strategy name", goerr.V("name", d.Name))
		}
		seen[d.Name] = true
		descriptors = append(descriptors, *d)
	}

	cat, err := catalog.New(descriptors)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build strategy catalog", goerr.V("path", c.path))
	}
	logging.Default().Info("Loaded strategy catalog", "path", c.path, "strategies", len(descriptors))
	return cat, nil
}
