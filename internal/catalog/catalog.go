// Package catalog holds the static model catalog: the closed set of
// language models a session may bind for answer synthesis.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

//go:embed models.yaml
var modelsYAML []byte

type Catalog struct {
	models map[string]domain.ModelInfo
	order  []string
}

// Load parses and validates the embedded catalog. It is called once at
// startup; an invalid catalog is a build defect, not a runtime state.
func Load() (*Catalog, error) {
	return parse(modelsYAML)
}

func parse(raw []byte) (*Catalog, error) {
	var file struct {
		Models []struct {
			ID                   string  `yaml:"id"`
			Provider             string  `yaml:"provider"`
			CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"`
		} `yaml:"models"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}

	c := &Catalog{models: make(map[string]domain.ModelInfo, len(file.Models))}
	for _, m := range file.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("model catalog entry without id")
		}
		provider := domain.ModelProvider(m.Provider)
		if !provider.Valid() {
			return nil, fmt.Errorf("model %s has unknown provider %q", m.ID, m.Provider)
		}
		if _, dup := c.models[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %s", m.ID)
		}
		c.models[m.ID] = domain.ModelInfo{
			ID:                   m.ID,
			Provider:             provider,
			CostPerMillionTokens: m.CostPerMillionTokens,
		}
		c.order = append(c.order, m.ID)
	}
	return c, nil
}

func (c *Catalog) Lookup(id string) (domain.ModelInfo, error) {
	info, ok := c.models[id]
	if !ok {
		return domain.ModelInfo{}, domain.WrapError(domain.ErrModelNotFound, "lookup model",
			fmt.Errorf("unknown model %q", id))
	}
	return info, nil
}

func (c *Catalog) List() []domain.ModelInfo {
	out := make([]domain.ModelInfo, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.models[id])
	}
	return out
}
