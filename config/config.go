package config

import (
	"fmt"
	"os"

	"github.com/metrico/healpipe/model"
	"gopkg.in/yaml.v3"
)

// Catalog is the list of datasets the service can build.
type Catalog struct {
	Datasets []model.Dataset `yaml:"datasets" json:"datasets"`
}

// LoadCatalog reads a YAML dataset catalog. Kind defaults are applied and
// every dataset is validated.
func LoadCatalog(filename string) (*Catalog, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	err := yaml.Unmarshal(data, &catalog)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(catalog.Datasets))
	for i, ds := range catalog.Datasets {
		if ds.Name == "" {
			return nil, fmt.Errorf("dataset %d has no name", i)
		}
		if seen[ds.Name] {
			return nil, fmt.Errorf("duplicate dataset %q", ds.Name)
		}
		seen[ds.Name] = true
		ds = ds.WithDefaults()
		if err := ds.Validate(); err != nil {
			return nil, err
		}
		catalog.Datasets[i] = ds
	}
	return &catalog, nil
}

func (c *Catalog) Get(name string) (model.Dataset, bool) {
	for _, ds := range c.Datasets {
		if ds.Name == name {
			return ds, true
		}
	}
	return model.Dataset{}, false
}
