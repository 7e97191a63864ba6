// Package eval measures matching quality against a golden dataset:
// ideas with known relevant services and expected recommendations,
// run through a mapper and scored with standard retrieval metrics.
package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Frallans76Organisation/innovation-hub/pkg/mapper"
)

// Case is one golden idea with its judgments.
type Case struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`

	// Relevance grades services by catalog name: 0 = not relevant,
	// 1 = relevant, 2 = highly relevant. Cases without judgments are
	// excluded from the retrieval metrics but still count for
	// recommendation accuracy.
	Relevance map[string]int `yaml:"relevance"`

	// ExpectRecommendation is the expected decision
	// (existing_service, develop_existing or new_service). Empty
	// skips the accuracy check for this case.
	ExpectRecommendation string `yaml:"expect_recommendation"`
}

// Dataset is a parsed golden file plus the catalog it runs against.
type Dataset struct {
	Name    string `yaml:"dataset"`
	Catalog string `yaml:"catalog"`
	Cases   []Case `yaml:"cases"`

	dir string
}

// LoadDataset parses and validates a golden YAML file. The dataset
// name defaults to the file name without extension.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read golden file: %w", err)
	}

	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse golden file: %w", err)
	}
	if ds.Name == "" {
		base := filepath.Base(path)
		ds.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if len(ds.Cases) == 0 {
		return nil, fmt.Errorf("golden file %s has no cases", path)
	}

	seen := make(map[string]struct{}, len(ds.Cases))
	for i, c := range ds.Cases {
		if c.ID == "" {
			return nil, fmt.Errorf("golden file %s: case %d has no id", path, i)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("golden file %s: duplicate case id %q", path, c.ID)
		}
		seen[c.ID] = struct{}{}
		if strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.Description) == "" {
			return nil, fmt.Errorf("golden file %s: case %q has no idea text", path, c.ID)
		}
		switch c.ExpectRecommendation {
		case "", string(mapper.RecommendExisting), string(mapper.RecommendDevelop), string(mapper.RecommendNew):
		default:
			return nil, fmt.Errorf("golden file %s: case %q: unknown recommendation %q",
				path, c.ID, c.ExpectRecommendation)
		}
	}

	ds.dir = filepath.Dir(path)
	return &ds, nil
}

// CatalogPath resolves the dataset's catalog file relative to the
// golden file location. Empty when the dataset names no catalog.
func (d *Dataset) CatalogPath() string {
	if d.Catalog == "" || filepath.IsAbs(d.Catalog) {
		return d.Catalog
	}
	return filepath.Join(d.dir, d.Catalog)
}
