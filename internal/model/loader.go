package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"RefineAPI/internal/logger"

	"gopkg.in/yaml.v3"
)

// LoadResourcesFromDir parses every *.yml file in dir. Keys are validated on
// the yaml.Node tree before decoding so that typos fail loudly.
func LoadResourcesFromDir(dir string) (map[string]*Resource, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Resource, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		res, err := ParseResource(name, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out[name] = res
		logger.Info("resource_loaded", map[string]any{
			"resource": name,
			"filters":  len(res.Filters),
			"sorts":    len(res.Sorts),
			"searches": len(res.Searches),
		})
	}
	return out, nil
}

// ParseResource decodes one resource definition.
func ParseResource(name string, data []byte) (*Resource, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty YAML")
	}
	if err := validateYAMLNode(root.Content[0], "resource"); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	var res Resource
	if err := root.Decode(&res); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	res.Name = name
	return &res, nil
}
