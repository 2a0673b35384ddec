package cbr

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadWeights reads similarity weights from a yaml file. A missing
// file is not an error, the built-in defaults apply. Unknown feature
// names are rejected so a typo in the file cannot silently zero out a
// dimension.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultWeights(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}

	var raw map[string]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse weights file: %w", err)
	}

	defaults := DefaultWeights()
	w := make(Weights, len(defaults))
	for name, weight := range defaults {
		w[name] = weight
	}
	for name, weight := range raw {
		if _, ok := defaults[name]; !ok {
			return nil, fmt.Errorf("unknown similarity feature %q", name)
		}
		if weight < 0 {
			return nil, fmt.Errorf("negative weight for feature %q", name)
		}
		w[name] = weight
	}
	return w, nil
}
