package game

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPatches reads protocol packet-shape overrides from a YAML file. The
// document maps protocol versions to arbitrary packet definitions that the
// client implementation merges over its defaults:
//
//	"1.20.4":
//	  entity_metadata:
//	    maxFieldId: 30
//
// A missing file is not an error; an unreadable or malformed one is.
func LoadPatches(path string) (map[string]map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading protocol patches: %w", err)
	}
	patches := make(map[string]map[string]any)
	if err := yaml.Unmarshal(data, &patches); err != nil {
		return nil, fmt.Errorf("parsing protocol patches: %w", err)
	}
	return patches, nil
}
