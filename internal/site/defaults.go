package site

import (
	_ "embed"
	"fmt"
)

//go:embed sites.yaml
var defaultRegistry []byte

// Default returns the built-in registry.
func Default() ([]Definition, error) {
	sites, err := Parse(defaultRegistry)
	if err != nil {
		return nil, fmt.Errorf("error while parsing built-in sites: %w", err)
	}
	if err := Validate(sites); err != nil {
		return nil, err
	}
	return sites, nil
}
