// Package site holds the registry of sites with a daily check-in flow.
package site

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jakopako/signin/internal/flow"
	"gopkg.in/yaml.v3"
)

// Definition describes one site. It is never modified after loading.
type Definition struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// EntryURL is opened by the scheduler.
	EntryURL string `yaml:"entry_url"`
	// Matches are glob patterns identifying the site's pages.
	Matches     []string   `yaml:"matches"`
	Active      *bool      `yaml:"active,omitempty"` // defaults to true
	Description string     `yaml:"description,omitempty"`
	Steps       flow.Steps `yaml:"steps"`
}

func (d Definition) IsActive() bool {
	return d.Active == nil || *d.Active
}

func (d Definition) Patterns() []string {
	return d.Matches
}

// DisplayName is the name used in notifications.
func (d Definition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

func (d Definition) validate() error {
	if d.ID == "" {
		return errors.New("site without id")
	}
	u, err := url.Parse(d.EntryURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site %s: invalid entry_url %q", d.ID, d.EntryURL)
	}
	if len(d.Matches) == 0 {
		return fmt.Errorf("site %s: no match patterns", d.ID)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("site %s: no steps", d.ID)
	}
	if err := d.Steps.Validate(); err != nil {
		return fmt.Errorf("site %s: %w", d.ID, err)
	}
	return nil
}

// Validate checks every definition and the uniqueness of ids.
func Validate(sites []Definition) error {
	seen := map[string]bool{}
	var errs []error
	for _, d := range sites {
		if err := d.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Errorf("duplicate site id %s", d.ID))
		}
		seen[d.ID] = true
	}
	return errors.Join(errs...)
}

// Find returns the site with the given id.
func Find(sites []Definition, id string) (Definition, bool) {
	for _, d := range sites {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

type registryFile struct {
	Sites []Definition `yaml:"sites"`
}

// Parse decodes a registry document.
func Parse(data []byte) ([]Definition, error) {
	var r registryFile
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r.Sites, nil
}

// Load reads site definitions from a yaml file or from all yaml files in
// a directory. Files of a directory are read in lexical order.
func Load(path string) ([]Definition, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	files := []string{path}
	if fi.IsDir() {
		files = nil
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".yml" || ext == ".yaml") {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	}

	var sites []Definition
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("error while parsing %s: %w", f, err)
		}
		sites = append(sites, s...)
	}
	if err := Validate(sites); err != nil {
		return nil, err
	}
	return sites, nil
}
