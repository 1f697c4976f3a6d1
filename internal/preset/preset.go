// Package preset loads named dice expressions from YAML so common rolls can
// be invoked by name.
package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/rollbox/internal/dice"
)

// ErrDuplicate is returned when two presets share a name.
var ErrDuplicate = errors.New("preset: duplicate name")

// Preset is a named, pre-validated expression and roll type.
//
// Invariant: Expression was produced by dice.Parse.
type Preset struct {
	Name        string
	Description string
	Expression  dice.Expression
	RollType    dice.RollType
}

// file is the on-disk shape of one preset entry.
type file struct {
	Name        string `yaml:"name"`
	Expression  string `yaml:"expression"`
	RollType    string `yaml:"roll_type"`
	Description string `yaml:"description"`
}

// Registry is a read-only name → Preset index.
type Registry struct {
	presets map[string]Preset
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{presets: make(map[string]Preset)}
}

// Get returns the preset called name. Names are case-insensitive.
func (r *Registry) Get(name string) (Preset, bool) {
	p, ok := r.presets[strings.ToLower(name)]
	return p, ok
}

// Names returns every preset name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of presets.
func (r *Registry) Len() int { return len(r.presets) }

// add validates and inserts one entry.
func (r *Registry) add(f file, origin string) error {
	name := strings.ToLower(strings.TrimSpace(f.Name))
	if name == "" {
		return fmt.Errorf("%s: preset name must not be empty", origin)
	}
	if strings.ContainsAny(name, " \t") {
		return fmt.Errorf("%s: preset name %q must be a single word", origin, f.Name)
	}
	if _, exists := r.presets[name]; exists {
		return fmt.Errorf("%s: %w %q", origin, ErrDuplicate, name)
	}
	expr, err := dice.Parse(f.Expression)
	if err != nil {
		return fmt.Errorf("%s: preset %q: %w", origin, name, err)
	}
	rollType, err := dice.ParseRollType(f.RollType)
	if err != nil {
		return fmt.Errorf("%s: preset %q: %w", origin, name, err)
	}
	r.presets[name] = Preset{
		Name:        name,
		Description: f.Description,
		Expression:  expr,
		RollType:    rollType,
	}
	return nil
}

// Parse builds a Registry from one YAML document holding a list of presets.
//
// Postcondition: Returns a Registry where every expression and roll type is
// valid, or a non-nil error naming the first bad entry.
func Parse(data []byte) (*Registry, error) {
	r := NewRegistry()
	if err := r.parseInto(data, "presets"); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) parseInto(data []byte, origin string) error {
	var entries []file
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing preset file %s: %w", origin, err)
	}
	for i, f := range entries {
		if err := r.add(f, fmt.Sprintf("%s[%d]", origin, i)); err != nil {
			return err
		}
	}
	return nil
}

// Load reads every .yaml/.yml file in dir, in name order, into one Registry.
// Preset names must be unique across files.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns a populated Registry (possibly empty) or a non-nil error.
func Load(dir string) (*Registry, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := r.parseInto(data, filepath.Base(path)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
