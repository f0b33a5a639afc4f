package screen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses a screen YAML file.
func LoadFile(path string) (*Screen, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading screen file: %w", err)
	}
	return Load(data)
}

// Load parses screen YAML bytes and sorts the steps by order.
func Load(data []byte) (*Screen, error) {
	var sc Screen
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("screen has no name")
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("screen %q has no navigation steps", sc.Name)
	}
	SortSteps(sc.Steps)
	return &sc, nil
}

// SortSteps orders steps by ascending Order, keeping the input order of ties.
func SortSteps(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
}

// Dir serves screens from a directory of YAML files, one screen per file.
type Dir struct {
	Path string
}

// List returns the names of all loadable screens, sorted.
func (d Dir) List() ([]string, error) {
	screens, err := d.loadAll()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(screens))
	for name := range screens {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Get returns the screen with the given name.
func (d Dir) Get(name string) (*Screen, error) {
	screens, err := d.loadAll()
	if err != nil {
		return nil, err
	}
	sc, ok := screens[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return sc, nil
}

func (d Dir) loadAll() (map[string]*Screen, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("reading screens dir: %w", err)
	}
	screens := map[string]*Screen{}
	for _, e := range entries {
		if e.IsDir() || !(strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		sc, err := LoadFile(filepath.Join(d.Path, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		screens[sc.Name] = sc
	}
	return screens, nil
}

// NotFoundError is returned when a screen name is unknown to a source.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("screen %q not found", e.Name)
}
