package core

// layouts.go holds the registry of named width layouts.
//
// A layout is a reusable description of how one kind of packed word breaks
// into fields, for example a status register whose bit 0 is "enable" and
// whose bits 1-3 are "mode". Layouts are read from a YAML file at startup:
//
//	layouts:
//	  - name: status_reg
//	    description: Controller status register
//	    fields:
//	      - {name: enable, bits: 1}
//	      - {name: mode, bits: 3}
//	      - {name: reserved, bits: 28}

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownLayout is returned when a plan names a layout that is not registered.
var ErrUnknownLayout = errors.New("unknown layout")

// LayoutField is one named field of a layout.
type LayoutField struct {
	Name string `yaml:"name" json:"name"`
	Bits int    `yaml:"bits" json:"bits"`
}

// Layout is a named, ordered list of fields.
type Layout struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description,omitempty"`
	Fields      []LayoutField `yaml:"fields" json:"fields"`
}

// Widths returns the field widths in order.
func (l Layout) Widths() []int {
	widths := make([]int, len(l.Fields))
	for i, f := range l.Fields {
		widths[i] = f.Bits
	}
	return widths
}

// Names returns the field names in order.
func (l Layout) Names() []string {
	names := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
	}
	return names
}

// TotalBits returns the sum of all field widths.
func (l Layout) TotalBits() int {
	total := 0
	for _, f := range l.Fields {
		total += f.Bits
	}
	return total
}

func (l Layout) validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("layout name is empty")
	}
	if len(l.Fields) == 0 {
		return fmt.Errorf("layout %q has no fields", l.Name)
	}
	seen := make(map[string]bool, len(l.Fields))
	for i, f := range l.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("layout %q field %d has no name", l.Name, i)
		}
		if seen[f.Name] {
			return fmt.Errorf("layout %q repeats field %q", l.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Bits < 1 {
			return fmt.Errorf("layout %q field %q has %d bits, want at least 1", l.Name, f.Name, f.Bits)
		}
	}
	return nil
}

// layoutFile is the on-disk YAML document.
type layoutFile struct {
	Layouts []Layout `yaml:"layouts"`
}

// Layouts is a concurrency-safe registry of layouts keyed by name.
type Layouts struct {
	mu      sync.RWMutex
	layouts map[string]Layout
}

// NewLayouts returns an empty registry.
func NewLayouts() *Layouts {
	return &Layouts{layouts: make(map[string]Layout)}
}

// Register validates and adds a layout. Names must be unique.
func (r *Layouts) Register(l Layout) error {
	if err := l.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.layouts[l.Name]; exists {
		return fmt.Errorf("layout already registered: %s", l.Name)
	}
	r.layouts[l.Name] = l
	return nil
}

// Get returns a layout by name.
func (r *Layouts) Get(name string) (Layout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
	return l, nil
}

// All returns every layout sorted by name.
func (r *Layouts) All() []Layout {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Layout, 0, len(r.layouts))
	for _, l := range r.layouts {
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Len returns the number of registered layouts.
func (r *Layouts) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.layouts)
}

// LoadLayouts decodes a YAML layout document into a new registry.
func LoadLayouts(rd io.Reader) (*Layouts, error) {
	var doc layoutFile
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode layouts: %w", err)
	}

	r := NewLayouts()
	for _, l := range doc.Layouts {
		if err := r.Register(l); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadLayoutsFile reads layouts from path. An empty path yields an empty registry.
func LoadLayoutsFile(path string) (*Layouts, error) {
	if path == "" {
		return NewLayouts(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layouts: %w", err)
	}
	defer f.Close()
	return LoadLayouts(f)
}
