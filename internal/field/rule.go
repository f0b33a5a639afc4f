package field

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Kind is the character class a field accepts.
type Kind string

const (
	KindText   Kind = "text"
	KindDigits Kind = "digits"
)

// Rule describes one input field on a terminal form.
type Rule struct {
	Name          string   `yaml:"name" json:"field_name"`
	MaxLength     int      `yaml:"max_length" json:"max_length"`
	Required      bool     `yaml:"required,omitempty" json:"required"`
	Kind          Kind     `yaml:"type,omitempty" json:"type"`
	AllowedValues []string `yaml:"valid_values,omitempty" json:"valid_values,omitempty"`
	// TabsNeeded is sent after a non-empty value that does not fill the field.
	TabsNeeded int `yaml:"tabs_needed" json:"tabs_needed"`
	// TabsNeededEmpty is sent instead of a value when the value is empty.
	// Nil falls back to TabsNeeded.
	TabsNeededEmpty *int   `yaml:"tabs_needed_empty,omitempty" json:"tabs_needed_empty,omitempty"`
	Description     string `yaml:"description,omitempty" json:"description,omitempty"`
}

func defaultRule() Rule {
	return Rule{Kind: KindText, TabsNeeded: 1}
}

// UnmarshalYAML applies the decoding defaults before reading the node.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	type rawRule Rule
	raw := rawRule(defaultRule())
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*r = Rule(raw)
	return nil
}

// UnmarshalJSON applies the same defaults as UnmarshalYAML.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type rawRule Rule
	raw := rawRule(defaultRule())
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Rule(raw)
	return nil
}

// EmptyTabs returns the number of tabs sent for an empty value.
func (r Rule) EmptyTabs() int {
	if r.TabsNeededEmpty != nil {
		return *r.TabsNeededEmpty
	}
	return r.TabsNeeded
}

// Check reports structural problems with the rule itself.
func (r Rule) Check() error {
	if r.Name == "" {
		return fmt.Errorf("field has no name")
	}
	if r.MaxLength < 1 {
		return fmt.Errorf("field %q: max_length must be at least 1 (got %d)", r.Name, r.MaxLength)
	}
	if r.Kind != KindText && r.Kind != KindDigits {
		return fmt.Errorf("field %q: unknown type %q", r.Name, r.Kind)
	}
	if r.AllowedValues != nil && len(r.AllowedValues) == 0 {
		return fmt.Errorf("field %q: valid_values is present but empty", r.Name)
	}
	if r.TabsNeeded < 0 || r.EmptyTabs() < 0 {
		return fmt.Errorf("field %q: tab counts must not be negative", r.Name)
	}
	return nil
}

// Set is an ordered collection of rules. Declaration order is the physical
// tab order of the form.
type Set struct {
	rules  []Rule
	byName map[string]int
}

// NewSet builds a Set, rejecting duplicate names.
func NewSet(rules []Rule) (*Set, error) {
	s := &Set{
		rules:  make([]Rule, 0, len(rules)),
		byName: make(map[string]int, len(rules)),
	}
	for _, r := range rules {
		if _, dup := s.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", r.Name)
		}
		s.byName[r.Name] = len(s.rules)
		s.rules = append(s.rules, r)
	}
	return s, nil
}

// MustSet is NewSet for statically known rule lists.
func MustSet(rules ...Rule) *Set {
	s, err := NewSet(rules)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the rule for name.
func (s *Set) Lookup(name string) (Rule, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Rule{}, false
	}
	return s.rules[i], true
}

// Rules returns a copy of the rules in declaration order.
func (s *Set) Rules() []Rule {
	cp := make([]Rule, len(s.rules))
	copy(cp, s.rules)
	return cp
}

// Names returns the field names in declaration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name
	}
	return names
}

// Len returns the number of rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// Order returns the submitted names in iteration order: known fields in
// declaration order, then unknown names sorted.
func (s *Set) Order(values map[string]string) []string {
	order := make([]string, 0, len(values))
	for _, r := range s.rules {
		if _, ok := values[r.Name]; ok {
			order = append(order, r.Name)
		}
	}
	var unknown []string
	for name := range values {
		if _, ok := s.byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return append(order, unknown...)
}
