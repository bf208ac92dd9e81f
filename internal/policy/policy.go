// Package policy decides how often a telemetry field may be re-emitted and
// which fields are never recorded.
package policy

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Policy is immutable after construction. A nil *Policy throttles and
// suppresses nothing.
type Policy struct {
	intervals  map[string]int
	suppressed map[string]struct{}
}

// New copies intervals and suppressed. Negative intervals are clamped to 0.
func New(intervals map[string]int, suppressed []string) *Policy {
	p := &Policy{
		intervals:  make(map[string]int, len(intervals)),
		suppressed: make(map[string]struct{}, len(suppressed)),
	}
	for name, secs := range intervals {
		if secs > 0 {
			p.intervals[name] = secs
		}
	}
	for _, name := range suppressed {
		p.suppressed[name] = struct{}{}
	}
	return p
}

// Default returns the built-in tables.
func Default() *Policy {
	return New(defaultIntervals, defaultSuppressed)
}

// IntervalSeconds is the minimum number of seconds between two emitted
// changes of name; 0 emits every change.
func (p *Policy) IntervalSeconds(name string) int {
	if p == nil {
		return 0
	}
	return p.intervals[name]
}

func (p *Policy) IsSuppressed(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.suppressed[name]
	return ok
}

// Throttled returns the throttled field names with their intervals, sorted by
// name.
func (p *Policy) Throttled() []Interval {
	if p == nil {
		return nil
	}
	out := make([]Interval, 0, len(p.intervals))
	for name, secs := range p.intervals {
		out = append(out, Interval{Name: name, Seconds: secs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Suppressed returns the suppressed field names, sorted.
func (p *Policy) Suppressed() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.suppressed))
	for name := range p.suppressed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type Interval struct {
	Name    string
	Seconds int
}

// File is the YAML form of a policy.
type File struct {
	InheritDefaults bool           `yaml:"inherit_defaults"`
	Throttle        map[string]int `yaml:"throttle"`
	Suppress        []string       `yaml:"suppress"`
	Unsuppress      []string       `yaml:"unsuppress"`
}

// Load reads a YAML policy file. An empty path returns Default.
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Policy, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return f.Build()
}

// Build merges f onto the defaults when InheritDefaults is set.
func (f File) Build() (*Policy, error) {
	intervals := map[string]int{}
	suppressed := map[string]struct{}{}
	if f.InheritDefaults {
		for name, secs := range defaultIntervals {
			intervals[name] = secs
		}
		for _, name := range defaultSuppressed {
			suppressed[name] = struct{}{}
		}
	}
	for name, secs := range f.Throttle {
		if secs < 0 {
			return nil, fmt.Errorf("policy: throttle for %s must be >= 0, got %d", name, secs)
		}
		intervals[name] = secs
	}
	for _, name := range f.Suppress {
		suppressed[name] = struct{}{}
	}
	for _, name := range f.Unsuppress {
		delete(suppressed, name)
	}
	names := make([]string, 0, len(suppressed))
	for name := range suppressed {
		names = append(names, name)
	}
	return New(intervals, names), nil
}
