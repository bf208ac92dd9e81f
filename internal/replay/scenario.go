// Package replay feeds a scripted sequence of telemetry frames and session
// info documents through an irsdk.Memory, waking the recorder after each one.
package replay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crbraun/irsdkrec/internal/irsdk"
	"github.com/crbraun/irsdkrec/internal/sessioninfo"
)

const DefaultTickRate = 60

type Scenario struct {
	TickRate int       `yaml:"tick_rate"`
	Vars     []VarSpec `yaml:"vars"`
	Frames   []Frame   `yaml:"frames"`

	catalog []irsdk.Var
}

type VarSpec struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Count int    `yaml:"count"`
	Unit  string `yaml:"unit"`
	Desc  string `yaml:"desc"`
}

// Frame is one simulator tick. SessionInfo is either a mapping or a string
// holding a YAML document, the way the SDK publishes it.
type Frame struct {
	Tick        int              `yaml:"tick"`
	SessionNum  *int             `yaml:"session_num"`
	SessionTime *float64         `yaml:"session_time"`
	Values      map[string][]any `yaml:"values"`
	SessionInfo yaml.Node        `yaml:"session_info"`

	info *sessioninfo.Node
}

// HasSessionInfo reports whether the frame publishes a new session info
// document.
func (f *Frame) HasSessionInfo() bool {
	return f.SessionInfo.Kind != 0
}

// SessionInfoTree is the parsed session info, nil when the frame has none.
func (f *Frame) SessionInfoTree() *sessioninfo.Node {
	return f.info
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.prepare(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Catalog returns the telemetry variables declared by the scenario.
func (s *Scenario) Catalog() []irsdk.Var {
	return append([]irsdk.Var(nil), s.catalog...)
}

func (s *Scenario) prepare() error {
	if s.TickRate == 0 {
		s.TickRate = DefaultTickRate
	}
	if s.TickRate < 0 {
		return fmt.Errorf("scenario: tick_rate must be positive, got %d", s.TickRate)
	}

	byName := make(map[string]irsdk.Var, len(s.Vars))
	s.catalog = make([]irsdk.Var, 0, len(s.Vars))
	for _, spec := range s.Vars {
		typ, err := irsdk.ParseVarType(spec.Type)
		if err != nil {
			return fmt.Errorf("scenario: var %q: %w", spec.Name, err)
		}
		count := spec.Count
		if count == 0 {
			count = 1
		}
		v := irsdk.Var{Name: spec.Name, Type: typ, Count: count, Unit: spec.Unit, Desc: spec.Desc}
		if _, dup := byName[v.Name]; dup {
			return fmt.Errorf("scenario: duplicate var %q", v.Name)
		}
		byName[v.Name] = v
		s.catalog = append(s.catalog, v)
	}

	last := -1
	for i := range s.Frames {
		f := &s.Frames[i]
		if f.Tick < last {
			return fmt.Errorf("scenario: frame %d: tick %d goes backwards from %d", i, f.Tick, last)
		}
		last = f.Tick
		for name, values := range f.Values {
			v, ok := byName[name]
			if !ok {
				return fmt.Errorf("scenario: frame %d: %w: %s", i, irsdk.ErrUnknownVar, name)
			}
			if len(values) > v.Count {
				return fmt.Errorf("scenario: frame %d: %s has %d values for count %d", i, name, len(values), v.Count)
			}
			for j, raw := range values {
				converted, err := irsdk.ConvertValue(v.Type, raw)
				if err != nil {
					return fmt.Errorf("scenario: frame %d: %s[%d]: %w", i, name, j, err)
				}
				values[j] = converted
			}
		}
		if f.HasSessionInfo() {
			info, err := decodeSessionInfo(&f.SessionInfo)
			if err != nil {
				return fmt.Errorf("scenario: frame %d: %w", i, err)
			}
			f.info = info
		}
	}
	return nil
}

func decodeSessionInfo(n *yaml.Node) (*sessioninfo.Node, error) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str" {
		return sessioninfo.ParseYAML([]byte(n.Value))
	}
	return sessioninfo.FromYAMLNode(n)
}
