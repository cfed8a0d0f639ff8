// Package wizard implements the report wizard state machine: the draft
// being edited, the current step pointer, per-step validation, gated
// navigation, and debounced auto-save to the backend.
package wizard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
)

// Flow is an ordered wizard variant: which steps appear and in what order.
type Flow struct {
	Name  string   `yaml:"name"`
	Steps []string `yaml:"steps"`
}

// FlowFull is the 15-step flow covering every section.
var FlowFull = Flow{Name: "full", Steps: append([]string(nil), draft.StepOrder...)}

// FlowCompact is the 12-step flow for simpler engagements: locality,
// transport and environmental are folded into location/site narrative.
var FlowCompact = Flow{
	Name: "compact",
	Steps: []string{
		draft.StepReportInfo,
		draft.StepIdentification,
		draft.StepLocation,
		draft.StepSite,
		draft.StepBuildings,
		draft.StepUtilities,
		draft.StepPlanning,
		draft.StepMarket,
		draft.StepValuation,
		draft.StepLegal,
		draft.StepAppendices,
		draft.StepReview,
	},
}

// Validate checks a flow against the fixed step registry: known steps
// only, no duplicates, and the terminal step must be review.
func (f Flow) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("flow: name is required")
	}
	if len(f.Steps) < 2 {
		return fmt.Errorf("flow %s: needs at least two steps", f.Name)
	}
	seen := map[string]bool{}
	for _, s := range f.Steps {
		if !draft.KnownStep(s) {
			return fmt.Errorf("flow %s: unknown step %q", f.Name, s)
		}
		if seen[s] {
			return fmt.Errorf("flow %s: duplicate step %q", f.Name, s)
		}
		seen[s] = true
	}
	if f.Steps[len(f.Steps)-1] != draft.StepReview {
		return fmt.Errorf("flow %s: last step must be %s", f.Name, draft.StepReview)
	}
	return nil
}

// TotalSteps returns the step count of the flow.
func (f Flow) TotalSteps() int { return len(f.Steps) }

// StepAt returns the step name at index n, or "" when out of range.
func (f Flow) StepAt(n int) string {
	if n < 0 || n >= len(f.Steps) {
		return ""
	}
	return f.Steps[n]
}

// IndexOf returns the flow index of a step name, or -1.
func (f Flow) IndexOf(step string) int {
	for i, s := range f.Steps {
		if s == step {
			return i
		}
	}
	return -1
}

// ParseFlowYAML decodes and validates a single flow definition.
func ParseFlowYAML(data []byte) (Flow, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Flow{}, errors.New("flow: definition payload is empty")
	}
	var f Flow
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Flow{}, fmt.Errorf("flow: decode definition: %w", err)
	}
	if err := f.Validate(); err != nil {
		return Flow{}, err
	}
	return f, nil
}

// LoadFlowFile reads a YAML flow definition from disk.
func LoadFlowFile(path string) (Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Flow{}, fmt.Errorf("flow: read %s: %w", path, err)
	}
	f, err := ParseFlowYAML(data)
	if err != nil {
		return Flow{}, fmt.Errorf("flow: %s: %w", path, err)
	}
	return f, nil
}

// LoadFlowDir scans a directory for *.yaml flow definitions. A missing
// directory means "no custom flows".
func LoadFlowDir(dir string) ([]Flow, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: read %s: %w", trimmed, err)
	}
	var flows []Flow
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ext := strings.ToLower(filepath.Ext(name)); ext != ".yaml" && ext != ".yml" {
			continue
		}
		f, err := LoadFlowFile(filepath.Join(trimmed, name))
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Name < flows[j].Name })
	return flows, nil
}

// FlowRegistry resolves flows by name, builtins plus any custom ones.
type FlowRegistry struct {
	flows map[string]Flow
}

func NewFlowRegistry(custom ...Flow) *FlowRegistry {
	r := &FlowRegistry{flows: map[string]Flow{
		FlowFull.Name:    FlowFull,
		FlowCompact.Name: FlowCompact,
	}}
	for _, f := range custom {
		r.flows[f.Name] = f
	}
	return r
}

// Names returns the registered flow names in sorted order.
func (r *FlowRegistry) Names() []string {
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named flow; "" resolves to the full flow.
func (r *FlowRegistry) Lookup(name string) (Flow, bool) {
	if strings.TrimSpace(name) == "" {
		return FlowFull, true
	}
	f, ok := r.flows[name]
	return f, ok
}
