package scenario

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"pkt.systems/pslog"

	"github.com/five82/scout/internal/replay"
)

// DefaultName is the scenario used when none is configured.
const DefaultName = "dashboard"

//go:embed builtin/*.yaml
var builtinFS embed.FS

// ErrUnknownBuiltin is returned by Builtin for names that are not embedded.
var ErrUnknownBuiltin = errors.New("unknown built-in scenario")

// File is a scenario as written on disk.
type File struct {
	ID          string         `yaml:"id"`
	Description string         `yaml:"description"`
	Loop        bool           `yaml:"loop"`
	Initial     map[string]any `yaml:"initial"`
	Timeline    []StepSpec     `yaml:"timeline"`
}

// StepSpec is one timeline entry.
type StepSpec struct {
	Delay Duration       `yaml:"delay"`
	Label string         `yaml:"label"`
	Patch map[string]any `yaml:"patch"`
}

// Duration accepts either a Go duration string ("2s", "1500ms") or an
// integer number of milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: delay must be a scalar", node.Line)
	}
	if node.Tag == "!!int" {
		ms, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: delay %q: %w", node.Line, node.Value, err)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: delay %q: %w", node.Line, node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Parse decodes a scenario document.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse scenario: %w", err)
	}
	if strings.TrimSpace(f.ID) == "" {
		return File{}, errors.New("parse scenario: id is required")
	}
	f.Initial = normalizeMap(f.Initial)
	for i := range f.Timeline {
		if f.Timeline[i].Delay < 0 {
			return File{}, fmt.Errorf("parse scenario: step %d: negative delay", i)
		}
		f.Timeline[i].Patch = normalizeMap(f.Timeline[i].Patch)
	}
	return f, nil
}

// Load reads and parses a scenario file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Builtin returns an embedded scenario by name.
func Builtin(name string) (File, error) {
	data, err := builtinFS.ReadFile(path.Join("builtin", name+".yaml"))
	if err != nil {
		return File{}, fmt.Errorf("%w: %s", ErrUnknownBuiltin, name)
	}
	return Parse(data)
}

// BuiltinNames lists the embedded scenarios.
func BuiltinNames() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Resolve treats ref as a built-in name first and as a file path otherwise.
// An empty ref selects DefaultName.
func Resolve(ref string) (File, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = DefaultName
	}
	f, err := Builtin(ref)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, ErrUnknownBuiltin) {
		return File{}, err
	}
	return Load(ref)
}

// IsBuiltin reports whether ref names an embedded scenario.
func IsBuiltin(ref string) bool {
	for _, name := range BuiltinNames() {
		if name == ref {
			return true
		}
	}
	return false
}

// ToConfig converts a scenario into a replay configuration.
func ToConfig[T any](f File, clock replay.Clock, logger pslog.Logger) replay.Config[T] {
	steps := make([]replay.Step, len(f.Timeline))
	for i, spec := range f.Timeline {
		steps[i] = replay.Step{
			Delay: time.Duration(spec.Delay),
			Label: spec.Label,
			Patch: spec.Patch,
		}
	}
	return replay.Config[T]{
		ID:       f.ID,
		Initial:  f.Initial,
		Timeline: steps,
		Loop:     f.Loop,
		Clock:    clock,
		Logger:   logger,
	}
}

// normalizeMap rewrites nested map[any]any values, which yaml produces for
// mappings with non-string keys, into string-keyed maps.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeMap(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return v
	}
}
