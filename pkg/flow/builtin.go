package flow

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed scenarios/*.yaml
var builtinFS embed.FS

// DefaultScenario is the built-in scenario run when no file is given.
const DefaultScenario = "barcamp-brno-2018"

// BuiltinPrefix marks SourcePath of embedded scenarios.
const BuiltinPrefix = "builtin:"

// Builtin parses an embedded scenario by name.
func Builtin(name string) (*Flow, error) {
	data, err := builtinFS.ReadFile(path.Join("scenarios", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown built-in scenario %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return Parse(data, BuiltinPrefix+name)
}

// BuiltinNames lists the embedded scenarios.
func BuiltinNames() []string {
	entries, err := builtinFS.ReadDir("scenarios")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Load resolves a scenario reference: a "builtin:<name>" reference, a file path,
// or "" for the default scenario.
func Load(ref string) (*Flow, error) {
	switch {
	case ref == "":
		return Builtin(DefaultScenario)
	case strings.HasPrefix(ref, BuiltinPrefix):
		return Builtin(strings.TrimPrefix(ref, BuiltinPrefix))
	}
	return ParseFile(ref)
}
