// Package flow handles parsing and representation of browser scenario files.
//
// A scenario file holds an optional config document followed by a list of steps:
//
//	name: Barcamp Brno
//	env:
//	  BASE_URL: http://www.barcampbrno.cz
//	---
//	- openUrl: ${BASE_URL}/2018/index.html
//	- assertTitle: Barcamp Brno 2018
package flow

// Flow represents a parsed scenario.
type Flow struct {
	SourcePath string // Path to the source file, or "builtin:<name>"
	Config     Config // Scenario configuration
	Steps      []Step // Steps to execute, in order
}

// Config represents scenario-level configuration.
type Config struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Tags        []string          `yaml:"tags"`
	Env         map[string]string `yaml:"env"`
}

// Aliases returns the element aliases defined by findElement steps, in order.
func (f *Flow) Aliases() []string {
	var out []string
	for _, s := range f.Steps {
		if fe, ok := s.(*FindElementStep); ok {
			out = append(out, fe.Alias())
		}
	}
	return out
}
