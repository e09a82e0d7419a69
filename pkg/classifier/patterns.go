// Package classifier maps raw build tool output lines to structured log records
package classifier

import (
	"fmt"
	"regexp"
)

// PatternTable is the versioned set of expressions used to classify output.
// All expressions are compiled case-insensitively and matched as substrings.
type PatternTable struct {
	Version string `json:"version" yaml:"version"`

	// Step captures current and total step numbers in groups 1 and 2
	Step         string `json:"step" yaml:"step"`
	CompiledFile string `json:"compiledFile" yaml:"compiledFile"`
	Warning      string `json:"warning" yaml:"warning"`
	Error        string `json:"error" yaml:"error"`
	// ErrorExclusion suppresses an Error match when present in the line
	ErrorExclusion string `json:"errorExclusion" yaml:"errorExclusion"`
	Debug          string `json:"debug" yaml:"debug"`
}

// DefaultTable returns the patterns matching UnrealBuildTool and UAT output
func DefaultTable() PatternTable {
	return PatternTable{
		Version:        "1",
		Step:           `\*{6} \[(\d+)/(\d+)\]`,
		CompiledFile:   `\w.+\.(cpp|cc|c|h|ispc)`,
		Warning:        `warning|\*\*\* Unable to determine `,
		Error:          `Error_Unknown|ERROR|exited with code 1`,
		ErrorExclusion: regexp.QuoteMeta("ShadowError"),
		Debug:          `.+\*\s\D\d\D\d\D\s\w+|.+\*\sFor\sUE4`,
	}
}

type compiledTable struct {
	version        string
	step           *regexp.Regexp
	compiledFile   *regexp.Regexp
	warning        *regexp.Regexp
	errorPattern   *regexp.Regexp
	errorExclusion *regexp.Regexp
	debug          *regexp.Regexp
}

func (t PatternTable) compile() (*compiledTable, error) {
	ct := &compiledTable{version: t.Version}

	entries := []struct {
		name    string
		pattern string
		dst     **regexp.Regexp
	}{
		{"step", t.Step, &ct.step},
		{"compiledFile", t.CompiledFile, &ct.compiledFile},
		{"warning", t.Warning, &ct.warning},
		{"error", t.Error, &ct.errorPattern},
		{"errorExclusion", t.ErrorExclusion, &ct.errorExclusion},
		{"debug", t.Debug, &ct.debug},
	}

	for _, e := range entries {
		if e.pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + e.pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %s (table v%s): %w", e.name, t.Version, err)
		}
		*e.dst = re
	}

	if ct.step != nil && ct.step.NumSubexp() < 2 {
		return nil, fmt.Errorf("pattern step (table v%s) must capture current and total", t.Version)
	}

	return ct, nil
}
