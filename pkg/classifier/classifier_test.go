package classifier_test

import (
	"fmt"
	"testing"

	"github.com/ubbuilder/ubb/pkg/classifier"
	"github.com/ubbuilder/ubb/pkg/types"
)

func TestClassify_Severity(t *testing.T) {
	c := classifier.Default()

	tests := []struct {
		name     string
		line     string
		severity types.Severity
		warnings bool
		errors   bool
	}{
		{"plain info", "Running AutomationTool...", types.SeverityInfo, false, false},
		{"warning lower case", "Foo.h(12): warning C4996: deprecated", types.SeverityWarning, true, false},
		{"warning upper case", "WARNING: low disk space", types.SeverityWarning, true, false},
		{"unable to determine", "*** Unable to determine module type for Foo", types.SeverityWarning, true, false},
		{"warning beats error", "ERROR: treated as warning", types.SeverityWarning, true, false},
		{"error upper case", "ERROR: Unable to compile", types.SeverityError, false, true},
		{"error mixed case", "Something went wrong: error loading", types.SeverityError, false, true},
		{"error unknown token", "Result: Error_Unknown", types.SeverityError, false, true},
		{"exited with code 1", "UnrealBuildTool exited with code 1", types.SeverityError, false, true},
		{"shadow error excluded", "LogShaders: ShadowError ERROR count", types.SeverityInfo, false, false},
		{"for ue4 debug", "Parsing headers * For UE4Editor", types.SeverityDebug, false, false},
		{"timestamp debug", "LogInit: * [1/2] Display", types.SeverityDebug, false, false},
		{"empty line", "", types.SeverityInfo, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Classify(tt.line, false)
			if res.Record.Severity != tt.severity {
				t.Errorf("severity = %s, want %s", res.Record.Severity, tt.severity)
			}
			if res.Instructions.IncrementWarnings != tt.warnings {
				t.Errorf("IncrementWarnings = %v, want %v", res.Instructions.IncrementWarnings, tt.warnings)
			}
			if res.Instructions.IncrementErrors != tt.errors {
				t.Errorf("IncrementErrors = %v, want %v", res.Instructions.IncrementErrors, tt.errors)
			}
			if res.Record.Text != tt.line {
				t.Errorf("text = %q, want %q", res.Record.Text, tt.line)
			}
		})
	}
}

func TestClassify_ErrorStreamBypassesPatterns(t *testing.T) {
	c := classifier.Default()

	res := c.Classify("****** [1/4] warning Foo.cpp", true)
	if res.Record.Severity != types.SeverityError {
		t.Fatalf("expected error severity, got %s", res.Record.Severity)
	}
	in := res.Instructions
	if !in.IncrementErrors {
		t.Error("expected a single error increment for stderr line")
	}
	if in.Step != nil || in.IncrementCompiled || in.IncrementWarnings || in.ResetStepCompiled {
		t.Errorf("expected no pattern instructions, got %+v", in)
	}
}

func TestClassifyOptional_Nil(t *testing.T) {
	c := classifier.Default()

	if _, ok := c.ClassifyOptional(nil, false); ok {
		t.Error("nil line must not produce a record")
	}

	line := "hello"
	res, ok := c.ClassifyOptional(&line, false)
	if !ok || res.Record.Text != "hello" {
		t.Errorf("expected record for non-nil line, got %+v ok=%v", res, ok)
	}
}

func TestCounters_StepMarker(t *testing.T) {
	c := classifier.Default()
	counters := types.BuildCounters{CompiledThisStep: 7, CompiledTotal: 7}

	res := c.Classify("****** [3/10] Compiling...", false)
	if res.Instructions.Step == nil {
		t.Fatal("expected step boundary")
	}
	classifier.Apply(&counters, res.Instructions)

	if counters.CurrentStep != 3 || counters.TotalSteps != 10 {
		t.Errorf("step = %d/%d, want 3/10", counters.CurrentStep, counters.TotalSteps)
	}
	if counters.CompiledThisStep != 0 {
		t.Errorf("per-step compiled = %d, want 0", counters.CompiledThisStep)
	}
	if counters.CompiledTotal != 7 {
		t.Errorf("total compiled must not reset, got %d", counters.CompiledTotal)
	}
}

func TestCounters_CompiledFiles(t *testing.T) {
	c := classifier.Default()
	counters := types.BuildCounters{}

	classifier.Apply(&counters, c.Classify("Foo.cpp", false).Instructions)
	if counters.CompiledThisStep != 1 || counters.CompiledTotal != 1 {
		t.Fatalf("after one file: %+v", counters)
	}

	classifier.Apply(&counters, c.Classify("****** [2/5] Building", false).Instructions)
	for i := 0; i < 10; i++ {
		classifier.Apply(&counters, c.Classify(fmt.Sprintf("Module.Core.%d.cpp", i), false).Instructions)
	}

	if counters.CompiledThisStep != 10 {
		t.Errorf("per-step = %d, want 10", counters.CompiledThisStep)
	}
	if counters.CompiledTotal != 11 {
		t.Errorf("total = %d, want 11", counters.CompiledTotal)
	}
}

func TestCounters_ExtensionsRecognized(t *testing.T) {
	c := classifier.Default()

	for _, ext := range []string{"cpp", "cc", "c", "h", "ispc", "CPP"} {
		line := "Module." + ext
		if !c.Classify(line, false).Instructions.IncrementCompiled {
			t.Errorf("expected %q to count as a compiled file", line)
		}
	}
	if c.Classify("readme.txt", false).Instructions.IncrementCompiled {
		t.Error("txt must not count as a compiled file")
	}
}

func TestCounters_ErrorIncrementsOnce(t *testing.T) {
	c := classifier.Default()
	counters := types.BuildCounters{}

	classifier.Apply(&counters, c.Classify("ERROR: link failed", false).Instructions)
	if counters.Errors != 1 {
		t.Errorf("errors = %d, want 1", counters.Errors)
	}

	classifier.Apply(&counters, c.Classify("ERROR: from stderr", true).Instructions)
	if counters.Errors != 2 {
		t.Errorf("errors = %d, want 2", counters.Errors)
	}
}

func TestNew_InvalidTable(t *testing.T) {
	tests := []struct {
		name  string
		table classifier.PatternTable
	}{
		{"bad regex", classifier.PatternTable{Version: "x", Warning: "("}},
		{"step without groups", classifier.PatternTable{Version: "x", Step: `\*{6}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := classifier.New(tt.table); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDefault_Version(t *testing.T) {
	if v := classifier.Default().Version(); v != "1" {
		t.Errorf("expected table version 1, got %s", v)
	}
}
