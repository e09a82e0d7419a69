package classifier

import (
	"strconv"
	"time"

	"github.com/ubbuilder/ubb/pkg/types"
)

// Step is a parsed "****** [current/total]" marker
type Step struct {
	Current int
	Total   int
}

// Instructions tell the consumer how to update its counters.
// The classifier never mutates counters itself.
type Instructions struct {
	Step              *Step
	ResetStepCompiled bool
	IncrementCompiled bool
	IncrementWarnings bool
	IncrementErrors   bool
}

// Result is the classification of one line
type Result struct {
	Record       types.LogRecord
	Instructions Instructions
}

// Classifier classifies lines against a compiled pattern table
type Classifier struct {
	table *compiledTable
	now   func() time.Time
}

// New compiles a pattern table into a classifier
func New(table PatternTable) (*Classifier, error) {
	ct, err := table.compile()
	if err != nil {
		return nil, err
	}
	return &Classifier{table: ct, now: time.Now}, nil
}

// Default returns a classifier for DefaultTable
func Default() *Classifier {
	c, err := New(DefaultTable())
	if err != nil {
		panic(err)
	}
	return c
}

// Version returns the pattern table version in use
func (c *Classifier) Version() string {
	return c.table.version
}

// ClassifyOptional is Classify for an optional line; a nil line yields no record
func (c *Classifier) ClassifyOptional(line *string, isError bool) (Result, bool) {
	if line == nil {
		return Result{}, false
	}
	return c.Classify(*line, isError), true
}

// Classify maps a raw line to a record and counter instructions.
// Lines from the error stream are forced to Error and skip pattern matching;
// they still instruct exactly one error increment.
func (c *Classifier) Classify(line string, isError bool) Result {
	res := Result{
		Record: types.LogRecord{
			Text:      line,
			Severity:  types.SeverityInfo,
			Timestamp: c.now(),
		},
	}

	if isError {
		res.Record.Severity = types.SeverityError
		res.Instructions.IncrementErrors = true
		return res
	}

	t := c.table

	if t.step != nil {
		if m := t.step.FindStringSubmatch(line); m != nil {
			current, _ := strconv.Atoi(m[1])
			total, _ := strconv.Atoi(m[2])
			res.Instructions.Step = &Step{Current: current, Total: total}
			res.Instructions.ResetStepCompiled = true
		}
	}

	if t.compiledFile != nil && t.compiledFile.MatchString(line) {
		res.Instructions.IncrementCompiled = true
	}

	switch {
	case t.warning != nil && t.warning.MatchString(line):
		res.Record.Severity = types.SeverityWarning
		res.Instructions.IncrementWarnings = true
	case t.errorPattern != nil && t.errorPattern.MatchString(line) && !c.excluded(line):
		res.Record.Severity = types.SeverityError
		res.Instructions.IncrementErrors = true
	case t.debug != nil && t.debug.MatchString(line):
		res.Record.Severity = types.SeverityDebug
	}

	return res
}

func (c *Classifier) excluded(line string) bool {
	return c.table.errorExclusion != nil && c.table.errorExclusion.MatchString(line)
}

// Apply updates counters according to instructions.
// Step boundaries are applied before file increments so a line that is both
// a step marker and a compiled file counts toward the new step.
func Apply(counters *types.BuildCounters, in Instructions) {
	if in.Step != nil {
		counters.CurrentStep = in.Step.Current
		counters.TotalSteps = in.Step.Total
	}
	if in.ResetStepCompiled {
		counters.CompiledThisStep = 0
	}
	if in.IncrementCompiled {
		counters.CompiledThisStep++
		counters.CompiledTotal++
	}
	if in.IncrementWarnings {
		counters.Warnings++
	}
	if in.IncrementErrors {
		counters.Errors++
	}
}
