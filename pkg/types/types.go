// Package types provides the core data model shared by the build orchestration packages
package types

import (
	"fmt"
	"time"
)

// StageState represents which external build stage is currently running
type StageState string

const (
	StageIdle                       StageState = "idle"
	StageRunningSetup               StageState = "running-setup"
	StageRunningProjectGen          StageState = "running-project-gen"
	StageRunningAutomationToolBuild StageState = "running-automation-tool-build"
	StageRunningEngineBuild         StageState = "running-engine-build"
	StageRunningPluginBuild         StageState = "running-plugin-build"
)

// DisplayName returns the human readable stage name used in logs
func (s StageState) DisplayName() string {
	switch s {
	case StageRunningSetup:
		return "Setup"
	case StageRunningProjectGen:
		return "GenerateProjectFiles"
	case StageRunningAutomationToolBuild:
		return "AutomationTool"
	case StageRunningEngineBuild:
		return "Engine"
	case StageRunningPluginBuild:
		return "Plugin"
	default:
		return "Idle"
	}
}

// Owner identifies which component launched a process
type Owner string

const (
	OwnerNone      Owner = ""
	OwnerSequencer Owner = "sequencer"
	OwnerPlugins   Owner = "plugins"
)

// Severity is the classification of a single log line
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityDebug   Severity = "debug"
)

// LogRecord is one classified line of output. Records are append-only.
type LogRecord struct {
	Text      string    `json:"text"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// BuildCounters holds progress counters for the current top-level run
type BuildCounters struct {
	Errors           int `json:"errors"`
	Warnings         int `json:"warnings"`
	CompiledThisStep int `json:"compiledThisStep"`
	CompiledTotal    int `json:"compiledTotal"`
	CurrentStep      int `json:"currentStep"`
	TotalSteps       int `json:"totalSteps"`
}

// String renders the counters the way the status line shows them
func (c BuildCounters) String() string {
	return fmt.Sprintf("Step: [%d/%d] [Compiled: %d. Total: %d] %d errors, %d warnings",
		c.CurrentStep, c.TotalSteps, c.CompiledThisStep, c.CompiledTotal, c.Errors, c.Warnings)
}

// JobStatus represents the lifecycle of a plugin job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// rank orders statuses so transitions can only move forward
func (s JobStatus) rank() int {
	switch s {
	case JobPending:
		return 0
	case JobRunning:
		return 1
	case JobSucceeded, JobFailed:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether a job may move from s to next
func (s JobStatus) CanAdvanceTo(next JobStatus) bool {
	return next.rank() == s.rank()+1
}

// IsTerminal reports whether the job has finished
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// PluginJob is one queued plugin packaging request
type PluginJob struct {
	ID                   string    `json:"id"`
	PluginName           string    `json:"pluginName"`
	ManifestPath         string    `json:"manifestPath"`
	DestinationPath      string    `json:"destinationPath"`
	EngineRootPath       string    `json:"engineRootPath"`
	EngineVersion        string    `json:"engineVersion,omitempty"`
	UseAltCompiler       bool      `json:"useAltCompiler"`
	TargetPlatforms      []string  `json:"targetPlatforms,omitempty"`
	UseManifestPlatforms bool      `json:"useManifestPlatforms,omitempty"`
	ZipRequested         bool      `json:"zipRequested"`
	ZipDestination       string    `json:"zipDestination,omitempty"`
	ZipForMarketplace    bool      `json:"zipForMarketplace"`
	Status               JobStatus `json:"status"`
}

// SetupOptions are the git dependency flags passed to Setup
type SetupOptions struct {
	All                 bool     `json:"all" yaml:"all" mapstructure:"all"`
	ExcludedPlatforms   []string `json:"excludedPlatforms" yaml:"excluded_platforms" mapstructure:"excluded_platforms"`
	Threads             int      `json:"threads" yaml:"threads" mapstructure:"threads"`
	MaxRetries          int      `json:"maxRetries" yaml:"max_retries" mapstructure:"max_retries"`
	EnableCache         bool     `json:"enableCache" yaml:"enable_cache" mapstructure:"enable_cache"`
	CachePath           string   `json:"cachePath,omitempty" yaml:"cache_path" mapstructure:"cache_path"`
	CacheSizeMultiplier float64  `json:"cacheSizeMultiplier" yaml:"cache_size_multiplier" mapstructure:"cache_size_multiplier"`
	CacheDays           int      `json:"cacheDays" yaml:"cache_days" mapstructure:"cache_days"`
	Proxy               string   `json:"proxy,omitempty" yaml:"proxy" mapstructure:"proxy"`
}

// PlatformOptions selects the target platforms of an installed build
type PlatformOptions struct {
	Win64        bool `json:"win64" yaml:"win64" mapstructure:"win64"`
	Win32        bool `json:"win32" yaml:"win32" mapstructure:"win32"`
	Mac          bool `json:"mac" yaml:"mac" mapstructure:"mac"`
	Android      bool `json:"android" yaml:"android" mapstructure:"android"`
	IOS          bool `json:"ios" yaml:"ios" mapstructure:"ios"`
	TVOS         bool `json:"tvos" yaml:"tvos" mapstructure:"tvos"`
	Linux        bool `json:"linux" yaml:"linux" mapstructure:"linux"`
	Lumin        bool `json:"lumin" yaml:"lumin" mapstructure:"lumin"`
	HTML5        bool `json:"html5" yaml:"html5" mapstructure:"html5"`
	Switch       bool `json:"switch" yaml:"switch" mapstructure:"switch"`
	PS4          bool `json:"ps4" yaml:"ps4" mapstructure:"ps4"`
	XboxOne      bool `json:"xboxOne" yaml:"xbox_one" mapstructure:"xbox_one"`
	LinuxAArch64 bool `json:"linuxAArch64" yaml:"linux_aarch64" mapstructure:"linux_aarch64"`
}

// PostBuildOptions controls archiving and shutdown after a build
type PostBuildOptions struct {
	ZipEnabled            bool   `json:"zipEnabled" yaml:"zip_enabled" mapstructure:"zip_enabled"`
	ZipPath               string `json:"zipPath,omitempty" yaml:"zip_path" mapstructure:"zip_path"`
	ShutdownOnFinish      bool   `json:"shutdownOnFinish" yaml:"shutdown_on_finish" mapstructure:"shutdown_on_finish"`
	ShutdownOnlyOnSuccess bool   `json:"shutdownOnlyOnSuccess" yaml:"shutdown_only_on_success" mapstructure:"shutdown_only_on_success"`
	SkipIfBuilt           bool   `json:"skipIfBuilt" yaml:"skip_if_built" mapstructure:"skip_if_built"`
}

// BuildRequest is an immutable snapshot of everything one build needs.
// It is passed by value; normalization returns a modified copy.
type BuildRequest struct {
	EngineRoot         string
	AutomationToolPath string
	EngineVersionIndex int

	WithDDC                 bool
	HostPlatformDDCOnly     bool
	SignExecutables         bool
	EnableSymStore          bool
	GameConfigurations      string
	WithFullDebugInfo       bool
	HostPlatformEditorOnly  bool
	AnalyticsOverride       string
	HostPlatformOnly        bool
	Platforms               PlatformOptions
	CompileDatasmithPlugins bool
	VS2019                  bool
	WithServer              bool
	WithClient              bool
	WithHoloLens            bool

	CustomBuildScript     string
	CustomOptions         string
	Clean                 bool
	ContinueToEngineBuild bool

	Setup     SetupOptions
	PostBuild PostBuildOptions
	Env       map[string]string
}

// Outcome describes how a top-level run ended
type Outcome struct {
	Owner     Owner
	Stage     StageState
	Success   bool
	Cancelled bool
	ExitCode  int
	Elapsed   time.Duration
	Counters  BuildCounters
	// Processed is the number of plugin jobs finished in a drained queue run
	Processed int
}
