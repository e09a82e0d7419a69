// Package config loads builder settings with viper and turns them into
// immutable build request snapshots
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/ubbuilder/ubb/pkg/cmdline"
	"github.com/ubbuilder/ubb/pkg/plugin"
	"github.com/ubbuilder/ubb/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	// CurrentVersion is the settings schema version
	CurrentVersion = "1"

	// EnvPrefix prefixes environment overrides, e.g. UBB_ENGINE_ROOT
	EnvPrefix = "UBB"

	// DefaultFileName is the settings file looked up when none is given
	DefaultFileName = "ubb"

	// Engine versions such as "4.26" are map keys, so dots cannot separate key paths
	keyDelimiter = "::"
)

// Settings is the full builder configuration
type Settings struct {
	Version       string                 `yaml:"version" mapstructure:"version"`
	Engine        EngineSettings         `yaml:"engine" mapstructure:"engine"`
	Setup         types.SetupOptions     `yaml:"setup" mapstructure:"setup"`
	PostBuild     types.PostBuildOptions `yaml:"post_build" mapstructure:"post_build"`
	Plugins       PluginSettings         `yaml:"plugins" mapstructure:"plugins"`
	Logging       LoggingSettings        `yaml:"logging" mapstructure:"logging"`
	Notifications NotificationSettings   `yaml:"notifications" mapstructure:"notifications"`
	Metrics       MetricsSettings        `yaml:"metrics" mapstructure:"metrics"`
	// EnvFile is a dotenv file merged into the environment of every build process
	EnvFile string `yaml:"env_file" mapstructure:"env_file"`
}

// EngineSettings configures source engine builds
type EngineSettings struct {
	Root                    string                `yaml:"root" mapstructure:"root"`
	AutomationTool          string                `yaml:"automation_tool" mapstructure:"automation_tool"`
	Version                 string                `yaml:"version" mapstructure:"version"`
	CustomBuildScript       string                `yaml:"custom_build_script" mapstructure:"custom_build_script"`
	CustomOptions           string                `yaml:"custom_options" mapstructure:"custom_options"`
	GameConfigurations      string                `yaml:"game_configurations" mapstructure:"game_configurations"`
	AnalyticsOverride       string                `yaml:"analytics_override" mapstructure:"analytics_override"`
	ContinueToEngineBuild   bool                  `yaml:"continue_to_engine_build" mapstructure:"continue_to_engine_build"`
	Clean                   bool                  `yaml:"clean" mapstructure:"clean"`
	WithDDC                 bool                  `yaml:"with_ddc" mapstructure:"with_ddc"`
	HostPlatformDDCOnly     bool                  `yaml:"host_platform_ddc_only" mapstructure:"host_platform_ddc_only"`
	SignExecutables         bool                  `yaml:"sign_executables" mapstructure:"sign_executables"`
	EnableSymStore          bool                  `yaml:"enable_symstore" mapstructure:"enable_symstore"`
	WithFullDebugInfo       bool                  `yaml:"with_full_debug_info" mapstructure:"with_full_debug_info"`
	HostPlatformEditorOnly  bool                  `yaml:"host_platform_editor_only" mapstructure:"host_platform_editor_only"`
	HostPlatformOnly        bool                  `yaml:"host_platform_only" mapstructure:"host_platform_only"`
	Platforms               types.PlatformOptions `yaml:"platforms" mapstructure:"platforms"`
	CompileDatasmithPlugins bool                  `yaml:"compile_datasmith_plugins" mapstructure:"compile_datasmith_plugins"`
	VS2019                  bool                  `yaml:"vs2019" mapstructure:"vs2019"`
	WithServer              bool                  `yaml:"with_server" mapstructure:"with_server"`
	WithClient              bool                  `yaml:"with_client" mapstructure:"with_client"`
	WithHoloLens            bool                  `yaml:"with_hololens" mapstructure:"with_hololens"`
}

// PluginSettings configures plugin packaging
type PluginSettings struct {
	// Engines maps an engine version ("4.26") to an installed engine root
	Engines              map[string]string `yaml:"engines" mapstructure:"engines"`
	UseAltCompiler       bool              `yaml:"use_alt_compiler" mapstructure:"use_alt_compiler"`
	UseManifestPlatforms bool              `yaml:"use_manifest_platforms" mapstructure:"use_manifest_platforms"`
	ZipForMarketplace    bool              `yaml:"zip_for_marketplace" mapstructure:"zip_for_marketplace"`
}

// LoggingSettings configures console and session logs
type LoggingSettings struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file" mapstructure:"file"`
	SessionDir string `yaml:"session_dir" mapstructure:"session_dir"`
}

// NotificationSettings configures desktop toasts
type NotificationSettings struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Sound   bool `yaml:"sound" mapstructure:"sound"`
}

// MetricsSettings configures the Prometheus textfile export
type MetricsSettings struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// Default returns the settings used when nothing is configured
func Default() *Settings {
	return &Settings{
		Version: CurrentVersion,
		Engine: EngineSettings{
			GameConfigurations:    cmdline.DefaultGameConfigurations,
			ContinueToEngineBuild: true,
			WithDDC:               true,
			Platforms:             types.PlatformOptions{Win64: true},
		},
		Setup: types.SetupOptions{
			Threads:             8,
			MaxRetries:          5,
			CacheSizeMultiplier: 2,
			CacheDays:           7,
		},
		Plugins: PluginSettings{
			Engines:           map[string]string{},
			ZipForMarketplace: true,
		},
		Logging: LoggingSettings{
			Level:      "info",
			SessionDir: defaultSessionDir(),
		},
		Notifications: NotificationSettings{Enabled: true},
	}
}

func defaultSessionDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ubb", "logs")
	}
	return filepath.Join(".ubb", "logs")
}

// Load reads settings from path, or from ubb.{yaml,json,toml} in the working
// directory when path is empty. Environment variables prefixed with UBB_
// override file values, e.g. UBB_ENGINE_ROOT or UBB_SETUP_THREADS.
func Load(path string) (*Settings, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	if err := setDefaults(v, Default()); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if s.Plugins.Engines == nil {
		s.Plugins.Engines = map[string]string{}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// setDefaults registers every leaf of def so environment overrides apply to it
func setDefaults(v *viper.Viper, def *Settings) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("decode defaults: %w", err)
	}
	walkDefaults(v, "", tree)
	return nil
}

func walkDefaults(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for key, value := range tree {
		full := key
		if prefix != "" {
			full = prefix + keyDelimiter + key
		}
		if sub, ok := value.(map[string]interface{}); ok && len(sub) > 0 {
			walkDefaults(v, full, sub)
			continue
		}
		v.SetDefault(full, value)
	}
}

// Validate checks settings that cannot be corrected later
func (s *Settings) Validate() error {
	if s.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %s", s.Version)
	}
	if s.Setup.Threads <= 0 {
		return types.NewValidationError("setup.threads", "must be positive, got %d", s.Setup.Threads)
	}
	if s.Setup.MaxRetries < 0 {
		return types.NewValidationError("setup.max_retries", "must not be negative, got %d", s.Setup.MaxRetries)
	}
	switch strings.ToLower(s.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return types.NewValidationError("logging.level", "unknown level %q", s.Logging.Level)
	}
	return nil
}

// BuildRequest snapshots the engine settings into an immutable request.
// An empty engine version is detected from the engine tree; an unknown
// version leaves the index at 0, which BuildEngine rejects.
func (s *Settings) BuildRequest() types.BuildRequest {
	e := s.Engine

	index := 0
	version := e.Version
	if version == "" && e.Root != "" {
		if v, err := plugin.DetectEngineVersion(e.Root); err == nil {
			version = fmt.Sprintf("%d.%d", v.Major(), v.Minor())
		}
	}
	if version != "" {
		if i, err := cmdline.VersionIndex(version); err == nil {
			index = i
		}
	}

	tool := e.AutomationTool
	if tool == "" && e.Root != "" {
		tool = plugin.AutomationToolPath(e.Root)
	}

	excluded := append([]string(nil), s.Setup.ExcludedPlatforms...)
	setup := s.Setup
	setup.ExcludedPlatforms = excluded

	return types.BuildRequest{
		EngineRoot:              e.Root,
		AutomationToolPath:      tool,
		EngineVersionIndex:      index,
		WithDDC:                 e.WithDDC,
		HostPlatformDDCOnly:     e.HostPlatformDDCOnly,
		SignExecutables:         e.SignExecutables,
		EnableSymStore:          e.EnableSymStore,
		GameConfigurations:      e.GameConfigurations,
		WithFullDebugInfo:       e.WithFullDebugInfo,
		HostPlatformEditorOnly:  e.HostPlatformEditorOnly,
		AnalyticsOverride:       e.AnalyticsOverride,
		HostPlatformOnly:        e.HostPlatformOnly,
		Platforms:               e.Platforms,
		CompileDatasmithPlugins: e.CompileDatasmithPlugins,
		VS2019:                  e.VS2019,
		WithServer:              e.WithServer,
		WithClient:              e.WithClient,
		WithHoloLens:            e.WithHoloLens,
		CustomBuildScript:       e.CustomBuildScript,
		CustomOptions:           e.CustomOptions,
		Clean:                   e.Clean,
		ContinueToEngineBuild:   e.ContinueToEngineBuild,
		Setup:                   setup,
		PostBuild:               s.PostBuild,
	}
}

// EngineRootFor returns the engine root configured for a plugin engine version
func (s *Settings) EngineRootFor(version string) (string, error) {
	if root, ok := s.Plugins.Engines[version]; ok && root != "" {
		return root, nil
	}
	return "", types.NewValidationError("engine", "no engine configured for version %q", version)
}

// WriteDefault writes the default settings as YAML. An existing file is only
// replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
