package cmdline

import (
	"strconv"
	"strings"

	"github.com/ubbuilder/ubb/pkg/types"
)

const (
	// DefaultBuildScript is the BuildGraph script used when no custom script is set
	DefaultBuildScript = "Engine/Build/InstalledEngineBuild.xml"

	// DefaultGameConfigurations is used when the request leaves configurations empty
	DefaultGameConfigurations = "Development;Shipping"

	installedBuildTarget = "Make Installed Build Win64"
)

// IsCustomScript reports whether the request overrides the default BuildGraph script
func IsCustomScript(req types.BuildRequest) bool {
	return req.CustomBuildScript != "" && req.CustomBuildScript != DefaultBuildScript
}

// EngineBuild builds the BuildGraph invocation for an installed engine build.
// Token order is fixed; BuildGraph receives it verbatim.
func EngineBuild(req types.BuildRequest) *Builder {
	b := New().
		Flag("BuildGraph").
		Quoted("-target", installedBuildTarget)

	custom := IsCustomScript(req)
	if custom {
		b.Quoted("-script", req.CustomBuildScript)
	} else {
		b.Value("-script", DefaultBuildScript)
	}

	configurations := req.GameConfigurations
	if configurations == "" {
		configurations = DefaultGameConfigurations
	}

	b.SetBool("WithDDC", req.WithDDC).
		SetBool("SignExecutables", req.SignExecutables).
		SetBool("EmbedSrcSrvInfo", req.EnableSymStore).
		Set("GameConfigurations", configurations).
		SetBool("WithFullDebugInfo", req.WithFullDebugInfo).
		SetBool("HostPlatformEditorOnly", req.HostPlatformEditorOnly).
		Set("AnalyticsTypeOverride", req.AnalyticsOverride)

	if req.WithDDC && req.HostPlatformDDCOnly {
		b.SetBool("HostPlatformDDCOnly", true)
	}

	index := req.EngineVersionIndex
	if req.HostPlatformOnly {
		b.SetBool("HostPlatformOnly", true)
	} else {
		p := req.Platforms
		b.SetBool("WithWin64", p.Win64).
			SetBool("WithWin32", p.Win32).
			SetBool("WithMac", p.Mac).
			SetBool("WithAndroid", p.Android).
			SetBool("WithIOS", p.IOS).
			SetBool("WithTVOS", p.TVOS).
			SetBool("WithLinux", p.Linux).
			SetBool("WithLumin", p.Lumin)

		if SupportsHTML5(index) {
			b.SetBool("WithHTML5", p.HTML5)
		}
		if SupportsConsoles(index) {
			b.SetBool("WithSwitch", p.Switch).
				SetBool("WithPS4", p.PS4).
				SetBool("WithXboxOne", p.XboxOne)
		}
		if SupportsLinuxAArch64(index) {
			b.SetBool("WithLinuxAArch64", p.LinuxAArch64)
		}
	}

	if SupportsDatasmith(index) {
		b.SetBool("CompileDatasmithPlugins", req.CompileDatasmithPlugins).
			SetBool("VS2019", req.VS2019)
	}

	if SupportsServerClient(index) {
		b.SetBool("WithServer", req.WithServer).
			SetBool("WithClient", req.WithClient).
			SetBool("WithHoloLens", req.WithHoloLens)
	}

	if custom {
		b.Raw(req.CustomOptions)
	}

	if req.Clean {
		b.Flag("-Clean")
	}

	return b
}

// Setup builds the Setup script arguments for git dependency syncing
func Setup(o types.SetupOptions) *Builder {
	b := New().Flag("--force")

	if o.All {
		b.Flag("--all")
	}
	for _, platform := range o.ExcludedPlatforms {
		b.Value("--exclude", platform)
	}

	b.Value("--threads", strconv.Itoa(o.Threads)).
		Value("--max-retries", strconv.Itoa(o.MaxRetries))

	if !o.EnableCache {
		b.Flag("--no-cache")
	} else if o.CachePath != "" {
		b.Value("--cache", strings.ReplaceAll(o.CachePath, "\\", "/")).
			Value("--cache-size-multiplier", strconv.FormatFloat(o.CacheSizeMultiplier, 'f', -1, 64)).
			Value("--cache-days", strconv.Itoa(o.CacheDays))
	}

	if o.Proxy != "" {
		b.Value("--proxy", o.Proxy)
	}

	return b
}

// AutomationToolCompile builds the RunUAT arguments that compile the automation tool only
func AutomationToolCompile() *Builder {
	return New().Flag("-compileonly")
}

// Plugin builds the UAT BuildPlugin invocation for one job
func Plugin(job types.PluginJob) *Builder {
	b := New().
		Flag("BuildPlugin").
		Quoted("-Plugin", job.ManifestPath).
		Quoted("-Package", job.DestinationPath).
		Flag("-Rocket")

	if job.UseAltCompiler {
		b.Flag("-VS2019")
	}
	if len(job.TargetPlatforms) > 0 {
		b.Value("-TargetPlatforms", strings.Join(job.TargetPlatforms, "+"))
	}

	return b
}
