package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/ubbuilder/ubb/pkg/process"
)

// Paths of the engine helper scripts relative to the engine root
var (
	setupScript     = "Setup"
	projectFiles    = "GenerateProjectFiles"
	runUATScript    = filepath.Join("Engine", "Build", "BatchFiles", "RunUAT")
	automationTool  = filepath.Join("Engine", "Binaries", "DotNET", "AutomationTool.exe")
	buildVersionRel = filepath.Join("Engine", "Build", "Build.version")
)

// SetupPath returns the dependency sync script of an engine source tree
func SetupPath(root string) string {
	return filepath.Join(root, setupScript+process.ScriptExtension)
}

// GenerateProjectFilesPath returns the project generation script
func GenerateProjectFilesPath(root string) string {
	return filepath.Join(root, projectFiles+process.ScriptExtension)
}

// RunUATPath returns the automation tool launcher script
func RunUATPath(root string) string {
	return filepath.Join(root, runUATScript+process.ScriptExtension)
}

// AutomationToolPath returns the compiled automation tool location
func AutomationToolPath(root string) string {
	return filepath.Join(root, automationTool)
}

// BuildVersion mirrors Engine/Build/Build.version
type BuildVersion struct {
	MajorVersion int    `json:"MajorVersion"`
	MinorVersion int    `json:"MinorVersion"`
	PatchVersion int    `json:"PatchVersion"`
	BranchName   string `json:"BranchName"`
}

// Semver returns the engine version as a semantic version
func (b BuildVersion) Semver() *semver.Version {
	return semver.New(uint64(b.MajorVersion), uint64(b.MinorVersion), uint64(b.PatchVersion), "", "")
}

// DetectEngineVersion reads the engine version of an installed or source engine
func DetectEngineVersion(root string) (*semver.Version, error) {
	data, err := os.ReadFile(filepath.Join(root, buildVersionRel))
	if err != nil {
		return nil, fmt.Errorf("read engine version: %w", err)
	}

	var bv BuildVersion
	if err := json.Unmarshal(data, &bv); err != nil {
		return nil, fmt.Errorf("parse engine version: %w", err)
	}
	if bv.MajorVersion == 0 {
		return nil, fmt.Errorf("engine version missing in %s", buildVersionRel)
	}
	return bv.Semver(), nil
}
