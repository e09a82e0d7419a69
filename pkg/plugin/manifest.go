// Package plugin reads Unreal plugin descriptors and locates engine tools
package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestExtension is the plugin descriptor file extension
const ManifestExtension = ".uplugin"

// Module is one entry of a descriptor's Modules array
type Module struct {
	Name               string   `json:"Name"`
	Type               string   `json:"Type"`
	LoadingPhase       string   `json:"LoadingPhase,omitempty"`
	WhitelistPlatforms []string `json:"WhitelistPlatforms,omitempty"`
}

// Manifest is the subset of a .uplugin descriptor the builder needs
type Manifest struct {
	FriendlyName  string   `json:"FriendlyName"`
	VersionName   string   `json:"VersionName"`
	EngineVersion string   `json:"EngineVersion,omitempty"`
	Modules       []Module `json:"Modules"`

	path string
}

// ReadManifest parses the descriptor at path
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plugin descriptor: %w", err)
	}

	// Descriptors saved by the editor may carry a UTF-8 BOM
	data = []byte(strings.TrimPrefix(string(data), "\ufeff"))

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse plugin descriptor %s: %w", path, err)
	}
	m.path = path
	return &m, nil
}

// Name is the plugin name, which is the descriptor file name without extension
func (m *Manifest) Name() string {
	return NameFromPath(m.path)
}

// DisplayName prefers the friendly name and falls back to Name
func (m *Manifest) DisplayName() string {
	if m.FriendlyName != "" {
		return m.FriendlyName
	}
	return m.Name()
}

// WhitelistPlatforms returns the first module's platform whitelist, or nil
func (m *Manifest) WhitelistPlatforms() []string {
	if len(m.Modules) == 0 || len(m.Modules[0].WhitelistPlatforms) == 0 {
		return nil
	}
	out := make([]string, len(m.Modules[0].WhitelistPlatforms))
	copy(out, m.Modules[0].WhitelistPlatforms)
	return out
}

// NameFromPath returns the plugin name for a descriptor path
func NameFromPath(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsPackaged reports whether destination already holds a packaged copy of
// the named plugin
func IsPackaged(destination, name string) bool {
	info, err := os.Stat(filepath.Join(destination, name+ManifestExtension))
	return err == nil && !info.IsDir()
}
