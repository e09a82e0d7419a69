package plugin_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ubbuilder/ubb/pkg/plugin"
)

const descriptor = "\ufeff" + `{
	"FileVersion": 3,
	"VersionName": "1.2",
	"FriendlyName": "Awesome Tools",
	"Modules": [
		{
			"Name": "AwesomeTools",
			"Type": "Runtime",
			"LoadingPhase": "Default",
			"WhitelistPlatforms": ["Win64", "Linux"]
		},
		{
			"Name": "AwesomeToolsEditor",
			"Type": "Editor",
			"WhitelistPlatforms": ["Mac"]
		}
	]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AwesomeTools.uplugin")
	writeFile(t, path, descriptor)

	m, err := plugin.ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}

	if m.Name() != "AwesomeTools" {
		t.Errorf("Name = %q", m.Name())
	}
	if m.DisplayName() != "Awesome Tools" {
		t.Errorf("DisplayName = %q", m.DisplayName())
	}
	if got := m.WhitelistPlatforms(); !reflect.DeepEqual(got, []string{"Win64", "Linux"}) {
		t.Errorf("WhitelistPlatforms = %v", got)
	}
}

func TestReadManifest_NoWhitelist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Bare.uplugin")
	writeFile(t, path, `{"Modules":[{"Name":"Bare","Type":"Runtime"}]}`)

	m, err := plugin.ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.WhitelistPlatforms() != nil {
		t.Error("expected nil whitelist")
	}
	if m.DisplayName() != "Bare" {
		t.Errorf("DisplayName fallback = %q", m.DisplayName())
	}
}

func TestReadManifest_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := plugin.ReadManifest(filepath.Join(dir, "missing.uplugin")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "Bad.uplugin")
	writeFile(t, bad, "{not json")
	if _, err := plugin.ReadManifest(bad); err == nil || !strings.Contains(err.Error(), "parse plugin descriptor") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestNameFromPath(t *testing.T) {
	tests := map[string]string{
		`C:\Plugins\Foo\Foo.uplugin`: "Foo",
		"/src/Bar/Bar.uplugin":       "Bar",
		"Baz.uplugin":                "Baz",
	}
	for in, want := range tests {
		if got := plugin.NameFromPath(in); got != want {
			t.Errorf("NameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsPackaged(t *testing.T) {
	dest := t.TempDir()
	if plugin.IsPackaged(dest, "Foo") {
		t.Error("empty destination must not be packaged")
	}
	writeFile(t, filepath.Join(dest, "Foo.uplugin"), "{}")
	if !plugin.IsPackaged(dest, "Foo") {
		t.Error("expected packaged plugin")
	}
}

func TestDetectEngineVersion(t *testing.T) {
	root := t.TempDir()
	if _, err := plugin.DetectEngineVersion(root); err == nil {
		t.Error("expected error without Build.version")
	}

	writeFile(t, filepath.Join(root, "Engine", "Build", "Build.version"),
		`{"MajorVersion": 4, "MinorVersion": 26, "PatchVersion": 2, "BranchName": "++UE4+Release-4.26"}`)

	v, err := plugin.DetectEngineVersion(root)
	if err != nil {
		t.Fatalf("DetectEngineVersion: %v", err)
	}
	if v.String() != "4.26.2" {
		t.Errorf("version = %s", v)
	}
}

func TestScriptPaths(t *testing.T) {
	root := filepath.Join("engine", "root")
	if !strings.HasPrefix(plugin.RunUATPath(root), filepath.Join(root, "Engine", "Build", "BatchFiles", "RunUAT")) {
		t.Errorf("RunUATPath = %s", plugin.RunUATPath(root))
	}
	if filepath.Dir(plugin.SetupPath(root)) != root {
		t.Errorf("SetupPath = %s", plugin.SetupPath(root))
	}
	if filepath.Base(plugin.AutomationToolPath(root)) != "AutomationTool.exe" {
		t.Errorf("AutomationToolPath = %s", plugin.AutomationToolPath(root))
	}
}
