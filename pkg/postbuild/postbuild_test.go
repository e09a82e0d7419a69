package postbuild_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ubbuilder/ubb/pkg/archive"
	"github.com/ubbuilder/ubb/pkg/postbuild"
	"github.com/ubbuilder/ubb/pkg/types"
)

type archiveCall struct {
	src, dest string
	opts      archive.Options
}

type fakeArchiver struct {
	calls []archiveCall
	err   error
}

func (f *fakeArchiver) Archive(_ context.Context, src, dest string, opts archive.Options) (archive.Stats, error) {
	f.calls = append(f.calls, archiveCall{src, dest, opts})
	return archive.Stats{Files: 3}, f.err
}

type fakeFlusher struct {
	flushes int
}

func (f *fakeFlusher) Flush() (string, error) {
	f.flushes++
	return "/logs/Build.log", nil
}

func TestFinalBuildPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "/UE/Engine/Binaries/DotNET/AutomationTool.exe",
			want: "/UE/LocalBuilds/Engine",
		},
		{
			in:   `C:\UE\Engine\Binaries\DotNET\AutomationTool.exe`,
			want: "C:/UE/LocalBuilds/Engine",
		},
		{
			in:   "/custom/tools/AutomationTool.exe",
			want: "/custom/tools",
		},
		{
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		got := filepath.ToSlash(postbuild.FinalBuildPath(tt.in))
		if got != tt.want {
			t.Errorf("FinalBuildPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEngineBuildFinished(t *testing.T) {
	tool := "/UE/Engine/Binaries/DotNET/AutomationTool.exe"
	zipOpts := types.PostBuildOptions{ZipEnabled: true, ZipPath: "/zips/UE.zip"}

	tests := []struct {
		name     string
		success  bool
		opts     types.PostBuildOptions
		archives int
	}{
		{"success with zip", true, zipOpts, 1},
		{"success without zip", true, types.PostBuildOptions{}, 0},
		{"failure with zip", false, zipOpts, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arch := &fakeArchiver{}
			logs := &fakeFlusher{}
			c := postbuild.NewCoordinator(arch, logs, nil)

			res := c.EngineBuildFinished(context.Background(), tt.success, tool, tt.opts)
			if len(arch.calls) != tt.archives {
				t.Fatalf("archives = %d, want %d", len(arch.calls), tt.archives)
			}
			if logs.flushes != 1 {
				t.Errorf("log must be flushed once, got %d", logs.flushes)
			}
			if res.LogPath != "/logs/Build.log" {
				t.Errorf("LogPath = %q", res.LogPath)
			}
			if tt.archives == 1 {
				if filepath.ToSlash(arch.calls[0].src) != "/UE/LocalBuilds/Engine" || arch.calls[0].dest != "/zips/UE.zip" {
					t.Errorf("unexpected archive call %+v", arch.calls[0])
				}
				if res.ArchivePath != "/zips/UE.zip" || res.Archive.Files != 3 {
					t.Errorf("unexpected result %+v", res)
				}
			}
		})
	}
}

func TestEngineBuildFinished_ArchiveError(t *testing.T) {
	arch := &fakeArchiver{err: errors.New("disk full")}
	logs := &fakeFlusher{}
	c := postbuild.NewCoordinator(arch, logs, nil)

	res := c.EngineBuildFinished(context.Background(), true, "/UE/Engine/Binaries/DotNET/AutomationTool.exe",
		types.PostBuildOptions{ZipEnabled: true, ZipPath: "/zips/UE.zip"})

	if res.Err == nil || !strings.Contains(res.Err.Error(), "disk full") {
		t.Errorf("expected archive error, got %v", res.Err)
	}
	if logs.flushes != 1 {
		t.Error("log must still be flushed")
	}
}

func TestPluginPackaged(t *testing.T) {
	job := types.PluginJob{
		PluginName:        "Foo",
		EngineVersion:     "4.26",
		DestinationPath:   "/out/Foo",
		ZipRequested:      true,
		ZipDestination:    "/zips",
		ZipForMarketplace: true,
	}

	arch := &fakeArchiver{}
	c := postbuild.NewCoordinator(arch, nil, nil)

	res := c.PluginPackaged(context.Background(), job, true)
	if res.Err != nil {
		t.Fatalf("PluginPackaged: %v", res.Err)
	}
	if len(arch.calls) != 1 {
		t.Fatalf("expected one archive call")
	}
	call := arch.calls[0]
	if filepath.ToSlash(call.dest) != "/zips/Foo_4.26.zip" || call.src != "/out/Foo" {
		t.Errorf("unexpected call %+v", call)
	}
	if strings.Join(call.opts.ExcludeTopLevel, ",") != "Binaries,Intermediate" {
		t.Errorf("marketplace excludes = %v", call.opts.ExcludeTopLevel)
	}

	job.ZipForMarketplace = false
	c.PluginPackaged(context.Background(), job, true)
	if len(arch.calls[1].opts.ExcludeTopLevel) != 0 {
		t.Error("full archive must not exclude folders")
	}

	c.PluginPackaged(context.Background(), job, false)
	job.ZipRequested = false
	c.PluginPackaged(context.Background(), job, true)
	if len(arch.calls) != 2 {
		t.Errorf("failed or unzipped jobs must not archive, calls = %d", len(arch.calls))
	}
}
