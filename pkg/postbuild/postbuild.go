// Package postbuild runs the terminal actions of a build: archive, log flush
// and machine shutdown
package postbuild

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/ubbuilder/ubb/pkg/archive"
	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/types"
)

// Archiver writes a directory into a zip file
type Archiver interface {
	Archive(ctx context.Context, src, dest string, opts archive.Options) (archive.Stats, error)
}

// LogFlusher persists the session log
type LogFlusher interface {
	Flush() (string, error)
}

// ZipArchiver archives with pkg/archive
type ZipArchiver struct{}

// Archive implements Archiver
func (ZipArchiver) Archive(ctx context.Context, src, dest string, opts archive.Options) (archive.Stats, error) {
	return archive.Directory(ctx, src, dest, opts)
}

// FinalBuildPath derives the installed build directory from the automation
// tool location: Engine/Binaries/DotNET becomes LocalBuilds/Engine and the
// file name is dropped. Both separators are accepted.
func FinalBuildPath(automationTool string) string {
	if automationTool == "" {
		return ""
	}
	dir := path.Dir(path.Clean(strings.ReplaceAll(automationTool, `\`, "/")))

	const from, to = "/Engine/Binaries/DotNET", "/LocalBuilds/Engine"
	if i := strings.LastIndex(dir, from); i >= 0 {
		dir = dir[:i] + to + dir[i+len(from):]
	}
	return filepath.FromSlash(dir)
}

// PluginArchiveName is the zip file name used for a packaged plugin
func PluginArchiveName(job types.PluginJob) string {
	name := job.PluginName
	if job.EngineVersion != "" {
		name += "_" + job.EngineVersion
	}
	return name + ".zip"
}

// Result describes what the coordinator did
type Result struct {
	ArchivePath string
	Archive     archive.Stats
	LogPath     string
	Err         error
}

// Coordinator executes post-build actions
type Coordinator struct {
	archiver Archiver
	logs     LogFlusher
	logger   logger.Logger
}

// NewCoordinator creates a coordinator. A nil archiver uses ZipArchiver.
func NewCoordinator(archiver Archiver, logs LogFlusher, log logger.Logger) *Coordinator {
	if archiver == nil {
		archiver = ZipArchiver{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{archiver: archiver, logs: logs, logger: log}
}

// EngineBuildFinished archives the installed build on success when zipping is
// enabled, then flushes the session log. Failure only flushes.
func (c *Coordinator) EngineBuildFinished(ctx context.Context, success bool, automationTool string, opts types.PostBuildOptions) Result {
	var res Result

	if success && opts.ZipEnabled && opts.ZipPath != "" {
		src := FinalBuildPath(automationTool)
		c.logger.Info("Creating ZIP file", logger.WithField("source", src), logger.WithField("zip", opts.ZipPath))

		stats, err := c.archiver.Archive(ctx, src, opts.ZipPath, archive.Options{})
		if err != nil {
			res.Err = fmt.Errorf("archive engine build: %w", err)
		} else {
			res.ArchivePath = opts.ZipPath
			res.Archive = stats
		}
	}

	res.LogPath = c.flush()
	return res
}

// PluginPackaged zips a successfully packaged plugin when the job asks for it.
// Marketplace archives leave out Binaries and Intermediate.
func (c *Coordinator) PluginPackaged(ctx context.Context, job types.PluginJob, success bool) Result {
	var res Result
	if !success || !job.ZipRequested || job.ZipDestination == "" {
		return res
	}

	opts := archive.Options{}
	if job.ZipForMarketplace {
		opts.ExcludeTopLevel = archive.MarketplaceExcludes
	}

	dest := filepath.Join(job.ZipDestination, PluginArchiveName(job))
	stats, err := c.archiver.Archive(ctx, job.DestinationPath, dest, opts)
	if err != nil {
		res.Err = fmt.Errorf("archive plugin %s: %w", job.PluginName, err)
		return res
	}
	res.ArchivePath = dest
	res.Archive = stats
	return res
}

// FlushLog persists the session log
func (c *Coordinator) FlushLog() string {
	return c.flush()
}

func (c *Coordinator) flush() string {
	if c.logs == nil {
		return ""
	}
	logPath, err := c.logs.Flush()
	if err != nil {
		c.logger.Warn("Failed to write session log", logger.WithField("error", err))
		return ""
	}
	return logPath
}
