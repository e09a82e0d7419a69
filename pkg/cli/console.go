package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/ubbuilder/ubb/pkg/config"
	"github.com/ubbuilder/ubb/pkg/types"
)

const consoleHelp = `Commands:
  setup                                  run Setup, GenerateProjectFiles and AutomationTool
  build                                  run the installed engine build
  commandline                            print the engine build command line
  add <uplugin> <dest> <engine> [zip]    queue a plugin for an engine version
  remove <id>                            remove a queued plugin
  queue                                  list queued plugins
  start                                  package the pending plugins
  cancel                                 cancel the running build
  status                                 show the current stage
  exit                                   leave the console`

func (c *CLI) newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive session that accepts commands while builds run",
		Long: `Start an interactive console. Builds run in the background while the
console keeps reading commands, so a running build can be inspected or
cancelled. Settings are reloaded when the config file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConsole(cmd.Context())
		},
	}
}

func (c *CLI) runConsole(ctx context.Context) error {
	s, err := c.startSession(ctx, "console", true)
	if err != nil {
		return err
	}
	defer s.close()

	go func() {
		for {
			select {
			case o := <-s.observer.finished:
				c.reportOutcome(o)
			case <-s.stopped:
				return
			}
		}
	}()

	c.printInfo("Type 'help' for commands")
	scanner := bufio.NewScanner(c.input)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			break
		}
		if err := c.dispatch(s, fields[0], fields[1:]); err != nil {
			c.printError(err.Error())
		}
	}
	return scanner.Err()
}

func (c *CLI) reportOutcome(o types.Outcome) {
	if err := outcomeError(o); err != nil {
		c.printWarning(err.Error())
		return
	}
	c.printSuccess(fmt.Sprintf("%s finished in %s", o.Stage.DisplayName(), o.Elapsed.Round(time.Second)))
}

func (c *CLI) dispatch(s *session, name string, args []string) error {
	switch name {
	case "help":
		fmt.Fprintln(c.output, consoleHelp)
		return nil
	case "setup", "build", "commandline":
		req, err := requestFrom(c.provider.Get())
		if err != nil {
			return err
		}
		switch name {
		case "setup":
			return s.orch.RunSetup(req)
		case "build":
			return s.orch.BuildEngine(req)
		}
		line, err := s.orch.EngineCommandLine(req)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.output, line)
		return nil
	case "add":
		return c.consoleAdd(s, args)
	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: remove <id>")
		}
		return s.orch.RemovePlugin(args[0])
	case "queue":
		snap, err := s.orch.Snapshot()
		if err != nil {
			return err
		}
		writeJobs(c.output, snap.Jobs)
		return nil
	case "start":
		return s.orch.StartPluginQueue()
	case "cancel":
		return s.orch.CancelCurrent()
	case "status":
		snap, err := s.orch.Snapshot()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.output, "%s (%s) %s\n", snap.State.DisplayName(), snap.Counters, snap.Elapsed.Round(time.Second))
		if snap.Archiving {
			fmt.Fprintln(c.output, "Archiving...")
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q, type 'help'", name)
	}
}

func (c *CLI) consoleAdd(s *session, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return fmt.Errorf("usage: add <uplugin> <dest> <engine> [zip]")
	}

	job, err := consoleJob(c.provider.Get(), args)
	if err != nil {
		return err
	}
	queued, err := s.orch.EnqueuePlugin(job)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "%s queued as %s\n", queued.PluginName, queued.ID)
	return nil
}

func consoleJob(s *config.Settings, args []string) (types.PluginJob, error) {
	root, err := s.EngineRootFor(args[2])
	if err != nil {
		return types.PluginJob{}, err
	}
	job := types.PluginJob{
		ManifestPath:         args[0],
		DestinationPath:      args[1],
		EngineRootPath:       root,
		EngineVersion:        args[2],
		UseAltCompiler:       s.Plugins.UseAltCompiler,
		UseManifestPlatforms: s.Plugins.UseManifestPlatforms,
		ZipForMarketplace:    s.Plugins.ZipForMarketplace,
	}
	if len(args) == 4 {
		job.ZipRequested = true
		job.ZipDestination = args[3]
	}
	return job, nil
}

func writeJobs(out io.Writer, jobs []types.PluginJob) {
	if len(jobs) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLUGIN\tENGINE\tSTATUS")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.ID, j.PluginName, j.EngineVersion, j.Status)
	}
	w.Flush()
}
