package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ubbuilder/ubb/internal/engine"
	"github.com/ubbuilder/ubb/pkg/config"
	"github.com/ubbuilder/ubb/pkg/types"
)

// engineFlags are per-invocation overrides of the engine settings
type engineFlags struct {
	root        string
	version     string
	clean       bool
	cont        bool
	zipPath     string
	skipIfBuilt bool
	shutdown    bool
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.root, "engine-root", "", "source engine root (overrides engine.root)")
	cmd.Flags().StringVar(&f.version, "engine-version", "", "engine version, e.g. 4.26 (detected when empty)")
	cmd.Flags().BoolVar(&f.clean, "clean", false, "clean before building")
	cmd.Flags().StringVar(&f.zipPath, "zip", "", "write the installed build to this .zip file")
	cmd.Flags().BoolVar(&f.skipIfBuilt, "skip-if-built", false, "skip the engine build when an installed build exists")
	cmd.Flags().BoolVar(&f.shutdown, "shutdown", false, "shut down the machine when the build finishes")
}

func (f *engineFlags) apply(cmd *cobra.Command, s *config.Settings) {
	flags := cmd.Flags()
	if flags.Changed("engine-root") {
		s.Engine.Root = f.root
		s.Engine.AutomationTool = ""
	}
	if flags.Changed("engine-version") {
		s.Engine.Version = f.version
	}
	if flags.Changed("clean") {
		s.Engine.Clean = f.clean
	}
	if flags.Changed("continue") {
		s.Engine.ContinueToEngineBuild = f.cont
	}
	if flags.Changed("zip") {
		s.PostBuild.ZipEnabled = f.zipPath != ""
		s.PostBuild.ZipPath = f.zipPath
	}
	if flags.Changed("skip-if-built") {
		s.PostBuild.SkipIfBuilt = f.skipIfBuilt
	}
	if flags.Changed("shutdown") {
		s.PostBuild.ShutdownOnFinish = f.shutdown
	}
}

// buildRequest snapshots the current settings with the flag overrides applied
func (c *CLI) buildRequest(cmd *cobra.Command, f *engineFlags) (types.BuildRequest, error) {
	s := *c.provider.Get()
	f.apply(cmd, &s)
	return requestFrom(&s)
}

// requestFrom reads the settings as they are now, so reloads apply to the next build
func requestFrom(s *config.Settings) (types.BuildRequest, error) {
	env, err := s.BuildEnv()
	if err != nil {
		return types.BuildRequest{}, err
	}
	req := s.BuildRequest()
	req.Env = env
	return req, nil
}

func (c *CLI) newSetupCmd() *cobra.Command {
	var flags engineFlags

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run Setup, GenerateProjectFiles and build AutomationTool",
		Long: `Prepare a source engine tree: download dependencies with Setup, generate
project files and compile AutomationTool. With --continue the installed engine
build runs afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := c.buildRequest(cmd, &flags)
			if err != nil {
				return err
			}
			return c.runToCompletion(cmd.Context(), "setup", func(o *engine.Orchestrator) error {
				return o.RunSetup(req)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.cont, "continue", false, "continue to the engine build after setup")
	return cmd
}

func (c *CLI) newEngineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Build an installed engine from source",
	}
	cmd.AddCommand(c.newEngineBuildCmd())
	cmd.AddCommand(c.newEngineCommandLineCmd())
	return cmd
}

func (c *CLI) newEngineBuildCmd() *cobra.Command {
	var flags engineFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the installed engine build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := c.buildRequest(cmd, &flags)
			if err != nil {
				return err
			}
			return c.runToCompletion(cmd.Context(), "engine", func(o *engine.Orchestrator) error {
				return o.BuildEngine(req)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func (c *CLI) newEngineCommandLineCmd() *cobra.Command {
	var flags engineFlags

	cmd := &cobra.Command{
		Use:   "commandline",
		Short: "Print the AutomationTool command line without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := c.buildRequest(cmd, &flags)
			if err != nil {
				return err
			}

			opts, err := engine.NewDependencyFactory(c.provider, c.logger).CreateWithOverrides(c.overrides)
			if err != nil {
				return err
			}
			line, err := engine.New(opts).EngineCommandLine(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.output, line)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// pluginFlags describe one plugin job
type pluginFlags struct {
	destination       string
	engineVersion     string
	engineRoot        string
	zipDir            string
	marketplace       bool
	altCompiler       bool
	platforms         []string
	manifestPlatforms bool
}

func (f *pluginFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.destination, "dest", "d", "", "package location")
	cmd.Flags().StringVarP(&f.engineVersion, "engine", "e", "", "installed engine version from plugins.engines, e.g. 4.26")
	cmd.Flags().StringVar(&f.engineRoot, "engine-root", "", "installed engine root (instead of --engine)")
	cmd.Flags().StringVar(&f.zipDir, "zip", "", "archive the packaged plugin into this directory")
	cmd.Flags().BoolVar(&f.marketplace, "marketplace", false, "leave Binaries and Intermediate out of the archive")
	cmd.Flags().BoolVar(&f.altCompiler, "vs2019", false, "build with the VS2019 compiler")
	cmd.Flags().StringSliceVar(&f.platforms, "platforms", nil, "target platforms, e.g. Win64,Android")
	cmd.Flags().BoolVar(&f.manifestPlatforms, "manifest-platforms", false, "use the whitelisted platforms of the plugin descriptor")
}

// job builds a plugin job for manifest, filling gaps from the settings
func (f *pluginFlags) job(cmd *cobra.Command, s *config.Settings, manifest string) (types.PluginJob, error) {
	root := f.engineRoot
	if root == "" {
		r, err := s.EngineRootFor(f.engineVersion)
		if err != nil {
			return types.PluginJob{}, err
		}
		root = r
	}

	job := types.PluginJob{
		ManifestPath:         manifest,
		DestinationPath:      f.destination,
		EngineRootPath:       root,
		EngineVersion:        f.engineVersion,
		UseAltCompiler:       s.Plugins.UseAltCompiler,
		TargetPlatforms:      f.platforms,
		UseManifestPlatforms: s.Plugins.UseManifestPlatforms,
		ZipRequested:         f.zipDir != "",
		ZipDestination:       f.zipDir,
		ZipForMarketplace:    s.Plugins.ZipForMarketplace,
	}

	flags := cmd.Flags()
	if flags.Changed("vs2019") {
		job.UseAltCompiler = f.altCompiler
	}
	if flags.Changed("manifest-platforms") {
		job.UseManifestPlatforms = f.manifestPlatforms
	}
	if flags.Changed("marketplace") {
		job.ZipForMarketplace = f.marketplace
	}
	return job, nil
}

func (c *CLI) newPluginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Package plugins against installed engines",
	}
	cmd.AddCommand(c.newPluginBuildCmd())
	return cmd
}

func (c *CLI) newPluginBuildCmd() *cobra.Command {
	var flags pluginFlags

	cmd := &cobra.Command{
		Use:   "build <plugin.uplugin>...",
		Short: "Queue plugins and package them one at a time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := c.provider.Get()
			jobs := make([]types.PluginJob, 0, len(args))
			for _, manifest := range args {
				job, err := flags.job(cmd, s, manifest)
				if err != nil {
					return err
				}
				jobs = append(jobs, job)
			}

			return c.runToCompletion(cmd.Context(), "plugins", func(o *engine.Orchestrator) error {
				for _, job := range jobs {
					if _, err := o.EnqueuePlugin(job); err != nil {
						return fmt.Errorf("%s: %w", job.ManifestPath, err)
					}
				}
				return o.StartPluginQueue()
			})
		},
	}

	flags.register(cmd)
	cmd.MarkFlagRequired("dest")
	return cmd
}
