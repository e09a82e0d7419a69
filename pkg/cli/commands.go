package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ubbuilder/ubb/pkg/config"
	"github.com/ubbuilder/ubb/pkg/utils"
	"gopkg.in/yaml.v3"
)

func (c *CLI) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the ubb configuration file",
	}
	cmd.AddCommand(c.newConfigInitCmd())
	cmd.AddCommand(c.newConfigValidateCmd())
	cmd.AddCommand(c.newConfigShowCmd())
	return cmd
}

func (c *CLI) newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default configuration file",
		Long:        `Write a configuration file with every setting at its default value.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"settings": "skip"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.config.ConfigFile
			if path == "" {
				path = config.DefaultFileName + ".yaml"
			}
			if err := config.WriteDefault(path, force); err != nil {
				if !force {
					return fmt.Errorf("%w. Use --force to overwrite", err)
				}
				return err
			}
			c.printSuccess(fmt.Sprintf("Created %s", path))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")
	return cmd
}

func (c *CLI) newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long:  `Check that the configuration file loads and that configured paths exist.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate()
		},
	}
}

func (c *CLI) newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(c.provider.Get())
			if err != nil {
				return err
			}
			_, err = c.output.Write(data)
			return err
		},
	}
}

// runValidate reports problems that only show up once a build starts.
// Loading already rejected malformed settings.
func (c *CLI) runValidate() error {
	s := c.provider.Get()

	var problems, warnings []string

	if s.Engine.Root == "" {
		warnings = append(warnings, "engine.root is not set; setup and engine builds need --engine-root")
	} else if !utils.DirectoryExists(s.Engine.Root) {
		problems = append(problems, fmt.Sprintf("engine.root %q is not a directory", s.Engine.Root))
	}

	if s.PostBuild.ZipEnabled {
		zip := s.PostBuild.ZipPath
		switch {
		case zip == "":
			problems = append(problems, "post_build.zip_path is not set")
		case utils.DirectoryExists(zip):
			problems = append(problems, fmt.Sprintf("post_build.zip_path %q is a directory, not a .zip file", zip))
		case !utils.DirectoryExists(filepath.Dir(zip)):
			problems = append(problems, fmt.Sprintf("post_build.zip_path %q: %s is not a directory", zip, filepath.Dir(zip)))
		}
	}

	versions := make([]string, 0, len(s.Plugins.Engines))
	for v := range s.Plugins.Engines {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	for _, v := range versions {
		if root := s.Plugins.Engines[v]; !utils.DirectoryExists(root) {
			problems = append(problems, fmt.Sprintf("plugins.engines[%s] %q is not a directory", v, root))
		}
	}

	if s.EnvFile != "" {
		if _, err := config.LoadEnvFile(s.EnvFile); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		c.printError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(c.output, "  ✗ %s\n", p)
		}
	}
	if len(warnings) > 0 {
		c.printWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(c.output, "  ⚠ %s\n", w)
		}
	}

	if len(problems) == 0 {
		c.printSuccess("Configuration is valid")
		return nil
	}
	return fmt.Errorf("configuration has %d error(s)", len(problems))
}

func (c *CLI) newLogsCmd() *cobra.Command {
	var lines int
	var list bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent build log",
		Long:  `Display the tail of the most recent session log written after a build.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLogs(lines, list)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")
	cmd.Flags().BoolVar(&list, "list", false, "list all session logs instead")
	return cmd
}

func (c *CLI) runLogs(lines int, list bool) error {
	dir := c.provider.Get().Logging.SessionDir
	files, err := sessionLogs(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		c.printWarning("No logs found. Logs are written when a build finishes.")
		return nil
	}

	if list {
		for _, f := range files {
			fmt.Fprintln(c.output, f)
		}
		return nil
	}

	latest := files[len(files)-1]
	content, err := readLastNLines(latest, lines)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "=== %s ===\n", filepath.Base(latest))
	fmt.Fprint(c.output, content)
	return nil
}

// sessionLogs returns the session logs in dir, oldest first. The names
// embed a sortable timestamp.
func sessionLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "Build-") && filepath.Ext(entry.Name()) == ".log" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func readLastNLines(filename string, n int) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var all []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(all) == 0 {
		return "", nil
	}

	start := 0
	if n > 0 && len(all) > n {
		start = len(all) - n
	}
	return strings.Join(all[start:], "\n") + "\n", nil
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version number of ubb",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"settings": "skip"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "ubb v%s\n", c.config.Version)
		},
	}
}
