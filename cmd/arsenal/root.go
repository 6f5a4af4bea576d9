package arsenal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/dispatch"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/modules/apachetrav"
	"github.com/arsenal-framework/arsenal/internal/modules/awsimds"
	"github.com/arsenal-framework/arsenal/internal/modules/awss3"
	"github.com/arsenal-framework/arsenal/internal/modules/dnsenum"
	"github.com/arsenal-framework/arsenal/internal/modules/grafana"
	"github.com/arsenal-framework/arsenal/internal/modules/hello"
	"github.com/arsenal-framework/arsenal/internal/modules/portscan"
	"github.com/arsenal-framework/arsenal/internal/modules/svcdetect"
	"github.com/arsenal-framework/arsenal/internal/modules/wordpress"
	"github.com/arsenal-framework/arsenal/internal/playbook"
	"github.com/arsenal-framework/arsenal/internal/registry"
	"github.com/arsenal-framework/arsenal/internal/render"
	"github.com/arsenal-framework/arsenal/internal/shell"
	"github.com/arsenal-framework/arsenal/internal/workspace"
	"github.com/arsenal-framework/arsenal/manifests"
	"github.com/arsenal-framework/arsenal/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "arsenal",
	Short: "Arsenal: modular security assessment toolkit",
	Long:  "Arsenal is a modular security assessment toolkit. Modules are addressed by dotted id or CVE identifier and run either one-shot from the CLI or from the interactive console.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	// Version is already prefixed with the binary name, so the flag
	// output matches the version subcommand exactly.
	rootCmd.Version = version.String()
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &dispatch.UsageError{Usage: fmt.Sprintf("%s (%s)", cmd.UseLine(), err)}
	})

	// Persistent flags (available to all subcommands).
	rootCmd.PersistentFlags().String("workspace", "./work", "Path to workspace root")
	rootCmd.PersistentFlags().String("manifests", "", "Module manifest directory (default: built-in)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Default operation timeout")

	// Bind flags to Viper.
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("manifests", rootCmd.PersistentFlags().Lookup("manifests"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	// Env support: ARSENAL_WORKSPACE, ARSENAL_LOG_LEVEL, etc.
	viper.SetEnvPrefix("ARSENAL")
	viper.AutomaticEnv()

	// Register subcommands.
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(playbookCmd)
	rootCmd.AddCommand(versionCmd)

	registerBuilders()
}

// registerBuilders wires every compiled-in module into the builder
// table under the ref its manifest entry names as module_path.
func registerBuilders() {
	modules.RegisterBuilder("grafana", grafana.New)
	modules.RegisterBuilder("apachetrav", apachetrav.New)
	modules.RegisterBuilder("awsimds", awsimds.New)
	modules.RegisterBuilder("awss3", awss3.New)
	modules.RegisterBuilder("portscan", portscan.New)
	modules.RegisterBuilder("svcdetect", svcdetect.New)
	modules.RegisterBuilder("dnsenum", dnsenum.New)
	modules.RegisterBuilder("wordpress", wordpress.New)
	modules.RegisterBuilder("hello", hello.New)
}

// usageArgs wraps a positional-args check so argument mistakes carry
// the misuse exit code instead of the generic failure code.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &dispatch.UsageError{Usage: fmt.Sprintf("%s (%s)", cmd.UseLine(), err)}
		}
		return nil
	}
}

// Helper to create app context
func createAppContext() (app.Context, error) {
	cfg := app.MustLoadConfigFromViper()
	ws, err := workspace.Ensure(cfg.Workspace)
	if err != nil {
		return app.Context{}, err
	}
	return app.Context{
		Ctx:       context.Background(),
		Config:    cfg,
		Workspace: ws,
		Logger:    app.NewLogger(cfg.LogLevel),
		Now:       time.Now(),
	}, nil
}

// createDispatcher builds the app context, loads the module registry,
// and wraps both in a dispatcher.
func createDispatcher() (*dispatch.Dispatcher, error) {
	appCtx, err := createAppContext()
	if err != nil {
		return nil, err
	}

	var fsys fs.FS = manifests.FS
	if dir := appCtx.Config.Manifests; dir != "" {
		fsys = os.DirFS(dir)
	}
	reg, err := registry.Load(fsys, appCtx.Logger)
	if err != nil {
		return nil, err
	}
	return dispatch.New(reg, appCtx), nil
}

// `init` subcommand to initialize/ensure workspace structure.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize workspace structure",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := app.MustLoadConfigFromViper()
		ws, err := workspace.Ensure(cfg.Workspace)
		if err != nil {
			return err
		}
		fmt.Printf("Workspace ready at: %s\n", ws.Root)
		return nil
	},
}

// `ls` subcommand: list registered modules, optionally under a prefix.
var lsCmd = &cobra.Command{
	Use:     "ls [prefix]",
	Aliases: []string{"list"},
	Short:   "List registered modules, optionally filtered by dotted prefix",
	Args:    usageArgs(cobra.MaximumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := createDispatcher()
		if err != nil {
			return err
		}
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		res, err := d.List(prefix)
		if err != nil {
			return err
		}
		fmt.Println(render.Result(res))
		if stats, _ := cmd.Flags().GetBool("stats"); stats {
			fmt.Println(render.StatsText(d.Reg.Stats()))
		}
		return nil
	},
}

func init() {
	lsCmd.Flags().Bool("stats", false, "Print registry statistics")
}

// `search` subcommand: substring search over module metadata.
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search modules by id, name, description, or CVE",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := createDispatcher()
		if err != nil {
			return err
		}
		res, err := d.Search(args[0])
		if err != nil {
			return err
		}
		fmt.Println(render.Result(res))
		return nil
	},
}

// `info` subcommand: registry statistics, or one module's metadata
// and options without running it.
var infoCmd = &cobra.Command{
	Use:   "info [module]",
	Short: "Show registry statistics, or a module's metadata and options",
	Args:  usageArgs(cobra.MaximumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := createDispatcher()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Println(render.StatsText(d.Reg.Stats()))
			return nil
		}
		res, err := d.RunOnce(args[0], nil, true)
		if err != nil {
			return err
		}
		fmt.Println(render.Result(res))
		return nil
	},
}

// `run` subcommand: one-shot module execution.
var runCmd = &cobra.Command{
	Use:   "run <module>",
	Short: "Run a module one-shot, addressed by id or CVE",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := createDispatcher()
		if err != nil {
			return err
		}
		pairs, _ := cmd.Flags().GetStringArray("set")
		infoOnly, _ := cmd.Flags().GetBool("info")

		res, err := d.RunOnce(args[0], pairs, infoOnly)
		if err != nil {
			return err
		}
		fmt.Println(render.Result(res))
		if res.Kind == dispatch.KindOutcome && !res.Outcome.Success {
			return fmt.Errorf("module reported no results")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringArray("set", nil, "Option assignment KEY=VALUE (repeatable)")
	runCmd.Flags().Bool("info", false, "Show module info instead of executing")
}

// `shell` subcommand: interactive console.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive console",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := createDispatcher()
		if err != nil {
			return err
		}
		return shell.Run(d)
	},
}

// `playbook` subcommand: run or list module sequences.
var playbookCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Execute or manage playbooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var playbookRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a playbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := createDispatcher()
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		file, _ := cmd.Flags().GetString("file")
		pairs, _ := cmd.Flags().GetStringArray("set")

		var pb *playbook.Playbook
		switch {
		case file != "":
			pb, err = playbook.Load(file)
			if err != nil {
				return err
			}
		case name != "":
			var ok bool
			pb, ok = playbook.GetPredefined(name)
			if !ok {
				return fmt.Errorf("unknown playbook: %s (available: %s)", name, strings.Join(playbook.ListPredefined(), ", "))
			}
		default:
			return fmt.Errorf("playbook name or file is required")
		}

		overrides := make(map[string]string, len(pairs))
		for _, pair := range pairs {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid option %q: use KEY=VALUE", pair)
			}
			overrides[key] = value
		}

		report, runErr := playbook.Run(d.App, d.Reg, pb, overrides)
		if report != nil {
			for _, step := range report.Steps {
				line := fmt.Sprintf("[%s] %s (%s)", step.Status, step.Name, step.Module)
				if step.Error != "" {
					line += ": " + step.Error
				}
				fmt.Println(line)
			}
			fmt.Printf("Playbook %s: %s\n", report.Playbook, report.Status)
			if report.ReportPath != "" {
				fmt.Printf("Report: %s\n", report.ReportPath)
			}
		}
		return runErr
	},
}

var playbookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available predefined playbooks",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Available playbooks:")
		for _, name := range playbook.ListPredefined() {
			if pb, ok := playbook.GetPredefined(name); ok {
				fmt.Printf("  %s - %s\n", name, pb.Description)
			}
		}
	},
}

func init() {
	playbookRunCmd.Flags().String("name", "", "Predefined playbook name")
	playbookRunCmd.Flags().String("file", "", "Path to playbook YAML file")
	playbookRunCmd.Flags().StringArray("set", nil, "Option override KEY=VALUE applied to every step (repeatable)")

	playbookCmd.AddCommand(playbookRunCmd)
	playbookCmd.AddCommand(playbookListCmd)
}

// `version` subcommand.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes misuse (2) from runtime failure (1).
func exitCode(err error) int {
	var usageErr *dispatch.UsageError
	var unknownErr *dispatch.UnknownCommandError
	if errors.As(err, &usageErr) || errors.As(err, &unknownErr) {
		return 2
	}
	return 1
}
