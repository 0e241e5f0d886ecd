// Package cli implements the cratewright command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cratewright/cratewright/pkg/buildinfo"
	"github.com/cratewright/cratewright/pkg/cache"
)

// appName is the application name used for directories and display.
const appName = "cratewright"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger. Each invocation is
// tagged with a short request id so concurrent or scripted runs can be told
// apart in aggregated log output. Output piped to a file or another process
// (as opposed to an interactive terminal) gets logfmt instead of the
// colorized text formatter, so downstream tools can parse it.
func New(w io.Writer, level log.Level) *CLI {
	formatter := log.TextFormatter
	if f, ok := w.(interface{ Fd() uintptr }); !ok || !isatty.IsTerminal(f.Fd()) {
		formatter = log.LogfmtFormatter
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
		Formatter:       formatter,
	})
	return &CLI{Logger: logger.With("req", uuid.NewString()[:8])}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "cratewright turns a Cargo workspace into a Nix build expression",
		Long:         `cratewright reads a Cargo workspace's manifests and lockfile, resolves features the way cargo itself would, and emits a default.nix built around nixpkgs' buildRustCrate.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.emitCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate shell completion script",
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.ExactValidArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return cmd.Root().GenPowerShellCompletion(os.Stdout)
			}
		},
	}
}

// newCache builds the cache backend shared by --enrich lookups and by
// emit's workspace-hash-keyed resolve caching: a file-based cache under
// the XDG cache dir, or a no-op cache when disabled.
func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/cratewright/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
