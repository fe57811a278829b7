// galaxy-admin manages users, data libraries, tools and quotas on Galaxy
// servers from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/loggo"
	"github.com/spf13/cobra"

	"github.com/BV-BRC/galaxy-admin/internal/aliases"
	"github.com/BV-BRC/galaxy-admin/internal/config"
	"github.com/BV-BRC/galaxy-admin/internal/logging"
	"github.com/BV-BRC/galaxy-admin/internal/tools"
	"github.com/BV-BRC/galaxy-admin/pkg/auth"
)

var logger = loggo.GetLogger("galaxy-admin")

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitTimeout     = 2
	exitInterrupted = 130
)

// galaxyAdmin holds what the commands of one invocation share. cfg and
// store are set by setup before any command runs.
type galaxyAdmin struct {
	cfg    *config.Config
	store  *aliases.Store
	prompt auth.PasswordFunc
	clock  clock.Clock
}

func newGalaxyAdmin() *galaxyAdmin {
	return &galaxyAdmin{
		cfg:    &config.Config{},
		prompt: auth.TerminalPassword,
		clock:  clock.WallClock,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newGalaxyAdmin(), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, g *galaxyAdmin, args []string, stdout, stderr io.Writer) int {
	rootCmd := g.newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(ctx, err)
}

func exitCode(ctx context.Context, err error) int {
	var timeout *tools.TimeoutError
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return exitInterrupted
	case errors.As(err, &timeout):
		return exitTimeout
	}
	return exitFailure
}

func (g *galaxyAdmin) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "galaxy-admin",
		Short: "Galaxy server administration",
		Long: `Manage users, data libraries, tool repositories and quotas on Galaxy servers.

Servers are referred to by an alias stored with add_key, or by URL.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: g.setup,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("api_key", "k", "", "API key to use instead of the stored one")
	flags.StringP("username", "u", "", "Email of the account to log in as (password is prompted for)")
	flags.StringP("galaxy_password", "P", "", "Password to use with --username")
	flags.BoolP("no-verify", "n", false, "Don't verify HTTPS certificates")
	flags.BoolP("suppress-warnings", "q", false, "Don't print warnings")
	flags.Bool("debug", false, "Print debugging output")
	flags.String("config", "", "Configuration file")

	// Keys and servers
	rootCmd.AddCommand(g.newAddKeyCmd())
	rootCmd.AddCommand(g.newListKeysCmd())
	rootCmd.AddCommand(g.newUpdateKeyCmd())
	rootCmd.AddCommand(g.newRemoveKeyCmd())
	rootCmd.AddCommand(g.newPingCmd())
	rootCmd.AddCommand(g.newWhoamiCmd())
	rootCmd.AddCommand(g.newConfigCmd())

	// Users
	rootCmd.AddCommand(g.newListUsersCmd())
	rootCmd.AddCommand(g.newCreateUserCmd())
	rootCmd.AddCommand(g.newCreateBatchUsersCmd())
	rootCmd.AddCommand(g.newCreateUsersFromFileCmd())
	rootCmd.AddCommand(g.newDeleteUserCmd())

	// Data libraries
	rootCmd.AddCommand(g.newListLibrariesCmd())
	rootCmd.AddCommand(g.newCreateLibraryCmd())
	rootCmd.AddCommand(g.newCreateLibraryFolderCmd())
	rootCmd.AddCommand(g.newAddLibraryDatasetsCmd())

	// Tools
	rootCmd.AddCommand(g.newListToolsCmd())
	rootCmd.AddCommand(g.newListToolPanelCmd())
	rootCmd.AddCommand(g.newInstallToolCmd())
	rootCmd.AddCommand(g.newUpdateToolCmd())
	rootCmd.AddCommand(g.newUninstallToolCmd())
	rootCmd.AddCommand(g.newSearchToolshedCmd())

	// Quotas
	rootCmd.AddCommand(g.newQuotaCmd())
	rootCmd.AddCommand(g.newQuotaAddCmd())
	rootCmd.AddCommand(g.newQuotaModCmd())
	rootCmd.AddCommand(g.newQuotaDelCmd())

	return rootCmd
}

// setup configures logging, loads the configuration and opens the alias
// store.
func (g *galaxyAdmin) setup(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	quiet, _ := cmd.Flags().GetBool("suppress-warnings")
	if err := logging.Setup(cmd.ErrOrStderr(), logging.Level(debug, quiet)); err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	g.cfg = loaded
	logger.Debugf("using alias file %s", g.cfg.KeysFile)

	store, err := aliases.Open(g.cfg.KeysFile)
	if err != nil {
		return err
	}
	g.store = store
	return nil
}
