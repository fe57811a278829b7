package main

import (
	"errors"
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/BV-BRC/galaxy-admin/internal/aliases"
	"github.com/BV-BRC/galaxy-admin/internal/report"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

func (g *galaxyAdmin) newAddKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add_key ALIAS URL [API_KEY]",
		Short: "Store a Galaxy URL and API key under an alias",
		Long: `Store a Galaxy URL and API key under an alias.

Without API_KEY the key is fetched from the server using --username and
the password (prompted for if -P is not given).`,
		Args: cobra.RangeArgs(2, 3),
		RunE: g.runAddKey,
	}
}

func (g *galaxyAdmin) runAddKey(cmd *cobra.Command, args []string) error {
	alias, url := args[0], args[1]
	if _, err := g.store.Resolve(alias); err == nil {
		return &aliases.DuplicateAliasError{Alias: alias}
	}

	var apiKey string
	if len(args) == 3 {
		apiKey = args[2]
	} else {
		var err error
		if apiKey, err = g.fetchAPIKey(cmd, url); err != nil {
			return err
		}
	}

	// The URL is kept as typed; clients normalise it when connecting.
	if err := g.store.Add(alias, url, apiKey); err != nil {
		return err
	}
	logger.Infof("added alias %s for %s", alias, url)
	return nil
}

// fetchAPIKey logs in to url with the --username credentials and returns
// the account's API key.
func (g *galaxyAdmin) fetchAPIKey(cmd *cobra.Command, url string) (string, error) {
	opts := g.authOptions(cmd)
	if opts.Username == "" {
		return "", errors.New("supply an API key or --username to fetch one")
	}
	password := opts.Password
	if password == "" {
		var err error
		password, err = g.prompt(fmt.Sprintf("Password for %s: ", opts.Username))
		if err != nil {
			return "", err
		}
	}
	c, err := galaxy.Connect(cmd.Context(), galaxy.Config{
		URL:      url,
		Email:    opts.Username,
		Password: password,
		NoVerify: opts.NoVerify,
		Timeout:  opts.Timeout,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch API key from %s: %w", url, err)
	}
	return c.APIKey(), nil
}

func (g *galaxyAdmin) newListKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list_keys",
		Short: "List stored aliases",
		Args:  cobra.NoArgs,
		RunE:  g.runListKeys,
	}
	cmd.Flags().String("name", "", "Only list aliases matching this glob")
	cmd.Flags().BoolP("show-api-keys", "s", false, "Show the API keys")
	return cmd
}

func (g *galaxyAdmin) runListKeys(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	showKeys, _ := cmd.Flags().GetBool("show-api-keys")

	table := report.NewTable()
	for _, r := range g.store.List() {
		if name != "" {
			if ok, _ := path.Match(name, r.Alias); !ok {
				continue
			}
		}
		if showKeys {
			table.AddRow(r.Alias, r.URL, r.APIKey)
		} else {
			table.AddRow(r.Alias, r.URL)
		}
	}
	return table.Write(cmd.OutOrStdout())
}

func (g *galaxyAdmin) newUpdateKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update_key ALIAS",
		Short: "Change the URL or API key stored for an alias",
		Args:  cobra.ExactArgs(1),
		RunE:  g.runUpdateKey,
	}
	cmd.Flags().String("new-url", "", "New Galaxy URL")
	cmd.Flags().String("new-api-key", "", "New API key")
	cmd.Flags().Bool("fetch-api-key", false, "Fetch a new API key using --username")
	return cmd
}

func (g *galaxyAdmin) runUpdateKey(cmd *cobra.Command, args []string) error {
	alias := args[0]
	newURL, _ := cmd.Flags().GetString("new-url")
	newKey, _ := cmd.Flags().GetString("new-api-key")
	fetch, _ := cmd.Flags().GetBool("fetch-api-key")

	rec, err := g.store.Resolve(alias)
	if err != nil {
		return err
	}
	if fetch {
		if newKey != "" {
			return errors.New("--new-api-key and --fetch-api-key are mutually exclusive")
		}
		url := newURL
		if url == "" {
			url = rec.URL
		}
		if newKey, err = g.fetchAPIKey(cmd, url); err != nil {
			return err
		}
	}
	if newURL == "" && newKey == "" {
		return errors.New("nothing to update")
	}
	return g.store.Update(alias, newURL, newKey)
}

func (g *galaxyAdmin) newRemoveKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove_key ALIAS",
		Short: "Remove a stored alias",
		Args:  cobra.ExactArgs(1),
		RunE:  g.runRemoveKey,
	}
}

func (g *galaxyAdmin) runRemoveKey(cmd *cobra.Command, args []string) error {
	return g.store.Remove(args[0])
}
