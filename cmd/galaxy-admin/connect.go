package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/BV-BRC/galaxy-admin/internal/tools"
	"github.com/BV-BRC/galaxy-admin/pkg/auth"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

func (g *galaxyAdmin) authOptions(cmd *cobra.Command) auth.Options {
	apiKey, _ := cmd.Flags().GetString("api_key")
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("galaxy_password")
	noVerify, _ := cmd.Flags().GetBool("no-verify")
	return auth.Options{
		APIKey:   apiKey,
		Username: username,
		Password: password,
		NoVerify: noVerify,
		Timeout:  g.cfg.HTTP.Timeout,
	}
}

// getClient connects to the server named by target, an alias or a URL.
func (g *galaxyAdmin) getClient(cmd *cobra.Command, target string) (*galaxy.Client, error) {
	return auth.Connect(cmd.Context(), g.store, target, g.authOptions(cmd), g.prompt)
}

// shedURL maps "main", "test", a configured host or any other host to a
// toolshed URL.
func (g *galaxyAdmin) shedURL(toolshed string) string {
	switch strings.ToLower(toolshed) {
	case "", "main":
		return g.cfg.Toolshed.Main
	case "test":
		return g.cfg.Toolshed.Test
	}
	host := tools.ToolshedHost(toolshed)
	for _, known := range []string{g.cfg.Toolshed.Main, g.cfg.Toolshed.Test} {
		if known != "" && tools.ToolshedHost(known) == host {
			return known
		}
	}
	return tools.NormaliseToolshedURL(toolshed)
}

// defaultShed is the toolshed host used when a reference names none.
func (g *galaxyAdmin) defaultShed() string {
	if g.cfg.Toolshed.Main == "" {
		return tools.DefaultToolshed
	}
	return tools.ToolshedHost(g.cfg.Toolshed.Main)
}

func (g *galaxyAdmin) newToolshed(cmd *cobra.Command, toolshed string) *galaxy.Toolshed {
	noVerify, _ := cmd.Flags().GetBool("no-verify")
	return galaxy.NewToolshed(g.shedURL(toolshed), g.cfg.HTTP.Timeout, noVerify)
}

func (g *galaxyAdmin) shedFunc(cmd *cobra.Command) tools.ShedFunc {
	sheds := map[string]*galaxy.Toolshed{}
	return func(toolshed string) tools.Toolshed {
		if s, ok := sheds[toolshed]; ok {
			return s
		}
		s := g.newToolshed(cmd, toolshed)
		sheds[toolshed] = s
		return s
	}
}

// newEngine builds a lifecycle engine for c with configured timings.
func (g *galaxyAdmin) newEngine(cmd *cobra.Command, c *galaxy.Client) *tools.Engine {
	e := tools.NewEngine(c, g.shedFunc(cmd))
	e.Clock = g.clock
	if g.cfg.Tools.PollInterval > 0 {
		e.PollInterval = g.cfg.Tools.PollInterval
	}
	if g.cfg.Tools.Timeout > 0 {
		e.Timeout = g.cfg.Tools.Timeout
	}
	return e
}
