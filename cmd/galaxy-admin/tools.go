package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BV-BRC/galaxy-admin/internal/report"
	"github.com/BV-BRC/galaxy-admin/internal/tools"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// searchPageSize is the number of toolshed search hits fetched.
const searchPageSize = 1000

func (g *galaxyAdmin) newListToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list_tools GALAXY",
		Short: "List installed tool repositories or tools",
		Long: `List installed tool repositories or tools.

In repos mode each installed revision is tagged:
  *  the newest revision available in the toolshed
  ^  a newer revision is also installed
  u  a newer revision with the same tool versions is available
  U  a newer revision with new tool versions is available
  D  the repository is deprecated

In export mode the repositories are written in the tab-separated format
read by install_tool --file.`,
		Args: cobra.ExactArgs(1),
		RunE: g.runListTools,
	}
	cmd.Flags().String("mode", "repos", "What to list: repos, tools or export")
	cmd.Flags().String("name", "", "Only list repositories (or tools) whose names match this glob")
	cmd.Flags().String("owner", "", "Only list repositories whose owners match this glob")
	cmd.Flags().String("toolshed", "", "Only list repositories from toolsheds matching this glob")
	cmd.Flags().Bool("updateable", false, "Only list repositories with an update or upgrade available")
	cmd.Flags().Bool("check-toolshed", false, "Ask the toolshed about updates instead of trusting Galaxy")
	cmd.Flags().Bool("built-in", false, "Also list tools not installed from a toolshed (tools mode)")
	return cmd
}

func filterReference(cmd *cobra.Command) tools.Reference {
	name, _ := cmd.Flags().GetString("name")
	owner, _ := cmd.Flags().GetString("owner")
	toolshed, _ := cmd.Flags().GetString("toolshed")
	return tools.Reference{Toolshed: toolshed, Owner: owner, Name: name}
}

func (g *galaxyAdmin) runListTools(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetString("mode")
	updateable, _ := cmd.Flags().GetBool("updateable")
	checkShed, _ := cmd.Flags().GetBool("check-toolshed")
	builtin, _ := cmd.Flags().GetBool("built-in")
	switch mode {
	case "repos", "tools", "export":
	default:
		return fmt.Errorf("unknown mode '%s'", mode)
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	e := g.newEngine(cmd, c)
	ctx := cmd.Context()
	ref := filterReference(cmd)
	out := cmd.OutOrStdout()

	switch mode {
	case "tools":
		entries, err := e.Tools(ctx, ref, builtin)
		if err != nil {
			return err
		}
		writeTools(out, entries)
		return nil
	case "export":
		entries, err := e.Export(ctx, ref)
		if err != nil {
			return err
		}
		return tools.WriteBulk(out, entries)
	}

	var checker *tools.Checker
	if checkShed {
		checker = tools.NewChecker(e.Sheds)
	}
	statuses, err := e.Statuses(ctx, ref, checker, updateable)
	if err != nil {
		return err
	}
	table := report.NewTable()
	for _, s := range statuses {
		r := s.Repository
		row := []interface{}{s.Status.String(), r.Name, tools.ToolshedHost(r.ToolShed), r.Owner, r.RevisionID(), r.Status}
		if r.Status == "Error" && r.ErrorMessage != "" {
			row = append(row, r.ErrorMessage)
		}
		table.AddRow(row...)
	}
	if err := table.Write(out); err != nil {
		return err
	}
	fmt.Fprintf(out, "total %d\n", len(statuses))
	return nil
}

func writeTools(w io.Writer, entries []tools.ToolEntry) {
	table := report.NewTable()
	for _, e := range entries {
		section := e.Tool.PanelSectionName
		if e.Repository == nil {
			table.AddRow(e.Tool.Name, e.Tool.Version, section, "", "", "", "")
			continue
		}
		r := e.Repository
		table.AddRow(e.Tool.Name, e.Tool.Version, section, tools.ToolshedHost(r.ToolShed), r.Owner, r.Name, r.RevisionID())
	}
	if err := table.Write(w); err != nil {
		logger.Errorf("failed to write tools: %v", err)
	}
}

func (g *galaxyAdmin) newListToolPanelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list_tool_panel GALAXY",
		Short: "List the sections of the tool panel",
		Args:  cobra.ExactArgs(1),
		RunE:  g.runListToolPanel,
	}
	cmd.Flags().String("name", "", "Only list sections whose names match this glob")
	cmd.Flags().Bool("list-tools", false, "List the tools in each section")
	return cmd
}

func (g *galaxyAdmin) runListToolPanel(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	listTools, _ := cmd.Flags().GetBool("list-tools")

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	panel, err := c.ToolPanel(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get tool panel: %w", err)
	}

	out := cmd.OutOrStdout()
	table := report.NewTable()
	for _, s := range tools.Sections(panel) {
		label := s.Name
		if label == "" {
			label = "(top level)"
		}
		if name != "" {
			if ok, _ := path.Match(name, s.Name); !ok {
				continue
			}
		}
		table.AddRow(s.ID, label, fmt.Sprintf("%d tools", len(s.Tools)))
		if listTools {
			for _, t := range s.Tools {
				table.AddRow("", "- "+t.Name, t.ID, t.Version)
			}
		}
	}
	return table.Write(out)
}

// installFlags adds the flags shared by install_tool and update_tool.
func installFlags(cmd *cobra.Command) {
	cmd.Flags().String("tool-panel-section", "", "Tool panel section id or name (created if it doesn't exist)")
	cmd.Flags().String("install-tool-dependencies", "yes", "Install tool dependencies (yes or no)")
	cmd.Flags().String("install-repository-dependencies", "yes", "Install repository dependencies (yes or no)")
	cmd.Flags().String("install-resolver-dependencies", "yes", "Install dependencies through resolvers (yes or no)")
	cmd.Flags().Var(newSecondsValue(0), "timeout", "Seconds (or a duration such as 10m) to wait for each install to finish (default from configuration)")
	cmd.Flags().Bool("no-wait", false, "Don't wait for installs to finish")
}

func yesNo(cmd *cobra.Command, flag string) (bool, error) {
	v, _ := cmd.Flags().GetString(flag)
	switch strings.ToLower(v) {
	case "yes", "y", "true":
		return true, nil
	case "no", "n", "false":
		return false, nil
	}
	return false, fmt.Errorf("--%s must be yes or no, not '%s'", flag, v)
}

func (g *galaxyAdmin) installOptions(cmd *cobra.Command) (tools.InstallOptions, error) {
	var opts tools.InstallOptions
	var err error
	opts.Section, _ = cmd.Flags().GetString("tool-panel-section")
	if opts.ToolDependencies, err = yesNo(cmd, "install-tool-dependencies"); err != nil {
		return opts, err
	}
	if opts.RepositoryDependencies, err = yesNo(cmd, "install-repository-dependencies"); err != nil {
		return opts, err
	}
	if opts.ResolverDependencies, err = yesNo(cmd, "install-resolver-dependencies"); err != nil {
		return opts, err
	}
	return opts, nil
}

// installEngine builds an engine honouring --timeout and --no-wait. Each
// change in an install's status is printed as it is seen.
func (g *galaxyAdmin) installEngine(cmd *cobra.Command, c *galaxy.Client) *tools.Engine {
	e := g.newEngine(cmd, c)
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		e.Timeout = timeout
	}
	e.NoWait, _ = cmd.Flags().GetBool("no-wait")

	out := cmd.OutOrStdout()
	last := map[string]string{}
	e.Progress = func(ref tools.Reference, status string) {
		key := ref.String()
		if last[key] == status {
			return
		}
		last[key] = status
		fmt.Fprintf(out, "- %s: %s\n", key, status)
	}
	return e
}

func writeOutcomes(w io.Writer, outcomes []tools.Outcome) {
	table := report.NewTable()
	for _, o := range outcomes {
		table.AddRow(o.Ref.String(), o.Result.String(), o.Message)
	}
	if err := table.Write(w); err != nil {
		logger.Errorf("failed to write results: %v", err)
	}
}

func (g *galaxyAdmin) newInstallToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install_tool GALAXY [TOOLSHED] OWNER NAME [REVISION]",
		Short: "Install a tool repository from a toolshed",
		Long: `Install a tool repository from a toolshed.

The repository can be given as separate arguments, as OWNER/NAME[/REVISION]
or as a toolshed URL such as https://toolshed.g2.bx.psu.edu/view/OWNER/NAME.
Without a revision the newest installable revision is installed.

With --file every repository listed in a tab-separated file (as written by
list_tools --mode=export) is installed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: g.runInstallTool,
	}
	installFlags(cmd)
	cmd.Flags().String("file", "", "Install the repositories listed in this file")
	return cmd
}

func (g *galaxyAdmin) runInstallTool(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	opts, err := g.installOptions(cmd)
	if err != nil {
		return err
	}

	var entries []tools.BulkEntry
	switch {
	case file != "" && len(args) > 1:
		return errors.New("give either --file or a repository, not both")
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		entries, err = tools.ReadBulk(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	case len(args) < 2:
		return errors.New("no repository given")
	default:
		ref, err := tools.ParseReference(args[1:], g.defaultShed())
		if err != nil {
			return err
		}
		if ref.IsPattern() {
			return &tools.ParseError{Input: ref.String(), Reason: "wildcards are not allowed when installing"}
		}
		entries = []tools.BulkEntry{{Reference: ref, Section: opts.Section}}
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	e := g.installEngine(cmd, c)
	ctx := cmd.Context()

	var outcomes []tools.Outcome
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		o := opts
		if entry.Section != "" {
			o.Section = entry.Section
		}
		outcomes = append(outcomes, e.Install(ctx, entry.Reference, o))
	}
	writeOutcomes(cmd.OutOrStdout(), outcomes)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return tools.Collect(outcomes)
}

func (g *galaxyAdmin) newUpdateToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update_tool GALAXY [TOOLSHED] OWNER NAME",
		Short: "Install the newest revision of installed tool repositories",
		Long: `Install the newest revision of installed tool repositories.

OWNER and NAME may be globs, for example "devteam '*'" updates every
repository owned by devteam. The new revision goes into the tool panel
section the existing tools are in.`,
		Args: cobra.MinimumNArgs(2),
		RunE: g.runUpdateTool,
	}
	installFlags(cmd)
	cmd.Flags().Bool("check-toolshed", false, "Ask the toolshed for updates instead of trusting Galaxy")
	return cmd
}

func (g *galaxyAdmin) runUpdateTool(cmd *cobra.Command, args []string) error {
	checkShed, _ := cmd.Flags().GetBool("check-toolshed")
	opts, err := g.installOptions(cmd)
	if err != nil {
		return err
	}
	ref, err := tools.ParseReference(args[1:], g.defaultShed())
	if err != nil {
		return err
	}
	if ref.Revision != "" {
		return &tools.ParseError{Input: strings.Join(args[1:], " "), Reason: "a revision can't be given when updating"}
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	e := g.installEngine(cmd, c)
	ctx := cmd.Context()
	outcomes, err := e.Update(ctx, ref, tools.UpdateOptions{InstallOptions: opts, CheckToolshed: checkShed})
	if err != nil {
		return err
	}
	writeOutcomes(cmd.OutOrStdout(), outcomes)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return tools.Collect(outcomes)
}

func (g *galaxyAdmin) newUninstallToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall_tool GALAXY [TOOLSHED] OWNER NAME",
		Short: "Deactivate or remove an installed tool repository",
		Long: `Deactivate or remove an installed tool repository.

When several revisions are installed pick one with --revision, or use
--revision='*' for all of them.`,
		Args: cobra.MinimumNArgs(2),
		RunE: g.runUninstallTool,
	}
	cmd.Flags().String("revision", "", "Revision to uninstall ('*' for all)")
	cmd.Flags().Bool("remove_from_disk", false, "Remove the repository files instead of only deactivating")
	return cmd
}

func (g *galaxyAdmin) runUninstallTool(cmd *cobra.Command, args []string) error {
	revision, _ := cmd.Flags().GetString("revision")
	remove, _ := cmd.Flags().GetBool("remove_from_disk")

	ref, err := tools.ParseReference(args[1:], g.defaultShed())
	if err != nil {
		return err
	}
	if revision != "" {
		if ref.Revision != "" && ref.Revision != revision {
			return fmt.Errorf("revision given twice: %s and %s", ref.Revision, revision)
		}
		ref.Revision = revision
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	outcomes, err := g.newEngine(cmd, c).Uninstall(cmd.Context(), ref, remove)
	if err != nil {
		return err
	}
	writeOutcomes(cmd.OutOrStdout(), outcomes)
	return tools.Collect(outcomes)
}

func (g *galaxyAdmin) newSearchToolshedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search_toolshed QUERY",
		Short: "Search a toolshed for repositories",
		Args:  cobra.ExactArgs(1),
		RunE:  g.runSearchToolshed,
	}
	cmd.Flags().String("toolshed", "main", "Toolshed to search: main, test or a URL")
	cmd.Flags().String("galaxy", "", "Mark repositories installed on this Galaxy with '*'")
	cmd.Flags().BoolP("long", "l", false, "Show repository descriptions")
	return cmd
}

func (g *galaxyAdmin) runSearchToolshed(cmd *cobra.Command, args []string) error {
	toolshed, _ := cmd.Flags().GetString("toolshed")
	target, _ := cmd.Flags().GetString("galaxy")
	long, _ := cmd.Flags().GetBool("long")
	ctx := cmd.Context()

	shed := g.newToolshed(cmd, toolshed)
	hits, err := shed.Search(ctx, args[0], searchPageSize)
	if err != nil {
		return fmt.Errorf("failed to search %s: %w", shed.URL(), err)
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Name != hits[b].Name {
			return hits[a].Name < hits[b].Name
		}
		return hits[a].Owner < hits[b].Owner
	})

	installed := map[string]bool{}
	if target != "" {
		c, err := g.getClient(cmd, target)
		if err != nil {
			return err
		}
		repos, err := c.ListRepositories(ctx)
		if err != nil {
			return fmt.Errorf("failed to list repositories: %w", err)
		}
		host := tools.ToolshedHost(shed.URL())
		for _, r := range repos {
			if !r.Deleted && tools.ToolshedHost(r.ToolShed) == host {
				installed[r.Owner+"/"+r.Name] = true
			}
		}
	}

	out := cmd.OutOrStdout()
	table := report.NewTable()
	for _, h := range hits {
		mark := " "
		if installed[h.Owner+"/"+h.Name] {
			mark = "*"
		}
		row := []interface{}{mark, h.Name, h.Owner}
		if long {
			row = append(row, h.Description)
		}
		table.AddRow(row...)
	}
	if err := table.Write(out); err != nil {
		return err
	}
	noun := "repositories"
	if len(hits) == 1 {
		noun = "repository"
	}
	fmt.Fprintf(out, "%d %s found\n", len(hits), noun)
	return nil
}
