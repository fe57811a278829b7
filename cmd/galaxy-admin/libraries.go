package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BV-BRC/galaxy-admin/internal/libraries"
	"github.com/BV-BRC/galaxy-admin/internal/report"
	"github.com/BV-BRC/galaxy-admin/internal/units"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

func (g *galaxyAdmin) newListLibrariesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list_libraries GALAXY [PATH]",
		Short: "List data libraries, or the contents of a library folder",
		Long: `List data libraries, or the contents of a library folder.

PATH is LIBRARY[/FOLDER/...]; the last segment may be a glob.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: g.runListLibraries,
	}
	cmd.Flags().BoolP("long", "l", false, "Show more details")
	cmd.Flags().Bool("show_id", false, "Show library, folder and dataset IDs")
	return cmd
}

func (g *galaxyAdmin) runListLibraries(cmd *cobra.Command, args []string) error {
	long, _ := cmd.Flags().GetBool("long")
	showID, _ := cmd.Flags().GetBool("show_id")

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	table := report.NewTable()

	if len(args) == 1 {
		libs, err := c.ListLibraries(ctx, false)
		if err != nil {
			return fmt.Errorf("failed to list libraries: %w", err)
		}
		sort.SliceStable(libs, func(a, b int) bool { return strings.ToLower(libs[a].Name) < strings.ToLower(libs[b].Name) })
		for _, l := range libs {
			row := []interface{}{}
			if showID {
				row = append(row, l.ID)
			}
			row = append(row, l.Name, l.Description)
			if long {
				row = append(row, l.Synopsis, l.CreateTime)
			}
			table.AddRow(row...)
		}
		return table.Write(cmd.OutOrStdout())
	}

	items, err := libraries.List(ctx, c, args[1])
	if err != nil {
		return err
	}
	for _, item := range items {
		row := []interface{}{}
		if showID {
			row = append(row, item.ID)
		}
		name := item.Name
		if item.IsFolder() {
			name += "/"
		}
		row = append(row, name)
		if long {
			row = append(row, itemSize(item), item.FileExt, item.UpdateTime)
		}
		table.AddRow(row...)
	}
	return table.Write(cmd.OutOrStdout())
}

func itemSize(item galaxy.FolderItem) string {
	switch {
	case item.IsFolder():
		return ""
	case item.FileSize != "":
		return item.FileSize
	}
	return units.FormatSize(item.RawSize)
}

func (g *galaxyAdmin) newCreateLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create_library GALAXY NAME",
		Short: "Create a data library",
		Args:  cobra.ExactArgs(2),
		RunE:  g.runCreateLibrary,
	}
	cmd.Flags().String("description", "", "Library description")
	cmd.Flags().String("synopsis", "", "Library synopsis")
	return cmd
}

func (g *galaxyAdmin) runCreateLibrary(cmd *cobra.Command, args []string) error {
	name := args[1]
	description, _ := cmd.Flags().GetString("description")
	synopsis, _ := cmd.Flags().GetString("synopsis")

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if _, err := c.FindLibrary(ctx, name); err == nil {
		return fmt.Errorf("library '%s' already exists", name)
	}
	lib, err := c.CreateLibrary(ctx, name, description, synopsis)
	if err != nil {
		return fmt.Errorf("failed to create library '%s': %w", name, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), lib.ID)
	return nil
}

func (g *galaxyAdmin) newCreateLibraryFolderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create_library_folder GALAXY PATH",
		Short: "Create a folder in a data library",
		Long: `Create a folder in a data library.

PATH is LIBRARY/FOLDER/.../NEW_FOLDER. Every folder above the new one must
already exist.`,
		Args: cobra.ExactArgs(2),
		RunE: g.runCreateLibraryFolder,
	}
	cmd.Flags().String("description", "", "Folder description")
	return cmd
}

func (g *galaxyAdmin) runCreateLibraryFolder(cmd *cobra.Command, args []string) error {
	description, _ := cmd.Flags().GetString("description")

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	f, err := libraries.CreateFolder(cmd.Context(), c, args[1], description)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), f.ID)
	return nil
}

func (g *galaxyAdmin) newAddLibraryDatasetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add_library_datasets GALAXY DEST FILE...",
		Short: "Add datasets to a data library folder",
		Long: `Add datasets to a data library folder.

Local files are uploaded. With --server the files are paths on the Galaxy
server, which are copied into Galaxy or, with --link, linked in place.`,
		Args: cobra.MinimumNArgs(3),
		RunE: g.runAddLibraryDatasets,
	}
	cmd.Flags().String("file-type", "auto", "Galaxy datatype of the files")
	cmd.Flags().String("dbkey", "?", "Genome build of the files")
	cmd.Flags().Bool("server", false, "Files are paths on the Galaxy server")
	cmd.Flags().Bool("link", false, "Link server files instead of copying them (needs --server)")
	return cmd
}

func (g *galaxyAdmin) runAddLibraryDatasets(cmd *cobra.Command, args []string) error {
	fileType, _ := cmd.Flags().GetString("file-type")
	dbkey, _ := cmd.Flags().GetString("dbkey")
	server, _ := cmd.Flags().GetBool("server")
	link, _ := cmd.Flags().GetBool("link")
	if link && !server {
		return fmt.Errorf("--link can only be used with --server")
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	opts := galaxy.UploadOptions{FileType: fileType, DBKey: dbkey, LinkOnly: link}
	added, err := libraries.AddDatasets(cmd.Context(), c, args[1], args[2:], server, opts)
	for _, d := range added {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.ID, d.Name)
	}
	return err
}
