package main

import (
	"github.com/spf13/cobra"

	"github.com/BV-BRC/galaxy-admin/internal/quotas"
)

func (g *galaxyAdmin) newQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota GALAXY",
		Short: "List quotas",
		Args:  cobra.ExactArgs(1),
		RunE:  g.runQuota,
	}
	cmd.Flags().String("name", "", "Only list quotas whose names match this glob")
	cmd.Flags().String("status", quotas.StatusActive, "Quotas to list: active, deleted or all")
	cmd.Flags().BoolP("long", "l", false, "Show full details, including users and groups")
	return cmd
}

func (g *galaxyAdmin) runQuota(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	status, _ := cmd.Flags().GetString("status")
	long, _ := cmd.Flags().GetBool("long")

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	list, err := quotas.List(cmd.Context(), c, name, status)
	if err != nil {
		return err
	}
	if long {
		return quotas.WriteLong(cmd.OutOrStdout(), list)
	}
	return quotas.WriteShort(cmd.OutOrStdout(), list)
}

func (g *galaxyAdmin) newQuotaAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota_add GALAXY NAME DESCRIPTION [=|+|-]AMOUNT",
		Short: "Create a quota",
		Long: `Create a quota.

AMOUNT is a size such as 10G or 1.5TB, or 'unlimited'. A leading '+' or
'-' makes the quota add to or subtract from the user's other quotas; '='
(the default) sets it.`,
		Args: cobra.ExactArgs(4),
		RunE: g.runQuotaAdd,
	}
	cmd.Flags().String("default_for", "", "Make this the default quota for 'registered' or 'unregistered' users")
	cmd.Flags().StringSlice("users", nil, "Emails of users the quota applies to")
	cmd.Flags().StringSliceP("groups", "g", nil, "Groups the quota applies to")
	return cmd
}

func (g *galaxyAdmin) runQuotaAdd(cmd *cobra.Command, args []string) error {
	defaultFor, _ := cmd.Flags().GetString("default_for")
	users, _ := cmd.Flags().GetStringSlice("users")
	groups, _ := cmd.Flags().GetStringSlice("groups")

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	err = quotas.Create(cmd.Context(), c, quotas.New{
		Name:        args[1],
		Description: args[2],
		Amount:      args[3],
		DefaultFor:  defaultFor,
		Users:       users,
		Groups:      groups,
	})
	if err != nil {
		return err
	}
	logger.Infof("created quota %s", args[1])
	return nil
}

func (g *galaxyAdmin) newQuotaModCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota_mod GALAXY NAME",
		Short: "Modify a quota",
		Args:  cobra.ExactArgs(2),
		RunE:  g.runQuotaMod,
	}
	cmd.Flags().String("name", "", "New name")
	cmd.Flags().String("description", "", "New description")
	cmd.Flags().String("quota", "", "New amount, [=|+|-]AMOUNT")
	cmd.Flags().String("default_for", "", "Default for 'registered', 'unregistered' or 'no' users")
	cmd.Flags().StringSlice("add-users", nil, "Emails of users to add")
	cmd.Flags().StringSlice("remove-users", nil, "Emails of users to remove")
	cmd.Flags().StringSlice("add-groups", nil, "Groups to add")
	cmd.Flags().StringSlice("remove-groups", nil, "Groups to remove")
	cmd.Flags().Bool("undelete", false, "Restore a deleted quota")
	return cmd
}

func (g *galaxyAdmin) runQuotaMod(cmd *cobra.Command, args []string) error {
	var ch quotas.Changes
	ch.Name, _ = cmd.Flags().GetString("name")
	ch.Description, _ = cmd.Flags().GetString("description")
	ch.Amount, _ = cmd.Flags().GetString("quota")
	ch.DefaultFor, _ = cmd.Flags().GetString("default_for")
	ch.AddUsers, _ = cmd.Flags().GetStringSlice("add-users")
	ch.RemoveUsers, _ = cmd.Flags().GetStringSlice("remove-users")
	ch.AddGroups, _ = cmd.Flags().GetStringSlice("add-groups")
	ch.RemoveGroups, _ = cmd.Flags().GetStringSlice("remove-groups")
	ch.Undelete, _ = cmd.Flags().GetBool("undelete")

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	return quotas.Modify(cmd.Context(), c, args[1], ch)
}

func (g *galaxyAdmin) newQuotaDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota_del GALAXY NAME",
		Short: "Delete a quota",
		Args:  cobra.ExactArgs(2),
		RunE:  g.runQuotaDel,
	}
}

func (g *galaxyAdmin) runQuotaDel(cmd *cobra.Command, args []string) error {
	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	return quotas.Delete(cmd.Context(), c, args[1])
}
