package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BV-BRC/galaxy-admin/internal/report"
	"github.com/BV-BRC/galaxy-admin/internal/units"
	"github.com/BV-BRC/galaxy-admin/internal/users"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

func (g *galaxyAdmin) newListUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list_users GALAXY",
		Short: "List user accounts",
		Args:  cobra.ExactArgs(1),
		RunE:  g.runListUsers,
	}
	cmd.Flags().String("name", "", "Only list users whose email matches this glob")
	cmd.Flags().String("status", "active", "Users to list: active, deleted, purged or all")
	cmd.Flags().String("sort", "email", "Sort by: email, disk_usage, quota or quota_usage")
	cmd.Flags().BoolP("long", "l", false, "Show disk usage and quota details")
	cmd.Flags().Bool("show_id", false, "Show user IDs")
	return cmd
}

func (g *galaxyAdmin) runListUsers(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	status, _ := cmd.Flags().GetString("status")
	sortBy, _ := cmd.Flags().GetString("sort")
	long, _ := cmd.Flags().GetBool("long")
	showID, _ := cmd.Flags().GetBool("show_id")

	var which []bool
	switch status {
	case "active":
		which = []bool{false}
	case "deleted", "purged":
		which = []bool{true}
	case "all":
		which = []bool{false, true}
	default:
		return fmt.Errorf("invalid status '%s'", status)
	}
	less, ok := userOrder[sortBy]
	if !ok {
		return fmt.Errorf("invalid sort order '%s'", sortBy)
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var list []galaxy.User
	for _, deleted := range which {
		found, err := c.ListUsers(ctx, deleted)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		for _, u := range found {
			if name != "" {
				if ok, _ := path.Match(name, u.Email); !ok {
					continue
				}
			}
			if status == "purged" && !u.Purged {
				continue
			}
			if long || sortBy != "email" {
				full, err := c.ShowUser(ctx, u.ID, deleted)
				if err != nil {
					return fmt.Errorf("failed to get details for %s: %w", u.Email, err)
				}
				u = *full
			}
			list = append(list, u)
		}
	}
	sort.SliceStable(list, func(a, b int) bool { return less(list[a], list[b]) })

	table := report.NewTable()
	for _, u := range list {
		row := []interface{}{}
		if showID {
			row = append(row, u.ID)
		}
		row = append(row, u.Email, u.Username)
		if long {
			row = append(row, diskUsage(u), userQuota(u), quotaUsage(u))
		}
		row = append(row, userState(u))
		table.AddRow(row...)
	}
	if err := table.Write(cmd.OutOrStdout()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "total %d\n", len(list))
	return nil
}

var userOrder = map[string]func(a, b galaxy.User) bool{
	"email": func(a, b galaxy.User) bool {
		return strings.ToLower(a.Email) < strings.ToLower(b.Email)
	},
	"disk_usage": func(a, b galaxy.User) bool {
		return a.TotalDiskUsage < b.TotalDiskUsage
	},
	"quota": func(a, b galaxy.User) bool {
		return quotaBytes(a) < quotaBytes(b)
	},
	"quota_usage": func(a, b galaxy.User) bool {
		return quotaPercent(a) < quotaPercent(b)
	},
}

// quotaBytes orders unlimited quotas last.
func quotaBytes(u galaxy.User) int64 {
	if u.QuotaBytes == nil {
		return 1<<63 - 1
	}
	return *u.QuotaBytes
}

func quotaPercent(u galaxy.User) float64 {
	if u.QuotaPercent == nil {
		return 0
	}
	return *u.QuotaPercent
}

func diskUsage(u galaxy.User) string {
	if u.NiceTotalDiskUsage != "" {
		return u.NiceTotalDiskUsage
	}
	return units.FormatSize(int64(u.TotalDiskUsage))
}

func userQuota(u galaxy.User) string {
	switch {
	case u.Quota != "":
		return u.Quota
	case u.QuotaBytes != nil:
		return units.FormatSize(*u.QuotaBytes)
	}
	return "unlimited"
}

func quotaUsage(u galaxy.User) string {
	if u.QuotaPercent == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*u.QuotaPercent, 'f', 0, 64) + "%"
}

func userState(u galaxy.User) string {
	switch {
	case u.Purged:
		return "purged"
	case u.Deleted:
		return "deleted"
	case u.IsAdmin:
		return "admin"
	}
	return ""
}

func (g *galaxyAdmin) newCreateUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create_user GALAXY EMAIL [PUBLIC_NAME]",
		Short: "Create a user account",
		Long: `Create a user account.

The public name is derived from the email address unless PUBLIC_NAME is
given. The password is prompted for when --password is not given.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: g.runCreateUser,
	}
	cmd.Flags().StringP("password", "p", "", "Password for the account (prompted for if not given)")
	cmd.Flags().BoolP("check", "c", false, "Check the account could be created without creating it")
	cmd.Flags().StringP("message", "m", "", "Template file for a welcome message to print")
	return cmd
}

func (g *galaxyAdmin) runCreateUser(cmd *cobra.Command, args []string) error {
	password, _ := cmd.Flags().GetString("password")
	check, _ := cmd.Flags().GetBool("check")
	messageFile, _ := cmd.Flags().GetString("message")

	a := users.Account{Email: args[1], Password: password}
	if len(args) == 3 {
		if err := users.CheckUsername(args[2]); err != nil {
			return err
		}
		a.Username = args[2]
	}
	if a.Password == "" && !check {
		p, err := g.prompt(fmt.Sprintf("Password for new user %s: ", a.Email))
		if err != nil {
			return err
		}
		a.Password = p
	}
	if check && a.Password == "" {
		a.Password = strings.Repeat("x", users.MinPasswordLength)
	}
	if err := a.Validate(); err != nil {
		return err
	}
	message, err := readMessage(messageFile)
	if err != nil {
		return err
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	results, err := users.CreateAll(cmd.Context(), c, []users.Account{a}, check)
	writeResults(cmd.OutOrStdout(), results, check)
	if err != nil {
		return err
	}
	if !check {
		return writeMessages(cmd.OutOrStdout(), message, c.URL(), results)
	}
	return nil
}

func readMessage(file string) (string, error) {
	if file == "" {
		return "", nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read message template: %w", err)
	}
	return string(data), nil
}

// writeMessages renders the welcome message for each account created.
func writeMessages(w io.Writer, message, url string, results []users.Result) error {
	if message == "" {
		return nil
	}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		err := users.WriteMessage(w, message, users.MessageData{
			Email:    r.Account.Email,
			Username: r.Account.Username,
			Password: r.Account.Password,
			URL:      url,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *galaxyAdmin) newCreateBatchUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create_batch_users GALAXY TEMPLATE START [END]",
		Short: "Create numbered user accounts from an email template",
		Long: `Create numbered user accounts from an email template.

TEMPLATE is an email address with a single '#' in the local part, which is
replaced by each number from START to END. With END omitted the accounts
are numbered 1 to START. All accounts get the same password.`,
		Args: cobra.RangeArgs(3, 4),
		RunE: g.runCreateBatchUsers,
	}
	cmd.Flags().StringP("password", "p", "", "Password for the accounts (prompted for if not given)")
	cmd.Flags().BoolP("check", "c", false, "Check the accounts could be created without creating them")
	return cmd
}

func (g *galaxyAdmin) runCreateBatchUsers(cmd *cobra.Command, args []string) error {
	password, _ := cmd.Flags().GetString("password")
	check, _ := cmd.Flags().GetBool("check")

	start, end := 1, 0
	var err error
	if len(args) == 4 {
		if start, err = strconv.Atoi(args[2]); err != nil {
			return fmt.Errorf("bad start '%s'", args[2])
		}
		if end, err = strconv.Atoi(args[3]); err != nil {
			return fmt.Errorf("bad end '%s'", args[3])
		}
	} else if end, err = strconv.Atoi(args[2]); err != nil {
		return fmt.Errorf("bad count '%s'", args[2])
	}
	emails, err := users.ExpandTemplate(args[1], start, end)
	if err != nil {
		return err
	}

	if password == "" && !check {
		if password, err = g.prompt("Password for new users: "); err != nil {
			return err
		}
	}
	if check && password == "" {
		password = strings.Repeat("x", users.MinPasswordLength)
	}

	accounts := make([]users.Account, 0, len(emails))
	for _, e := range emails {
		a := users.Account{Email: e, Password: password}
		if err := a.Validate(); err != nil {
			return err
		}
		accounts = append(accounts, a)
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	results, err := users.CreateAll(cmd.Context(), c, accounts, check)
	writeResults(cmd.OutOrStdout(), results, check)
	return err
}

func (g *galaxyAdmin) newCreateUsersFromFileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create_users_from_file GALAXY FILE",
		Short: "Create user accounts listed in a file",
		Long: `Create user accounts listed in a file.

Each line holds an email address, a password and optionally a public
name, separated by tabs. Blank lines and lines starting with '#' are
ignored.`,
		Args: cobra.ExactArgs(2),
		RunE: g.runCreateUsersFromFile,
	}
	cmd.Flags().BoolP("check", "c", false, "Check the accounts could be created without creating them")
	cmd.Flags().StringP("message", "m", "", "Template file for a welcome message to print for each account")
	return cmd
}

func (g *galaxyAdmin) runCreateUsersFromFile(cmd *cobra.Command, args []string) error {
	check, _ := cmd.Flags().GetBool("check")
	messageFile, _ := cmd.Flags().GetString("message")
	message, err := readMessage(messageFile)
	if err != nil {
		return err
	}

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()
	accounts, err := users.ReadAccounts(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	results, err := users.CreateAll(cmd.Context(), c, accounts, check)
	writeResults(cmd.OutOrStdout(), results, check)
	if !check {
		if merr := writeMessages(cmd.OutOrStdout(), message, c.URL(), results); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

func writeResults(w io.Writer, results []users.Result, check bool) {
	table := report.NewTable()
	for _, r := range results {
		status := "created"
		switch {
		case r.Err != nil:
			status = "failed: " + r.Err.Error()
		case check:
			status = "ok"
		}
		table.AddRow(r.Account.Email, r.Account.Username, status)
	}
	if err := table.Write(w); err != nil {
		logger.Errorf("failed to write results: %v", err)
	}
}

func (g *galaxyAdmin) newDeleteUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete_user GALAXY EMAIL",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(2),
		RunE:  g.runDeleteUser,
	}
	cmd.Flags().Bool("purge", false, "Also purge the account's data")
	return cmd
}

func (g *galaxyAdmin) runDeleteUser(cmd *cobra.Command, args []string) error {
	email := args[1]
	purge, _ := cmd.Flags().GetBool("purge")

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	u, err := c.FindUser(ctx, email)
	if err != nil {
		return err
	}
	if err := c.DeleteUser(ctx, u.ID, false); err != nil {
		return fmt.Errorf("failed to delete %s: %w", email, err)
	}
	logger.Infof("deleted %s", email)
	if purge {
		if err := c.DeleteUser(ctx, u.ID, true); err != nil {
			return fmt.Errorf("failed to purge %s: %w", email, err)
		}
		logger.Infof("purged %s", email)
	}
	return nil
}
