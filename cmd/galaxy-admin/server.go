package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/BV-BRC/galaxy-admin/internal/report"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

func (g *galaxyAdmin) newPingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping GALAXY",
		Short: "Check that a Galaxy server is responding",
		Long: `Check that a Galaxy server is responding.

Sends a request every INTERVAL and reports the status and time taken,
until COUNT requests have been sent or the command is interrupted. With
--timeout the command gives up once the server has failed to respond for
longer than LIMIT. Times are seconds or durations such as 500ms.`,
		Args: cobra.ExactArgs(1),
		RunE: g.runPing,
	}
	cmd.Flags().IntP("count", "c", 0, "Stop after COUNT requests (default is to ping until interrupted)")
	cmd.Flags().VarP(newSecondsValue(0), "interval", "i", "Time between requests (default from configuration)")
	cmd.Flags().VarP(newSecondsValue(0), "timeout", "t", "Give up after failing to connect for LIMIT")
	return cmd
}

func (g *galaxyAdmin) runPing(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	interval, _ := cmd.Flags().GetDuration("interval")
	limit, _ := cmd.Flags().GetDuration("timeout")
	if interval <= 0 {
		interval = g.cfg.Ping.Interval
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "PING %s\n", c.URL())

	// failing is how long the server has been failing without a break.
	var failing time.Duration
	for n := 1; ; n++ {
		err = g.ping(ctx, out, c)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if count > 0 && n >= count {
			break
		}
		if limit > 0 && failing > limit {
			fmt.Fprintln(out, "Timeout limit reached without connecting")
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.clock.After(interval):
		}
		if err != nil {
			failing += interval
		} else {
			failing = 0
		}
	}
	if err != nil {
		return fmt.Errorf("%s is not responding: %w", c.URL(), err)
	}
	return nil
}

func (g *galaxyAdmin) ping(ctx context.Context, out io.Writer, c *galaxy.Client) error {
	start := g.clock.Now()
	_, err := c.Version(ctx)
	ms := float64(g.clock.Now().Sub(start).Microseconds()) / 1000

	status := "ok"
	if err != nil {
		logger.Debugf("ping %s: %v", c.URL(), err)
		status = "failed"
		var apiErr *galaxy.APIError
		if errors.As(err, &apiErr) {
			status = fmt.Sprintf("failed (error code %d)", apiErr.StatusCode)
		}
	}
	fmt.Fprintf(out, "%s: status = %s time = %.3f (ms)\n", c.URL(), status, ms)
	return err
}

func (g *galaxyAdmin) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami GALAXY",
		Short: "Print the account the credentials belong to",
		Args:  cobra.ExactArgs(1),
		RunE:  g.runWhoami,
	}
}

func (g *galaxyAdmin) runWhoami(cmd *cobra.Command, args []string) error {
	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	u, err := c.CurrentUser(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if u.Email == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "anonymous")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), u.Email)
	return nil
}

func (g *galaxyAdmin) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config GALAXY",
		Short: "Print the configuration settings of a Galaxy server",
		Args:  cobra.ExactArgs(1),
		RunE:  g.runConfig,
	}
	cmd.Flags().String("name", "", "Only show settings whose names match this glob")
	cmd.Flags().StringP("output", "o", "text", "Output format: text, yaml or json")
	return cmd
}

func (g *galaxyAdmin) runConfig(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("unknown output format '%s'", format)
	}

	c, err := g.getClient(cmd, args[0])
	if err != nil {
		return err
	}
	settings, err := c.Configuration(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get configuration: %w", err)
	}

	selected := map[string]interface{}{}
	for k, v := range settings {
		if name != "" {
			if ok, _ := path.Match(name, k); !ok {
				continue
			}
		}
		selected[k] = v
	}

	out := cmd.OutOrStdout()
	switch format {
	case "yaml":
		data, err := yaml.Marshal(selected)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	case "json":
		data, err := json.MarshalIndent(selected, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	keys := make([]string, 0, len(selected))
	for k := range selected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	table := report.NewTable()
	for _, k := range keys {
		table.AddRow(k, configValue(selected[k]))
	}
	return table.Write(out)
}

func configValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
	return fmt.Sprint(v)
}
