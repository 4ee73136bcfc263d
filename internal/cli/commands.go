package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sensor"
	"github.com/chbarnhouse/ha-finance-assistant/internal/storage"
)

// AddonAPI is the add-on surface the fa commands call.
type AddonAPI interface {
	Ping(ctx context.Context) (json.RawMessage, error)
	Debug(ctx context.Context) (json.RawMessage, error)
	AllDataRaw(ctx context.Context) (json.RawMessage, error)
	AllData(ctx context.Context) (*core.Snapshot, error)
	AddRewardsCategory(ctx context.Context, name string) (json.RawMessage, error)
	AddRewardsPayee(ctx context.Context, name string) (json.RawMessage, error)
}

// HistoryAPI reads stored sensor readings.
type HistoryAPI interface {
	History(ctx context.Context, entityID string, limit int) ([]storage.HistoryPoint, error)
}

// Deps are resolved lazily so commands that do not need the database never open it.
type Deps struct {
	Addon   func(ctx context.Context) (AddonAPI, error)
	History func(ctx context.Context) (HistoryAPI, func() error, error)
	Sensors func() *sensor.Builder
	Export  func(ctx context.Context) error
	Prune   func(ctx context.Context) error
	// Schema reports the applied history migration and whether it is dirty.
	Schema func() (version uint, dirty bool, err error)
}

// NewRootCommand builds the fa command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "fa",
		Short:         "Inspect and operate the Finance Assistant bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		rawCommand(deps, "ping", "Check that the add-on answers", AddonAPI.Ping),
		rawCommand(deps, "debug", "Print the add-on diagnostics payload", AddonAPI.Debug),
		rawCommand(deps, "data", "Print the raw all_data payload", AddonAPI.AllDataRaw),
		sensorsCommand(deps),
		rewardsCommand(deps),
		historyCommand(deps),
		statusCommand(deps),
		jobCommand("export", "Write today's summary row now", deps.Export),
		jobCommand("prune", "Delete readings older than the retention window", deps.Prune),
	)
	return root
}

func rawCommand(deps Deps, use, short string, call func(AddonAPI, context.Context) (json.RawMessage, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := deps.Addon(cmd.Context())
			if err != nil {
				return err
			}
			raw, err := call(api, cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
}

func sensorsCommand(deps Deps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sensors",
		Short: "Render the sensors the bridge would publish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := deps.Addon(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := api.AllData(cmd.Context())
			if err != nil {
				return err
			}
			states := deps.Sensors().Build(cmd.Context(), snap, true)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(states)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY ID\tSTATE\tUNIT\tNAME")
			for _, s := range states {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.EntityID, s.HAState(), s.Unit, s.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full sensor states as JSON")
	return cmd
}

func rewardsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Manage credit card rewards categories and payees",
	}
	add := func(use, short string, call func(AddonAPI, context.Context, string) (json.RawMessage, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " NAME",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := deps.Addon(cmd.Context())
				if err != nil {
					return err
				}
				raw, err := call(api, cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), raw)
			},
		}
	}
	cmd.AddCommand(
		add("add-category", "Add a rewards category", AddonAPI.AddRewardsCategory),
		add("add-payee", "Add a rewards payee", AddonAPI.AddRewardsPayee),
	)
	return cmd
}

func historyCommand(deps Deps) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history ENTITY_ID",
		Short: "Show stored readings of one sensor, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}
			api, closeFn, err := deps.History(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			points, err := api.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TAKEN AT\tSTATE")
			for _, p := range points {
				fmt.Fprintf(tw, "%s\t%s\n", p.TakenAt.Format("2006-01-02 15:04:05Z07:00"), p.State)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of readings to show")
	return cmd
}

func statusCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the history database schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Schema == nil {
				return fmt.Errorf("status is not available")
			}
			version, dirty, err := deps.Schema()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case version == 0:
				_, err = fmt.Fprintln(out, "schema: not migrated")
			case dirty:
				_, err = fmt.Fprintf(out, "schema: version %d (dirty, a migration failed)\n", version)
			default:
				_, err = fmt.Fprintf(out, "schema: version %d\n", version)
			}
			return err
		},
	}
}

func jobCommand(use, short string, run func(ctx context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if run == nil {
				return fmt.Errorf("%s is not available", use)
			}
			if err := run(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s done\n", use)
			return nil
		},
	}
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
