package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and record offline mutations",
}

var queueAddCmd = &cobra.Command{
	Use:   "add <add|update|delete> <users|tasks> <id> [json]",
	Short: "Record a mutation for later replay",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data any
		if len(args) == 4 {
			var raw json.RawMessage
			if err := json.Unmarshal([]byte(args[3]), &raw); err != nil {
				return fmt.Errorf("invalid json payload: %w", err)
			}
			data = raw
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.queue.Enqueue(cmd.Context(), models.Operation(args[0]), args[1], args[2], data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued %s %s/%s as #%d (%s)\n",
			entry.Operation, entry.Entity, entry.EntityID, entry.ID, entry.MutationID)
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued mutations in replay order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.queue.DrainAll(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, entries)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIMESTAMP\tOPERATION\tENTITY\tENTITY_ID\tDATA")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, models.FormatTime(e.Timestamp), e.Operation, e.Entity, e.EntityID, string(e.Data))
		}
		return w.Flush()
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every queued mutation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.queue.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Queue cleared")
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueAddCmd, queueListCmd, queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}
