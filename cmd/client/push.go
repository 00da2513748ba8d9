package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push <users|tasks> <file.json>",
	Short: "Write records from a JSON array file to the document server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.http == nil {
			return errors.New("push requires the http backend")
		}

		var n int
		switch args[0] {
		case models.EntityUsers:
			var users []models.User
			if err := json.Unmarshal(data, &users); err != nil {
				return fmt.Errorf("decode users: %w", err)
			}
			n, err = len(users), a.http.PutUsers(cmd.Context(), users)
		case models.EntityTasks:
			var tasks []models.Task
			if err := json.Unmarshal(data, &tasks); err != nil {
				return fmt.Errorf("decode tasks: %w", err)
			}
			n, err = len(tasks), a.http.PutTasks(cmd.Context(), tasks)
		default:
			return fmt.Errorf("unknown entity %q", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d %s\n", n, args[0])
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, cache and queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		online := "n/a"
		switch {
		case offline:
			online = "false"
		case a.http != nil:
			online = fmt.Sprint(a.http.Online(ctx))
		}
		tasks, err := a.local.CountTasks(ctx)
		if err != nil {
			return err
		}
		queued, err := a.local.QueueLen(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backend:       %s\n", backend)
		fmt.Fprintf(out, "Online:        %s\n", online)
		fmt.Fprintf(out, "Schema:        v%d\n", a.local.Version())
		fmt.Fprintf(out, "Cached tasks:  %d\n", tasks)
		fmt.Fprintf(out, "Queued:        %d\n", queued)

		if a.http != nil && ownerID != "" && online == "true" {
			counts, err := a.http.TaskStats(ctx, []string{ownerID})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Remote tasks:  %d\n", counts[ownerID])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd, statusCmd)
}
