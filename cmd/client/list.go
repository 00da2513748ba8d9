package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/atinyakov/OfficeSync/internal/localstore"
	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/spf13/cobra"
)

var (
	listLimit  int
	listCursor string
	listRole   string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Read cached tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached tasks of --owner, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ownerID == "" {
			return errors.New("--owner is required")
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.local.PageTasks(cmd.Context(), localstore.PageQuery{
			Index:      "userId",
			Equals:     ownerID,
			OrderBy:    "createdAt",
			Descending: true,
			Limit:      listLimit,
			Cursor:     listCursor,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, tasks)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tSTATUS\tCREATED\tTITLE")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.SyncKey(), t.Status, models.FormatTime(t.CreatedAt), t.Title)
		}
		return w.Flush()
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Read cached users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached users",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.local.PageUsers(cmd.Context(), usersQuery(listRole, listLimit, listCursor))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, users)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "UID\tROLE\tNAME\tEMAIL")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.UID, u.Role, u.Name, u.Email)
		}
		return w.Flush()
	},
}

// usersQuery orders users by name. Roles are stored lower-cased, so the
// filter is too.
func usersQuery(role string, limit int, cursor string) localstore.PageQuery {
	q := localstore.PageQuery{OrderBy: "name", Limit: limit, Cursor: cursor}
	if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
		q.Index, q.Equals = "role", role
	}
	return q
}

func init() {
	for _, c := range []*cobra.Command{tasksListCmd, usersListCmd} {
		c.Flags().IntVar(&listLimit, "limit", localstore.DefaultPageLimit, "maximum rows")
		c.Flags().StringVar(&listCursor, "cursor", "", "continue after this sort value")
	}
	usersListCmd.Flags().StringVar(&listRole, "role", "", "only users with this role")

	tasksCmd.AddCommand(tasksListCmd)
	usersCmd.AddCommand(usersListCmd)
	rootCmd.AddCommand(tasksCmd, usersCmd)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
