package tasks

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/taskvault/taskvault/cmd/util"
	"github.com/taskvault/taskvault/lib/entity"
	"github.com/taskvault/taskvault/lib/storage"
	"github.com/taskvault/taskvault/lib/storage/lstorage"
)

// --------------------------------------------------------------------------
// Create
// --------------------------------------------------------------------------

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(st storage.IStorage) error {
			e := &entity.Entity{}
			e.ID, _ = cmd.Flags().GetString("id")
			e.Title, _ = cmd.Flags().GetString("title")
			e.Description, _ = cmd.Flags().GetString("description")
			e.Status, _ = cmd.Flags().GetString("status")
			e.Priority, _ = cmd.Flags().GetInt("priority")
			e.Project, _ = cmd.Flags().GetString("project")
			e.Assignee, _ = cmd.Flags().GetString("assignee")
			e.Tags = splitTags(cmd)

			created, err := st.Create(e)
			if err != nil {
				return err
			}
			return printJSON(created)
		})
	},
}

// --------------------------------------------------------------------------
// Get / Delete
// --------------------------------------------------------------------------

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a task by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st storage.IStorage) error {
			e, err := st.Get(args[0])
			if err != nil {
				return err
			}
			return printJSON(e)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id> [id...]",
	Short: "Delete one or more tasks by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st storage.IStorage) error {
			if len(args) == 1 {
				if err := st.Delete(args[0]); err != nil {
					return err
				}
				fmt.Printf("deleted %s\n", args[0])
				return nil
			}
			// Multiple ids use the bulk form: one flush window, one cache
			// invalidation, per-item outcomes.
			return printJSON(st.BulkDelete(args))
		})
	},
}

// --------------------------------------------------------------------------
// Update
// --------------------------------------------------------------------------

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Apply a partial update to a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st storage.IStorage) error {
			patch := entity.Patch{}
			if cmd.Flags().Changed("title") {
				v, _ := cmd.Flags().GetString("title")
				patch.Title = &v
			}
			if cmd.Flags().Changed("description") {
				v, _ := cmd.Flags().GetString("description")
				patch.Description = &v
			}
			if cmd.Flags().Changed("status") {
				v, _ := cmd.Flags().GetString("status")
				patch.Status = &v
			}
			if cmd.Flags().Changed("priority") {
				v, _ := cmd.Flags().GetInt("priority")
				patch.Priority = &v
			}
			if cmd.Flags().Changed("project") {
				v, _ := cmd.Flags().GetString("project")
				patch.Project = &v
			}
			if cmd.Flags().Changed("assignee") {
				v, _ := cmd.Flags().GetString("assignee")
				patch.Assignee = &v
			}
			if cmd.Flags().Changed("tags") {
				v := splitTags(cmd)
				patch.Tags = &v
			}

			updated, err := st.Update(args[0], patch)
			if err != nil {
				return err
			}
			return printJSON(updated)
		})
	},
}

// --------------------------------------------------------------------------
// Search
// --------------------------------------------------------------------------

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tasks matching the given filters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(st storage.IStorage) error {
			q := entity.Query{}
			q.Statuses, _ = cmd.Flags().GetStringSlice("status")
			q.Priorities, _ = cmd.Flags().GetIntSlice("priority")
			q.Projects, _ = cmd.Flags().GetStringSlice("project")
			q.Assignees, _ = cmd.Flags().GetStringSlice("assignee")
			q.Tags, _ = cmd.Flags().GetStringSlice("tag")
			q.Text, _ = cmd.Flags().GetString("text")
			q.SortBy, _ = cmd.Flags().GetString("sort")
			q.SortDesc, _ = cmd.Flags().GetBool("desc")
			q.Offset, _ = cmd.Flags().GetInt("offset")
			q.Limit, _ = cmd.Flags().GetInt("limit")

			res, err := st.Search(q)
			if err != nil {
				return err
			}
			return printJSON(res.Entities)
		})
	},
}

// --------------------------------------------------------------------------
// Flush / Stats
// --------------------------------------------------------------------------

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Force a synchronous snapshot flush",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(st storage.IStorage) error {
			if err := st.ForceFlush(); err != nil {
				return err
			}
			fmt.Println("flushed")
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(st storage.IStorage) error {
			if prom, _ := cmd.Flags().GetBool("metrics"); prom {
				if pw, ok := st.(lstorage.IPrometheusWriter); ok {
					pw.WritePrometheus(os.Stdout)
					return nil
				}
				return fmt.Errorf("store backend does not expose prometheus metrics")
			}
			return printJSON(st.Statistics())
		})
	},
}

// --------------------------------------------------------------------------
// Flags
// --------------------------------------------------------------------------

func init() {
	for _, cmd := range []*cobra.Command{createCmd, updateCmd} {
		cmd.Flags().String("title", "", util.WrapString("Task title"))
		cmd.Flags().String("description", "", util.WrapString("Task description"))
		cmd.Flags().String("status", "", util.WrapString("Task status (e.g. todo, doing, done)"))
		cmd.Flags().Int("priority", 0, util.WrapString("Task priority"))
		cmd.Flags().String("project", "", util.WrapString("Project reference"))
		cmd.Flags().String("assignee", "", util.WrapString("Assignee reference"))
		cmd.Flags().String("tags", "", util.WrapString("Comma-separated tag list"))
	}
	createCmd.Flags().String("id", "", util.WrapString("Explicit task id (generated when omitted)"))

	lsCmd.Flags().StringSlice("status", nil, util.WrapString("Filter by status (repeatable)"))
	lsCmd.Flags().IntSlice("priority", nil, util.WrapString("Filter by priority (repeatable)"))
	lsCmd.Flags().StringSlice("project", nil, util.WrapString("Filter by project (repeatable)"))
	lsCmd.Flags().StringSlice("assignee", nil, util.WrapString("Filter by assignee (repeatable)"))
	lsCmd.Flags().StringSlice("tag", nil, util.WrapString("Filter by tag (repeatable)"))
	lsCmd.Flags().String("text", "", util.WrapString("Free-text filter over title and description (forces a full scan)"))
	lsCmd.Flags().String("sort", "", util.WrapString("Sort field (id, title, status, priority, created_at, updated_at)"))
	lsCmd.Flags().Bool("desc", false, util.WrapString("Sort descending"))
	lsCmd.Flags().Int("offset", 0, util.WrapString("Pagination offset"))
	lsCmd.Flags().Int("limit", 0, util.WrapString("Pagination limit (0 = unlimited)"))

	statsCmd.Flags().Bool("metrics", false, util.WrapString("Print Prometheus exposition format instead of JSON"))
}

func splitTags(cmd *cobra.Command) []string {
	raw, _ := cmd.Flags().GetString("tags")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
