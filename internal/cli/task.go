package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"managehub/pkg/task"
)

func taskCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, list and move tasks",
	}
	cmd.AddCommand(taskCreateCmd(e))
	cmd.AddCommand(taskListCmd(e))
	cmd.AddCommand(taskMoveCmd(e))
	return cmd
}

func taskCreateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a task in To Do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			priorityFlag, _ := cmd.Flags().GetString("priority")
			dueFlag, _ := cmd.Flags().GetString("due")
			assignee, _ := cmd.Flags().GetString("assignee")
			workOrder, _ := cmd.Flags().GetString("work-order")

			priority, err := task.ParsePriority(priorityFlag)
			if err != nil {
				return err
			}
			due, err := task.ParseDate(dueFlag)
			if err != nil {
				return err
			}

			s, err := e.open(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			defer s.close()

			created, err := s.board.CreateTask(cmd.Context(), task.NewTask{
				Title:       args[0],
				Description: description,
				Priority:    priority,
				DueDate:     due,
				AssignedTo:  assignee,
				WorkOrderID: workOrder,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringP("description", "d", "", "Task description")
	cmd.Flags().StringP("priority", "p", "medium", "Priority (low, medium, high)")
	cmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().String("assignee", "", "Employee id")
	cmd.Flags().String("work-order", "", "Work order id")
	return cmd
}

func taskListCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks by priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statusFlag, _ := cmd.Flags().GetString("status")
			asJSON, _ := cmd.Flags().GetBool("json")

			var status task.Status
			if statusFlag != "" {
				st, err := task.ParseStatus(statusFlag)
				if err != nil {
					return err
				}
				status = st
			}

			s, err := e.open(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			defer s.close()

			tasks := s.board.Tasks()
			if status != "" {
				filtered := tasks[:0]
				for _, t := range tasks {
					if t.Status == status {
						filtered = append(filtered, t)
					}
				}
				tasks = filtered
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			for _, t := range tasks {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s  %-12s  %-6s  %s\n",
					truncStr(t.ID, 8), t.Status, t.Priority, truncStr(t.Title, 60))
			}
			return nil
		},
	}
	cmd.Flags().StringP("status", "s", "", "Only tasks with this status")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func taskMoveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "move [id] [status]",
		Short: "Move a task to another column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := task.ParseStatus(args[1])
			if err != nil {
				return err
			}

			s, err := e.open(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.board.CompleteDrop(cmd.Context(), args[0], status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], status)
			return nil
		},
	}
}
