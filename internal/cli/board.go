package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"managehub/pkg/reference"
)

func initCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database tables and optionally seed reference data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			employees, _ := cmd.Flags().GetStringSlice("employee")
			orders, _ := cmd.Flags().GetStringSlice("work-order")

			ctx := cmd.Context()
			s, err := e.open(ctx, "cli")
			if err != nil {
				return err
			}
			defer s.close()

			for _, name := range employees {
				emp, err := s.stores.Refs.AddEmployee(ctx, name)
				if err != nil {
					return fmt.Errorf("add employee %q: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "employee   %s  %s\n", emp.ID, emp.Name)
			}
			for _, title := range orders {
				wo, err := s.stores.Refs.AddWorkOrder(ctx, title)
				if err != nil {
					return fmt.Errorf("add work order %q: %w", title, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "work order %s  %s\n", wo.ID, wo.Title)
			}
			if c, ok := s.refs.(*reference.Cache); ok && len(employees)+len(orders) > 0 {
				c.Evict(ctx)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s store\n", s.stores.Driver)
			return nil
		},
	}
	cmd.Flags().StringSlice("employee", nil, "Add an active employee (repeatable)")
	cmd.Flags().StringSlice("work-order", nil, "Add an open work order (repeatable)")
	return cmd
}

func boardCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the board columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			s, err := e.open(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			defer s.close()

			v := s.board.View()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), v)
			}
			printView(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func searchCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Show only tasks whose title, description or assignee matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			s, err := e.open(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			defer s.close()

			v := s.board.Search(args[0])
			if asJSON {
				return printJSON(cmd.OutOrStdout(), v)
			}
			printView(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func activityCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "List recent task activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			taskID, _ := cmd.Flags().GetString("task")

			ctx := cmd.Context()
			s, err := e.open(ctx, "cli")
			if err != nil {
				return err
			}
			defer s.close()

			events, err := s.stores.Activity.Recent(ctx, limit)
			if taskID != "" {
				events, err = s.stores.Activity.ByTask(ctx, taskID, limit)
			}
			if err != nil {
				return fmt.Errorf("list activity: %w", err)
			}
			for _, ev := range events {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s  %-8s  %-4s  %v\n",
					ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Type, truncStr(ev.TaskID, 8), ev.Source, ev.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum events")
	cmd.Flags().String("task", "", "Only events for this task id")
	return cmd
}
