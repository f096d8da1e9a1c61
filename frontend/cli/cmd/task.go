package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/wthorbecke/gather/backend/task"
)

func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Short:   "Inspect and update your tasks",
		GroupID: "core",
	}

	cmd.AddCommand(NewTaskListCmd())
	cmd.AddCommand(NewTaskShowCmd())
	cmd.AddCommand(NewTaskToggleCmd())
	return cmd
}

func NewTaskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), getGlobalOptions(cmd.Context()))
			if err != nil {
				return err
			}
			defer app.Close()

			tasks, err := app.store.GetTasks(cmd.Context())
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks yet. Try 'gather chat'.")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"ID", "Title", "Category", "Progress"})
			table.SetBorder(false)
			for _, t := range tasks {
				table.Append([]string{
					shortID(t.ID),
					t.Title,
					t.Category,
					taskProgress(t),
				})
			}
			table.Render()
			return nil
		},
	}
}

func NewTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), getGlobalOptions(cmd.Context()))
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := findTask(cmd, app, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTask(t))
			return nil
		},
	}
}

func NewTaskToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <task-id> <step-number>",
		Short: "Toggle a step between done and open",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), getGlobalOptions(cmd.Context()))
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := findTask(cmd, app, args[0])
			if err != nil {
				return err
			}

			var stepNumber int
			if _, err := fmt.Sscanf(args[1], "%d", &stepNumber); err != nil || stepNumber < 1 || stepNumber > len(t.Steps) {
				return fmt.Errorf("step number must be between 1 and %d", len(t.Steps))
			}

			if err := app.store.ToggleStep(cmd.Context(), t.ID, t.Steps[stepNumber-1].ID); err != nil {
				return err
			}

			updated, err := app.store.GetTask(cmd.Context(), t.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTask(updated))
			return nil
		},
	}
}

// findTask resolves a full or shortened task id.
func findTask(cmd *cobra.Command, app *app, id string) (*task.Task, error) {
	tasks, err := app.store.GetTasks(cmd.Context())
	if err != nil {
		return nil, err
	}

	for _, t := range tasks {
		if t.ID.String() == id || shortID(t.ID) == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("task %q not found", id)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
