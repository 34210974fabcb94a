package cli

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"todosync/internal/app"
	"todosync/internal/canvas"
	"todosync/internal/config"
	"todosync/internal/models"
)

func newCoursesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List active Canvas courses; selected ones are marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, courses, err := loadCourses(cmd, root)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(courses) == 0 {
				fmt.Fprintln(out, "No active courses.")
				return nil
			}
			for i, c := range courses {
				mark := " "
				if slices.Contains(cfg.Sync.Courses, c.ID) {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %2d) %s  [%d] -> project %q\n", mark, i+1, c.Name, c.ID, canvas.ProjectName(c.Name))
			}
			return nil
		},
	}
	cmd.AddCommand(newCoursesSelectCmd(root))
	return cmd
}

func newCoursesSelectCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select NUMBER...",
		Short: "Store the courses to sync, by their number in `todosync courses`",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, courses, err := loadCourses(cmd, root)
			if err != nil {
				return err
			}
			ids, err := pickCourses(courses, args)
			if err != nil {
				return err
			}
			if err := config.SaveCourses(cfg.File(), ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d course(s) to %s\n", len(ids), cfg.File())
			return nil
		},
	}
}

func loadCourses(cmd *cobra.Command, root *rootOptions) (*config.Config, []models.Course, error) {
	cfg, log, err := root.load()
	if err != nil {
		return nil, nil, err
	}
	client, err := app.NewCanvas(cfg, app.NewGuard(cfg, log), log)
	if err != nil {
		return nil, nil, err
	}
	courses, err := client.ListCourses(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("load courses: %w", err)
	}
	return cfg, courses, nil
}

// pickCourses maps 1-based list numbers to course ids, dropping repeats.
func pickCourses(courses []models.Course, args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(courses) {
			return nil, fmt.Errorf("invalid course number %q, want 1-%d", arg, len(courses))
		}
		id := courses[n-1].ID
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
