package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	domlesson "github.com/kailas-cloud/lessontutor/internal/domain/lesson"
	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
)

func newLessonsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lessons",
		Short: "List published lessons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, ctx, func(a *app) error {
				lessons, err := a.lessons.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("list lessons: %w", err)
				}
				if len(lessons) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No lessons published")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderLessons(lessons))
				return nil
			})
		},
	}

	cmd.AddCommand(newLessonShowCommand(ctx))
	cmd.AddCommand(newLessonDeleteCommand(ctx))
	return cmd
}

func newLessonShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show LESSON_ID",
		Short: "Print the outline of a lesson",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, ctx, func(a *app) error {
				p, err := a.lessons.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.Title)
				fmt.Fprintln(cmd.OutOrStdout(), renderOutline(p))
				return nil
			})
		},
	}
}

func newLessonDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete LESSON_ID",
		Short: "Remove a published lesson",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, ctx, func(a *app) error {
				if err := a.lessons.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func withApp(cmd *cobra.Command, ctx *commandContext, fn func(a *app) error) error {
	cfg, logger, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func renderLessons(lessons []domlesson.Summary) string {
	rows := make([][]string, 0, len(lessons))
	for _, l := range lessons {
		rows = append(rows, []string{
			l.ID,
			l.Title,
			l.CreatedAt.Local().Format(time.DateTime),
			strconv.Itoa(l.Topics),
			strconv.Itoa(l.Subtopics),
			strconv.Itoa(l.MicroSections),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Created", "Topics", "Subtopics", "Micro"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

func renderOutline(p plan.Plan) string {
	var rows [][]string
	for _, t := range p.Topics {
		for _, s := range t.Subtopics {
			rows = append(rows, []string{
				fmt.Sprintf("%d. %s", t.ID, t.Title),
				fmt.Sprintf("%d.%d %s", t.ID, s.ID, s.Title),
				strconv.Itoa(len(s.MicroSections)),
			})
		}
	}
	return renderTable([]string{"Topic", "Subtopic", "Micro"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight})
}
