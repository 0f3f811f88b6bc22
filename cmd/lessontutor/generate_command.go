package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	domlesson "github.com/kailas-cloud/lessontutor/internal/domain/lesson"
	"github.com/kailas-cloud/lessontutor/internal/extract"
	logpkg "github.com/kailas-cloud/lessontutor/internal/logger"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "generate FILE",
		Short: "Build and publish a lesson from a .txt, .md or .pdf file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]

			text, err := readDocument(path)
			if err != nil {
				return err
			}
			if strings.TrimSpace(title) == "" {
				title = titleFromFilename(path)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(runCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			runCtx = logpkg.ContextWithLogger(runCtx, logger.With(zap.String("file", filepath.Base(path))))
			runCtx, usage := domain.NewContextWithUsage(runCtx)

			summary, err := a.lessons.Create(runCtx, title, text)
			if err != nil {
				if runCtx.Err() != nil {
					return context.Canceled
				}
				return fmt.Errorf("generate lesson: %w", err)
			}

			tokens, _ := usage.Snapshot()
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary, tokens))
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Lesson title (defaults to the file name)")
	return cmd
}

func readDocument(path string) (string, error) {
	ex := extract.New()
	if !ex.Supported(path) {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), domain.ErrUnsupportedFormat)
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat document: %w", err)
	}
	return ex.Extract(path, f, info.Size())
}

func titleFromFilename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func renderSummary(s domlesson.Summary, embeddingTokens int) string {
	rows := [][]string{
		{"Lesson ID", s.ID},
		{"Title", s.Title},
		{"Topics", strconv.Itoa(s.Topics)},
		{"Subtopics", strconv.Itoa(s.Subtopics)},
		{"Micro-sections", strconv.Itoa(s.MicroSections)},
		{"Chunks", strconv.Itoa(s.Chunks)},
		{"Embedding tokens", strconv.Itoa(embeddingTokens)},
	}
	return renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
}
