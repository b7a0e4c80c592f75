package cli

import (
	"context"
	"fmt"
	"io"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/config"
	"cryptic-hunt/internal/importer"
	"github.com/spf13/cobra"
)

// NewImportCmd bulk-loads questions from a CSV feed into the configured store.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <questions.csv>",
		Short: "Import questions from CSV; existing levels are left untouched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, args[0], cmd.OutOrStdout())
		},
	}
}

func runImport(ctx context.Context, configPath, csvPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	feed, err := importer.ReadCSVFile(csvPath)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := app.NewQuestionService(store, logger).BulkImport(ctx, feed.Questions)
	if err != nil {
		return err
	}
	res.Invalid += feed.Rejected
	fmt.Fprintf(out, "inserted %d, skipped %d existing, rejected %d invalid\n", res.Inserted, res.Skipped, res.Invalid)
	return nil
}
