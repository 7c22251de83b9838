package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
	"github.com/iota-uz/classbook/modules/migration/services"
)

type migrateOptions struct {
	input string
	apply bool
	yes   bool
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var opts migrateOptions
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Replace the store content with a dataset (dry-run unless --apply)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), root, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Dataset file (.json, .yaml, .yml or - for stdin)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply the migration (default is dry-run)")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Confirm replacing a non-empty store")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

type migratePlan struct {
	Mode       string                   `json:"mode"`
	Label      string                   `json:"label,omitempty"`
	SeedOrder  []entitygraph.Collection `json:"seed_order"`
	ClearOrder []entitygraph.Collection `json:"clear_order"`
	Plan       dataset.Counts           `json:"plan"`
	StoreRows  int                      `json:"store_rows"`
}

func runMigrate(ctx context.Context, root *rootOptions, opts migrateOptions, stdin io.Reader, out io.Writer) error {
	ds, err := readDataset(opts.input, stdin)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.close()

	if errs := a.svc.Validator().Validate(ds); len(errs) > 0 {
		if err := printValidationErrors(out, errs); err != nil {
			return err
		}
		return withCode(exitValidation, fmt.Errorf("%w: %d errors", services.ErrValidation, len(errs)))
	}

	current, err := a.store.Counts(ctx)
	if err != nil {
		return withCode(exitDB, err)
	}

	if !opts.apply {
		return writeJSONLine(out, migratePlan{
			Mode:       "dry_run",
			Label:      ds.Label,
			SeedOrder:  entitygraph.SeedOrder(),
			ClearOrder: entitygraph.ClearOrder(),
			Plan:       a.svc.Executor().Plan(ds),
			StoreRows:  current.Total(),
		})
	}
	if current.Total() > 0 && !opts.yes {
		return withCode(exitSafetyNet, fmt.Errorf("refusing to replace %d existing rows without --yes", current.Total()))
	}

	res, err := a.svc.Migrate(ctx, ds)
	if res != nil {
		if werr := writeJSONLine(out, res); werr != nil {
			return werr
		}
	}
	if err != nil {
		return withCode(exitRollback, err)
	}
	if !res.Success {
		if len(res.ValidationErrors) > 0 {
			return withCode(exitValidation, fmt.Errorf("%s", res.Message))
		}
		return withCode(exitDBWrite, fmt.Errorf("%s", res.Message))
	}
	return nil
}

func printValidationErrors(out io.Writer, errs services.ValidationErrors) error {
	for _, e := range errs {
		if err := writeJSONLine(out, map[string]any{"validation_error": e}); err != nil {
			return err
		}
	}
	return nil
}
