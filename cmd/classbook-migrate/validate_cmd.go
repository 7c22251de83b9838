package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iota-uz/classbook/modules/migration/services"
)

func newValidateCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a dataset without touching any store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := readDataset(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			errs := services.NewValidator().Validate(ds)
			if err := printValidationErrors(cmd.OutOrStdout(), errs); err != nil {
				return err
			}
			if err := writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"valid":  len(errs) == 0,
				"errors": len(errs),
				"label":  ds.Label,
			}); err != nil {
				return err
			}
			if len(errs) > 0 {
				return withCode(exitValidation, fmt.Errorf("%w: %d errors", services.ErrValidation, len(errs)))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Dataset file (.json, .yaml, .yml or - for stdin)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
