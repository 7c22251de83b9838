package main

import (
	"github.com/spf13/cobra"
)

func newVerifyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run the integrity scan against the current store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.close()

			report, verr := a.svc.Verifier().Verify(ctx, nil)
			if report == nil {
				return withCode(exitDB, verr)
			}
			if err := writeJSONLine(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return withCode(exitValidation, verr)
		},
	}
}
