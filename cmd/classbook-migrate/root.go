package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFiles []string
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "classbook-migrate",
		Short:         "Bulk classbook dataset migration with backup, verification and rollback",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env", ".env.local"}, "Env files to load before reading configuration")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level to stderr")

	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newBackupCmd(opts))
	cmd.AddCommand(newRollbackCmd(opts))
	cmd.AddCommand(newVerifyCmd(opts))
	cmd.AddCommand(newSchemaCmd(opts))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
