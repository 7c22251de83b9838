package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/classbook/modules/migration/domain/entities/backup"
)

func newBackupCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list and verify backup artifacts",
	}
	cmd.AddCommand(newBackupCreateCmd(root))
	cmd.AddCommand(newBackupListCmd(root))
	cmd.AddCommand(newBackupVerifyCmd(root))
	return cmd
}

func newBackupCreateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Snapshot the whole store into a new artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.svc.Backups().CreateBackup(ctx)
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			info, err := a.svc.Backups().VerifyBackup(ctx, id)
			if err != nil {
				return withCode(exitDB, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), info)
		},
	}
}

func newBackupListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored artifacts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.close()

			infos, err := a.svc.Backups().ListBackups(ctx)
			if err != nil {
				return withCode(exitDB, err)
			}
			for _, info := range infos {
				if err := writeJSONLine(cmd.OutOrStdout(), info); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newBackupVerifyCmd(root *rootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute the checksum of an artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(id) == "" {
				return withCode(exitUsage, fmt.Errorf("--backup is required"))
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.close()

			info, err := a.svc.Backups().VerifyBackup(ctx, id)
			if err != nil {
				return backupError(err)
			}
			return writeJSONLine(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().StringVar(&id, "backup", "", "Backup id")
	_ = cmd.MarkFlagRequired("backup")
	return cmd
}

// backupError maps artifact loading failures to exit codes.
func backupError(err error) error {
	switch {
	case is(err, backup.ErrNotFound):
		return withCode(exitUsage, err)
	case is(err, backup.ErrChecksumMismatch), is(err, backup.ErrMalformed):
		return withCode(exitValidation, err)
	default:
		return withCode(exitDB, err)
	}
}
