package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type rollbackOptions struct {
	backupID string
	apply    bool
	yes      bool
}

func newRollbackCmd(root *rootOptions) *cobra.Command {
	var opts rollbackOptions
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore the store from a backup artifact (dry-run unless --apply)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback(cmd.Context(), root, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.backupID, "backup", "", "Backup id (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply rollback (default is dry-run)")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Confirm destructive rollback")
	_ = cmd.MarkFlagRequired("backup")
	return cmd
}

type rollbackSummary struct {
	Mode       string `json:"mode"`
	BackupID   string `json:"backup_id"`
	BackupRows int    `json:"backup_rows"`
	StoreRows  int    `json:"store_rows"`
}

func runRollback(ctx context.Context, root *rootOptions, opts rollbackOptions, out io.Writer) error {
	if strings.TrimSpace(opts.backupID) == "" {
		return withCode(exitUsage, fmt.Errorf("--backup is required"))
	}

	a, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.svc.Backups().LoadSnapshot(ctx, opts.backupID)
	if err != nil {
		return backupError(err)
	}
	current, err := a.store.Counts(ctx)
	if err != nil {
		return withCode(exitDB, err)
	}
	summary := rollbackSummary{
		Mode:       "dry_run",
		BackupID:   opts.backupID,
		BackupRows: snap.Counts().Total(),
		StoreRows:  current.Total(),
	}
	if !opts.apply {
		return writeJSONLine(out, summary)
	}
	if !opts.yes {
		return withCode(exitSafetyNet, fmt.Errorf("refusing to rollback without --yes"))
	}

	if err := a.svc.Rollbacks().Rollback(ctx, opts.backupID); err != nil {
		return withCode(exitRollback, err)
	}
	restored, err := a.store.Counts(ctx)
	if err != nil {
		return withCode(exitDB, err)
	}
	summary.Mode = "applied"
	summary.StoreRows = restored.Total()
	if err := writeJSONLine(out, summary); err != nil {
		return err
	}
	if !restored.Equal(snap.Counts()) {
		return withCode(exitDBWrite, fmt.Errorf("store holds %d rows after restoring %d", restored.Total(), summary.BackupRows))
	}
	return nil
}
