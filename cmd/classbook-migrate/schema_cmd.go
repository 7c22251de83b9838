package main

import (
	"github.com/spf13/cobra"
)

type schemaLine struct {
	Version    int64  `json:"version"`
	Source     string `json:"source"`
	DurationMS int64  `json:"duration_ms"`
}

func newSchemaCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.close()

			for _, r := range a.applied {
				if r.Source == nil {
					continue
				}
				if err := writeJSONLine(cmd.OutOrStdout(), schemaLine{
					Version:    r.Source.Version,
					Source:     r.Source.Path,
					DurationMS: r.Duration.Milliseconds(),
				}); err != nil {
					return err
				}
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"applied": len(a.applied),
				"dialect": a.store.Dialect(),
			})
		},
	}
}
