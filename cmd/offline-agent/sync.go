package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/offline-agent/pkg/pending"
)

func newSyncCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay the pending store to the upload endpoint once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateLocal(); err != nil {
				return err
			}

			uploader, err := newUploader(cfg)
			if err != nil {
				return err
			}

			store, err := openPending(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := pending.NewReplayer(store, uploader, nil).Replay(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync stopped after %d of %d records: %w", result.Uploaded, result.Total, err)
			}
			if !result.Completed {
				return fmt.Errorf("sync aborted by a pending store error after %d of %d records", result.Uploaded, result.Total)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "synced %d records\n", result.Uploaded)
			return nil
		},
	}
}
