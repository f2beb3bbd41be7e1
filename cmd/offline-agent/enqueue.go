package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/offline-agent/pkg/pending"
)

func newEnqueueCmd(c *cli) *cobra.Command {
	var key, payload string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Add a record to the pending store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateLocal(); err != nil {
				return err
			}

			store, err := openPending(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Enqueue(cmd.Context(), pending.Record{
				Key:     key,
				Payload: json.RawMessage(payload),
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), rec.Key)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "record key (default: generated UUID)")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload to upload")
	_ = cmd.MarkFlagRequired("payload")

	return cmd
}
