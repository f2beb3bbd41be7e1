package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newGenerationsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "generations",
		Short: "List cache generation names",
		Long: `List cache generation names.

With --redis-url the names are read from Redis. Otherwise the running agent
at --listen is asked, since in-memory generations live in its process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}

			var names []string
			if cfg.RedisURL != "" {
				store, closeStore, err := openCache(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer closeStore()

				if names, err = store.Names(cmd.Context()); err != nil {
					return err
				}
			} else {
				if names, err = remoteGenerations(cmd, "http://"+cfg.Listen); err != nil {
					return err
				}
			}

			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func remoteGenerations(cmd *cobra.Command, base string) ([]string, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, base+"/_agent/generations", nil)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 5 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query agent: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Generations []string `json:"generations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode generations: %w", err)
	}
	return out.Generations, nil
}
