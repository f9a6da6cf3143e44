package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carebridge-ai/companion/config"
	"github.com/carebridge-ai/companion/internal/index"
	"github.com/carebridge-ai/companion/internal/index/embedded"
	"github.com/carebridge-ai/companion/internal/index/opensearch"
)

func statsCMD() *cobra.Command {
	var cfgPath string
	var stats = &cobra.Command{
		Use:   "stats",
		Short: "Print knowledge index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			var idx index.Index
			var err error
			switch cfg.Index.Backend {
			case "opensearch":
				idx = opensearch.New(cfg.Index.OpenSearch, cfg.Index.Vectors)
			default:
				idx, err = embedded.New()
				if err != nil {
					return err
				}
			}

			s, err := idx.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("index:     %s\n", s.IndexName)
			fmt.Printf("documents: %d\n", s.DocumentCount)
			fmt.Printf("size:      %.2f MB\n", float64(s.SizeBytes)/(1024*1024))
			return nil
		},
	}
	stats.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return stats
}
