package cli

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paintbench/paintbench/pkg/paced"
)

var (
	flagServeAddr    string
	flagServeRoot    string
	flagChunkBytes   int
	flagChunkDelayMs int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the paced content server standalone",
		Long: `Serves the content root with chunk pacing so the delivery behavior can
be inspected manually in a real browser. Interrupt to stop; the trace
summary is logged on shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := paced.DefaultConfig(flagServeRoot)
			cfg.Addr = flagServeAddr
			if flagChunkBytes > 0 {
				cfg.ChunkBytes = flagChunkBytes
			}
			if flagChunkDelayMs >= 0 {
				cfg.ChunkDelay = time.Duration(flagChunkDelayMs) * time.Millisecond
			}

			collector := paced.NewCollector()
			srv, err := paced.NewServer(cfg, collector)
			if err != nil {
				return err
			}
			addr, err := srv.Start()
			if err != nil {
				return err
			}
			log.Printf("paced server on http://%s (root=%s chunk=%dB delay=%s)",
				addr, cfg.Root, cfg.ChunkBytes, cfg.ChunkDelay)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}

			gaps := collector.GapSummary()
			log.Printf("served %d requests, pacing p50=%dms p99=%dms max=%dms",
				collector.Len(), gaps.P50, gaps.P99, gaps.Max)
			return nil
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&flagServeRoot, "root", "testdata", "directory to serve")
	serveCmd.Flags().IntVar(&flagChunkBytes, "chunk-bytes", 0, "bytes per chunk (default 16384)")
	serveCmd.Flags().IntVar(&flagChunkDelayMs, "chunk-delay-ms", -1, "delay between chunks in ms (default 60)")
	rootCmd.AddCommand(serveCmd)
}
