package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dqcheck-cli/internal/dedupe"
	"github.com/KaramelBytes/dqcheck-cli/internal/report"
	"github.com/KaramelBytes/dqcheck-cli/internal/server"
	"github.com/KaramelBytes/dqcheck-cli/internal/store"
)

var (
	serveAddr       string
	serveNoHistory  bool
	serveMaxRecords int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API for profiling and duplicate detection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr := cfg.ServeAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		opt, err := scanOptionsFromConfig()
		if err != nil {
			return err
		}
		var st *store.Store
		if !serveNoHistory {
			if st, err = openStore(); err != nil {
				return err
			}
			defer st.Close()
		}
		srv := server.New(opt, st)
		srv.MaxRecords = serveMaxRecords

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		hs := &http.Server{Handler: srv.Router(), ReadHeaderTimeout: 10 * time.Second}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Listening on http://%s\n", ln.Addr())
		zap.L().Info("serve: listening", zap.String("addr", ln.Addr().String()), zap.Bool("history", st != nil))
		return serveUntilDone(cmd.Context(), hs, ln)
	},
}

// serveUntilDone serves on ln until ctx is cancelled, then shuts down gracefully.
func serveUntilDone(ctx context.Context, hs *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	zap.L().Info("serve: shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// scanOptionsFromConfig builds report options from the configured defaults.
func scanOptionsFromConfig() (report.Options, error) {
	opt := report.DefaultOptions()
	opt.Profile.OutlierThreshold = cfg.OutlierThreshold
	opt.Dedupe.Threshold = cfg.DedupeThreshold
	opt.Dedupe.BlockSize = cfg.DedupeBlockSize
	opt.Dedupe.MinNonNull = cfg.DedupeMinNonNull
	opt.Dedupe.MaxPairsPerBlock = cfg.DedupeMaxPairsPerBlock
	sc, err := dedupe.ScorerByName(cfg.DedupeScorer)
	if err != nil {
		return opt, err
	}
	opt.Dedupe.Scorer = sc
	return opt, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config serve_addr)")
	serveCmd.Flags().BoolVar(&serveNoHistory, "no-history", false, "disable scan history endpoints")
	serveCmd.Flags().IntVar(&serveMaxRecords, "max-records", server.DefaultMaxRecords, "maximum records accepted per request")
}
