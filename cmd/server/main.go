package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vogaflex/crm-insights/internal/export"
	httpapi "github.com/vogaflex/crm-insights/internal/http"
	"github.com/vogaflex/crm-insights/internal/session"
)

func main() {
	root := &cobra.Command{Use: "crm-insights", SilenceUsage: true}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	var (
		out      string
		vendedor string
		status   string
		etapa    string
		search   string
		from     string
		to       string
	)
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered conversation list as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), out, session.StatePatch{
				Vendedor: optional(vendedor),
				Status:   optional(status),
				Etapa:    optional(etapa),
				DateFrom: optional(from),
				DateTo:   optional(to),
			}, search)
		},
	}
	exportCmd.Flags().StringVar(&out, "out", "orcamentos.csv", "output file, - for stdout")
	exportCmd.Flags().StringVar(&vendedor, "vendedor", "", "vendor filter")
	exportCmd.Flags().StringVar(&status, "status", "", "status filter")
	exportCmd.Flags().StringVar(&etapa, "etapa", "", "funnel stage filter")
	exportCmd.Flags().StringVar(&search, "search", "", "free-text search")
	exportCmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	exportCmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")

	var (
		snapFrom   string
		snapTo     string
		snapPreset string
		snapVendor string
	)
	snapshot := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the analytics dashboard as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), snapFrom, snapTo, snapPreset, snapVendor)
		},
	}
	snapshot.Flags().StringVar(&snapFrom, "from", "", "first day, YYYY-MM-DD")
	snapshot.Flags().StringVar(&snapTo, "to", "", "last day, YYYY-MM-DD")
	snapshot.Flags().StringVar(&snapPreset, "preset", "month", "week, month or quarter")
	snapshot.Flags().StringVar(&snapVendor, "vendor", "", "vendor filter")

	root.AddCommand(serve, exportCmd, snapshot)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	router := httpapi.Router(a.cfg, a.session, a.pinger, logger)
	srv := &http.Server{
		Addr:    ":" + a.cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", a.cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
	return nil
}

func runExport(ctx context.Context, out string, patch session.StatePatch, search string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.session.Update(patch)
	a.session.SetSearchNow(search)
	if err := a.session.RefreshConversations(ctx); err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	convs := a.session.Filtered()

	w := os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := export.WriteCSV(w, convs); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	a.logger.Info().Int("rows", len(convs)).Str("out", out).Msg("export finished")
	return nil
}

func runSnapshot(ctx context.Context, from, to, preset, vendor string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	q, preset := a.session.DashboardQuery(from, to, preset, vendor)
	snap, err := a.session.Snapshot(ctx, q, preset, "")
	if err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
