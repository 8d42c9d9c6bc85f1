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

	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/o0olele/regionnav-go/config"
	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/graph/graphtest"
	"github.com/o0olele/regionnav-go/logging"
	"github.com/o0olele/regionnav-go/scene"
	"github.com/o0olele/regionnav-go/scheduler"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "regionnav",
		Short: "Region graph pathfinding server and dataset tools",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(bakeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath, scenePath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load a scene and serve the debug API with a running scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, scenePath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVarP(&scenePath, "scene", "s", "", "hjson scene manifest")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, scenePath string) error {
	logger := cfg.Logger()

	g := graph.NewRegionGraph(graph.WithLogger(logging.WithComponent(logger, "graph")))
	if scenePath != "" {
		m, err := scene.Load(scenePath)
		if err != nil {
			return err
		}
		if err := m.Apply(g); err != nil {
			return fmt.Errorf("applying scene %s: %w", scenePath, err)
		}
		logger.Info("scene loaded", "path", scenePath, "areas", g.Snapshot().AreaCount())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sched, err := scheduler.New(g, cfg.Scheduler,
		scheduler.WithLogger(logging.WithComponent(logger, "scheduler")),
		scheduler.WithMetrics(scheduler.NewMetrics(reg)),
	)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Teardown()

	srv := newServer(cfg, g, sched, reg, logger)
	defer srv.close()

	if cfg.Server.PprofAddr != "" {
		go func() {
			logger.Info("pprof listening", "addr", cfg.Server.PprofAddr)
			if err := http.ListenAndServe(cfg.Server.PprofAddr, nil); err != nil {
				logger.Warn("pprof listener stopped", "error", err)
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(cfg.Server.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.tick()
			}
		}
	}()

	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: srv.handler()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr, "mode", cfg.Scheduler.Mode.String())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("server shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [dataset-file]",
		Short: "Print the header and section sizes of a dataset file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := graph.GetFileInfo(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}

func bakeCmd() *cobra.Command {
	var (
		shape, kind  string
		count        int
		width, depth int
		size         float32
		compress     bool
	)

	cmd := &cobra.Command{
		Use:   "bake [output-file]",
		Short: "Write a generated corridor or grid dataset file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ds *graph.Dataset
			switch shape {
			case "corridor":
				k, err := graph.ParseAreaKind(kind)
				if err != nil {
					return err
				}
				ds = graphtest.Corridor(k, count, size)
			case "grid":
				ds = graphtest.Grid(width, depth, size)
			default:
				return fmt.Errorf("unknown shape %q", shape)
			}
			if err := ds.Validate(); err != nil {
				return err
			}

			graph.UseGzip(compress)
			if err := graph.Save(ds, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d regions, %d bytes of link data\n", args[0], len(ds.Regions), ds.GetDataSize())
			return nil
		},
	}

	cmd.Flags().StringVar(&shape, "shape", "corridor", "corridor or grid")
	cmd.Flags().StringVar(&kind, "kind", "volume", "corridor area kind: volume or surface")
	cmd.Flags().IntVar(&count, "count", 4, "corridor cell count")
	cmd.Flags().IntVar(&width, "width", 4, "grid width")
	cmd.Flags().IntVar(&depth, "depth", 4, "grid depth")
	cmd.Flags().Float32Var(&size, "size", 1, "cell size")
	cmd.Flags().BoolVar(&compress, "gzip", false, "compress the file")
	return cmd
}
