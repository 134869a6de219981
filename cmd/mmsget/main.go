package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zsiec/mmsget/internal/asf"
	"github.com/zsiec/mmsget/internal/config"
	"github.com/zsiec/mmsget/internal/httpstream"
	"github.com/zsiec/mmsget/internal/mmsh"
	"github.com/zsiec/mmsget/internal/observability"
	"github.com/zsiec/mmsget/internal/sink"
	"github.com/zsiec/mmsget/internal/stream"
)

var version = "dev"

const progressInterval = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("MMSGET_CONFIG"), "path to a TOML config file")
	output := flag.String("o", "", "output file for the URL given on the command line")
	seek := flag.Duration("seek", 0, "start position for the URL given on the command line")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] [-o output] [-seek dur] [url]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if os.Getenv("DEBUG") != "" {
		cfg.LogLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if u := flag.Arg(0); u != "" {
		out := *output
		if out == "" {
			out = outputName(u)
		}
		cfg.Downloads = append(cfg.Downloads, config.Download{URL: u, Output: out, Seek: *seek})
	}
	if len(cfg.Downloads) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	slog.Info("mmsget starting", "version", version, "downloads", len(cfg.Downloads))

	mgr := stream.NewManager(nil)

	// Auxiliary services stop once every download has ended.
	auxCtx, auxCancel := context.WithCancel(ctx)
	aux, auxCtx := errgroup.WithContext(auxCtx)
	if cfg.MetricsAddr != "" {
		startMetrics(auxCtx, aux, cfg.MetricsAddr, mgr)
	}
	aux.Go(func() error {
		reportProgress(auxCtx, mgr)
		return nil
	})

	var downloads errgroup.Group
	for _, dl := range cfg.Downloads {
		downloads.Go(func() error {
			err := runDownload(ctx, cfg, dl, mgr)
			if err != nil {
				slog.Error("download failed", "url", dl.URL, "output", dl.Output, "error", err)
			}
			return err
		})
	}
	dlErr := downloads.Wait()
	auxCancel()

	if err := aux.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	if dlErr != nil {
		os.Exit(1)
	}
}

// runDownload fetches one stream into its output file and returns the
// outcome reported to the sink.
func runDownload(ctx context.Context, cfg config.Config, dl config.Download, mgr *stream.Manager) error {
	target, err := mmsh.HTTPURL(dl.URL)
	if err != nil {
		return err
	}

	log := slog.Default().With("output", dl.Output)
	out, err := sink.Create(dl.Output, log)
	if err != nil {
		return err
	}
	defer out.Close()

	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}
	client := httpstream.New(httpstream.Options{
		Limiter:   rate.NewLimiter(limit, cfg.RequestBurst),
		ChunkSize: cfg.ChunkSize,
		Log:       log,
	})

	d := mmsh.New(mmsh.Config{
		URL:                       target,
		UserAgent:                 cfg.UserAgent,
		ClientGUID:                cfg.ClientGUID,
		MaxResends:                maxResends(cfg.MaxResends),
		BandwidthLimitedSelection: cfg.BandwidthLimitedSelection,
		Log:                       log,
	}, client, asf.Parser{}, out)

	if _, created := mgr.Create(dl.Output, target, d.Stats); !created {
		return fmt.Errorf("output %s is already being downloaded", dl.Output)
	}
	defer mgr.Remove(dl.Output)

	if dl.Seek > 0 {
		if err := d.SeekTo(dl.Seek); err != nil {
			return err
		}
	}
	if err := d.Start(); err != nil {
		return err
	}

	runErr := client.Run(ctx, d)

	select {
	case <-out.Done():
	default:
		// The transport stopped without a terminal notification.
		if runErr == nil {
			runErr = errors.New("transport stopped before the download ended")
		}
		out.NotifyFailed(runErr)
	}
	if err := out.Err(); err != nil {
		return err
	}

	s := d.Session()
	slog.Info("download complete",
		"url", target,
		"output", dl.Output,
		"bytes", d.Stats().BytesWritten,
		"seekable", s.Seekable,
		"end_reason", s.EndReason,
	)
	return nil
}

// maxResends maps the config value, where 0 disables restarts, to the
// downloader's convention, where 0 selects the default.
func maxResends(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

func startMetrics(ctx context.Context, g *errgroup.Group, addr string, mgr *stream.Manager) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(observability.NewCollector(mgr)))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		slog.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func reportProgress(ctx context.Context, mgr *stream.Manager) {
	t := time.NewTicker(progressInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, d := range mgr.List() {
				s := d.Stats()
				slog.Info("progress",
					"output", d.Key,
					"received", s.BytesReceived,
					"written", s.BytesWritten,
					"data_packets", s.DataPackets,
					"resends", s.Resends,
					"elapsed", time.Since(d.StartedAt).Round(time.Second),
				)
			}
		}
	}
}

// outputName derives a file name from the last path element of rawURL.
func outputName(rawURL string) string {
	var name string
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return "stream.asf"
	}
	if path.Ext(name) == "" {
		name += ".asf"
	}
	return name
}
