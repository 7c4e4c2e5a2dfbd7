package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"pano/config"
	"pano/metrics"
	"pano/notify"
	"pano/pano"
	"pano/serve"
	"pano/stitch"
	"pano/storage"
	"pano/store"
	"pano/video"
	"pano/video/source"
	"pano/watch"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON configuration file. Reloaded on change in watch mode.")
	input       = flag.String("input", pano.DefaultInput, "Path to the input video.")
	output      = flag.String("output", pano.DefaultOutput, "Path of the panorama to write; the extension picks the format.")
	interval    = flag.Int("interval", pano.DefaultInterval, "Number of frames between two samples. Use a lower interval for shorter videos.")
	minFrames   = flag.Int("min_frames", pano.DefaultMinFrames, "Fewest sampled frames worth stitching (at least 2).")
	mode        = flag.String("mode", "panorama", "Stitcher model: panorama or scans.")
	watchDir    = flag.String("watch", "", "Watch this directory and stitch every new video instead of a single run.")
	library     = flag.String("library", "", "Directory for panoramas produced in watch mode.")
	port        = flag.Int("port", 8080, "Port to serve the panorama API on in watch mode.")
	pushgateway = flag.String("pushgateway", "", "Prometheus Pushgateway URL to push metrics to after a single run.")
	verbose     = flag.Bool("v", false, "Enable debug logging.")
)

// applyFlags copies explicitly set flags over c.
func applyFlags(c *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			c.Input = *input
		case "output":
			c.Output = *output
		case "interval":
			c.Interval = *interval
		case "min_frames":
			c.MinFrames = *minFrames
		case "mode":
			c.Mode = *mode
		case "watch":
			c.WatchDir = *watchDir
		case "library":
			c.LibraryPath = *library
		case "port":
			c.Port = *port
		case "pushgateway":
			c.Pushgateway = *pushgateway
		}
	})
}

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *configPath != "" {
		if err := config.Load(ctx, *configPath, applyFlags); err != nil {
			fmt.Println("Invalid configuration:", err)
			os.Exit(1)
		}
	} else {
		c, err := config.Parse("")
		if err == nil {
			applyFlags(c)
			err = c.Validate()
		}
		if err != nil {
			fmt.Println("Invalid configuration:", err)
			os.Exit(1)
		}
		config.Set(c)
	}

	c := config.Get()
	if c.WatchDir != "" {
		if err := runDaemon(ctx, c); err != nil {
			log.Fatalf("Daemon failed: %v", err)
		}
		return
	}
	os.Exit(runOnce(c))
}

func runOnce(c *config.Config) int {
	if info, err := source.Probe(c.Input); err == nil {
		log.Infof("Input %v: %d frames at %.2f fps, %dx%d, %ds",
			c.Input, info.Frames, info.FPS, info.Size.X, info.Size.Y, info.DurationSec)
	}

	var db *store.Store
	if c.DatabaseDSN != "" {
		var err error
		if db, err = store.Open(c.DatabaseDriver, c.DatabaseDSN); err != nil {
			log.Errorf("Unable to open record store: %v", err)
			return 1
		}
		defer db.Close()
	}
	rec := store.NewRecord(c.Input, c.Interval)
	if db != nil {
		if err := db.Create(rec); err != nil {
			log.Warnf("Failed to create record: %v", err)
		}
	}

	runner := pano.NewRunner(c.StitchMode())
	res, err := runner.Run(c.Options())

	if db != nil {
		rec.FramesRead, rec.FramesSampled = res.FramesRead, res.FramesSampled
		rec.Width, rec.Height = res.Size.X, res.Size.Y
		rec.ElapsedMs = res.Elapsed.Milliseconds()
		rec.Outcome = pano.Outcome(err)
		rec.Status = store.StatusDone
		if err != nil {
			rec.Status = store.StatusFailed
			rec.Error = err.Error()
		} else {
			rec.PanoPath = res.Output
		}
		if err := db.Update(rec); err != nil {
			log.Warnf("Failed to update record: %v", err)
		}
	}

	if c.Pushgateway != "" {
		if err := metrics.Push(c.Pushgateway, "pano"); err != nil {
			log.Warnf("Failed to push metrics: %v", err)
		}
	}

	switch {
	case errors.Is(err, pano.ErrInsufficientFrames):
		fmt.Println("Not enough frames to create a panorama. Try reducing the interval.")
		log.Debug(err)
	case err != nil:
		fmt.Println("Error:", err)
	}
	return pano.ExitCode(err)
}

func runDaemon(ctx context.Context, c *config.Config) error {
	lib, err := video.NewLibrary(c.LibraryPath, c.OutputExt)
	if err != nil {
		return fmt.Errorf("failed to create library: %w", err)
	}

	dsn := c.DatabaseDSN
	if c.DatabaseDriver == "sqlite" && dsn == "" {
		dsn = lib.BasePath + "/" + store.DatabaseFile
	}
	db, err := store.Open(c.DatabaseDriver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	updater := serve.NewMetaUpdater()
	notifier := &notify.Notifier{}
	notifier.Add(updater)

	push, err := notify.NewWebPush(db.DB(), c.PushSubscriber)
	if err != nil {
		log.Warnf("Web push disabled: %v", err)
		push = nil
	} else {
		notifier.Add(push)
	}

	d := &watch.Daemon{
		NewRunner: func(m stitch.Mode) watch.Runner {
			return pano.NewRunner(m)
		},
		Library:  lib,
		Store:    db,
		Listener: notifier,
		Options: func() pano.Options {
			return config.Get().Options()
		},
		Mode: func() stitch.Mode {
			return config.Get().StitchMode()
		},
	}
	if c.Upload.Enabled() {
		u, err := storage.NewUploader(storage.Options(c.Upload))
		if err != nil {
			return err
		}
		if err := u.EnsureBucket(ctx); err != nil {
			return err
		}
		d.Uploader = u
	}
	d.Start()
	defer d.Close()

	srv := &serve.Server{
		Store:   db,
		Updater: updater,
		Trigger: &serve.TriggerServer{Dir: c.WatchDir, Enqueue: d.Enqueue},
		Push:    push,
	}
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Port),
		Handler: srv.Handler(),
	}
	go func() {
		log.Infof("Hosting panorama API on port %d", c.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	w := &watch.Watcher{
		Dir: c.WatchDir,
		Enqueue: func(p string) {
			d.Enqueue(p)
		},
	}
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- w.Run(ctx)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		log.Println("Caught signal", sig)
	case err := <-watchErr:
		if err != nil {
			log.Errorf("Directory watch stopped: %v", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return httpSrv.Shutdown(shutdownCtx)
}
