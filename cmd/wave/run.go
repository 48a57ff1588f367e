package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/wave/internal/app"
	"github.com/ayusman/wave/internal/capture"
	"github.com/ayusman/wave/internal/config"
	"github.com/ayusman/wave/internal/detector"
	"github.com/ayusman/wave/internal/emitter"
	"github.com/ayusman/wave/internal/log"
	"github.com/ayusman/wave/internal/plugin"
	"github.com/ayusman/wave/internal/server"
	"github.com/ayusman/wave/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recognize gestures and emit events until the source ends",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runPipeline(cmd.Context(), cfg)
	},
}

func init() {
	config.RegisterFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}

// runPipeline wires the model, journal, sinks and source, then runs the
// pipeline next to the optional HTTP API. Every opened resource is closed on
// return.
func runPipeline(ctx context.Context, cfg config.Config) error {
	override, err := cfg.LabelOverride()
	if err != nil {
		return err
	}
	model, err := store.LoadModel(cfg.ModelPath, override, cfg.Neighbors)
	if err != nil {
		return err
	}
	log.Info(log.Fields{
		"model":     cfg.ModelPath,
		"labels":    model.Labels.String(),
		"exemplars": model.Exemplars,
		"neighbors": cfg.Neighbors,
	}, "model loaded")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	journal, err := store.New(cfg.JournalPath())
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()

	plugins := plugin.NewManager(cfg.PluginDir)
	if err := plugins.Discover(); err != nil {
		log.Warn(log.Fields{"dir": cfg.PluginDir, "error": err}, "plugin discovery failed")
	}

	var hub *server.EventHub
	if cfg.HTTPAddr != "" {
		hub = server.NewEventHub()
	}

	em, err := buildEmitter(ctx, cfg, journal, plugins, hub)
	if err != nil {
		if ctx.Err() != nil {
			log.Info(log.Fields{"addr": cfg.OutboundAddr}, "stopped while connecting")
			return nil
		}
		return err
	}
	defer em.Close()

	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	pipeline, err := app.New(app.Config{
		Classifier: model.Classifier,
		Emitter:    em,
		Threshold:  cfg.Threshold,
		Cooldown:   cfg.Cooldown,
		Policy:     cfg.DebouncePolicy(),
		Headless:   cfg.Headless,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	g.Go(func() error {
		defer stopServing()
		return pipeline.Run(gctx, src)
	})

	if cfg.HTTPAddr != "" {
		srv := server.New(server.Config{
			Store:    journal,
			Pipeline: pipeline,
			Labels:   model.Labels,
			Plugins:  plugins,
			Events:   hub,
		})
		g.Go(func() error {
			return srv.ListenAndServe(serveCtx, cfg.HTTPAddr)
		})
	}

	return g.Wait()
}

// buildEmitter assembles the sinks in delivery order: log line, outbound
// stream, journal, plugin actions, Redis, WebSocket feed.
func buildEmitter(ctx context.Context, cfg config.Config, journal *store.Store, plugins *plugin.Manager, hub *server.EventHub) (*emitter.Emitter, error) {
	em := emitter.New()
	em.Add(emitter.LogSink{}, false)

	if cfg.OutboundAddr != "" {
		mode := cfg.Delivery()
		stream, err := emitter.DialStream(ctx, emitter.StreamConfig{
			Addr: cfg.OutboundAddr,
			Mode: mode,
		})
		if err != nil {
			return nil, err
		}
		em.Add(stream, mode == emitter.ModeRequired)
	}

	em.Add(emitter.NewJournalSink(journal.Events()), false)
	em.Add(emitter.NewPluginSink(journal.Bindings(), plugins, plugin.NewExecutor(plugin.DefaultTimeout)), false)

	if cfg.RedisAddr != "" {
		em.Add(emitter.NewRedisSink(ctx, emitter.RedisOptions{
			Addr:    cfg.RedisAddr,
			Channel: cfg.RedisChannel,
		}), false)
	}

	if hub != nil {
		em.Add(hub, false)
	}

	log.Info(log.Fields{"sinks": em.Sinks()}, "emitter ready")
	return em, nil
}

// openSource opens the configured frame source.
func openSource(cfg config.Config) (capture.Source, error) {
	if cfg.Source == config.SourceReplay {
		return capture.OpenReplay(cfg.ReplayPath)
	}
	return openCamera(cfg)
}

func openCamera(cfg config.Config) (*capture.CameraSource, error) {
	detCfg := detector.DefaultConfig()
	detCfg.MaxHands = cfg.MaxHands
	det, err := detector.NewMediaPipeDetector(detCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrSourceUnavailable, err)
	}

	src, err := capture.NewCameraSource(capture.NewCamera(cfg.CameraID), det, capture.CameraOptions{
		FPS:             cfg.FPS,
		MotionThreshold: cfg.MotionThreshold,
	})
	if err != nil {
		det.Close()
		return nil, err
	}
	log.Info(log.Fields{"camera": cfg.CameraID, "fps": cfg.FPS}, "camera opened")
	return src, nil
}
