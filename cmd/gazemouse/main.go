// gazemouse runs the gaze-driven cursor control engine.
//
// Frames arrive as JSONL feature vectors on stdin (the landmark extractor
// pipes into us) or from a recording via -replay. Cursor commands go to the
// logging driver; an OS integration replaces it by embedding the engine.
//
// Usage:
//
//	extractor | gazemouse -config config.yaml -model calibration.json
//	gazemouse -replay session.jsonl -speed 2
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gazemouse/internal/config"
	"gazemouse/internal/log"
	"gazemouse/pkg/calibration"
	"gazemouse/pkg/debug"
	"gazemouse/pkg/engine"
	"gazemouse/pkg/feature"
	"gazemouse/pkg/gesture"
	"gazemouse/pkg/replay"
	"gazemouse/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	modelPath := flag.String("model", "", "calibration model file (overrides config)")
	replayPath := flag.String("replay", "", "play a recording instead of reading stdin")
	speed := flag.Float64("speed", 1.0, "replay speed factor; 0 plays unpaced")
	recordPath := flag.String("record", "", "tee incoming frames to a recording file")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	debugFrames := flag.Bool("debug-frames", false, "enable very verbose per-frame logs")
	flag.Parse()

	debug.Enabled = *debugFlag
	debug.Frames = *debugFrames

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "config: %s\n", issue)
		}
		os.Exit(1)
	}

	log.Init(cfg.Logging.Level)

	eng := engine.New(cfg.EngineConfig(), newLogDriver(), cfg.TriggerRegistry())
	eng.SetPreprocessor(cfg.Preprocessor())
	eng.SetClassifier(gesture.New(cfg.GestureConfig()))

	path := cfg.Calibration.ModelPath
	if *modelPath != "" {
		path = *modelPath
	}
	model, err := loadModel(path)
	if err != nil {
		log.Error("cannot load calibration model, run the calibrate tool first",
			"path", path, "err", err)
		os.Exit(1)
	}
	eng.SetModel(model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received signal, stopping")
		eng.Stop()
		cancel()
	}()

	if cfg.Dashboard.Enabled {
		srv := web.NewServer(cfg.Dashboard.Port, eng)
		// NotifyTransition only queues on a hub, so it is safe from the
		// control loop; snapshots are published from their own ticker.
		eng.OnTransition = srv.NotifyTransition
		go publishSnapshots(ctx, srv)
		srv.StartAsync(ctx)
		defer srv.Shutdown()
	}

	var sink replay.Sink = eng
	if *recordPath != "" {
		f, err := os.Create(*recordPath)
		if err != nil {
			log.Error("cannot create recording", "path", *recordPath, "err", err)
			os.Exit(1)
		}
		defer f.Close()
		sink = &teeSink{eng: eng, rec: replay.NewWriter(f)}
		log.Info("recording frames", "path", *recordPath)
	}

	go feedFrames(ctx, *replayPath, *speed, sink)

	if err := eng.Start(); err != nil {
		log.Error("cannot start control session", "err", err)
		os.Exit(1)
	}

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		log.Error("control loop failed", "err", err)
		os.Exit(1)
	}
	log.Info("session complete")
}

// publishSnapshots streams the engine state to dashboard clients at 10Hz.
func publishSnapshots(ctx context.Context, srv *web.Server) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.PublishSnapshot()
		}
	}
}

// feedFrames pumps features into the sink, from a recording or from stdin.
func feedFrames(ctx context.Context, replayPath string, speed float64, sink replay.Sink) {
	if replayPath != "" {
		f, err := os.Open(replayPath)
		if err != nil {
			log.Error("cannot open recording", "path", replayPath, "err", err)
			return
		}
		defer f.Close()

		frames, err := replay.ReadAll(f)
		if err != nil {
			log.Error("cannot read recording", "path", replayPath, "err", err)
			return
		}
		log.Info("playing recording", "path", replayPath, "frames", len(frames), "speed", speed)
		if err := replay.NewPlayer(frames, speed).Play(ctx, sink); err != nil {
			log.Debug("playback stopped", "err", err)
		}
		return
	}

	reader := replay.NewReader(os.Stdin)
	for {
		f, err := reader.Next()
		if err == io.EOF {
			log.Info("frame stream ended")
			return
		}
		if err != nil {
			log.Warn("bad frame on stdin", "err", err)
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		sink.Offer(f)
	}
}

// teeSink forwards frames to the engine while appending them to a recording.
type teeSink struct {
	eng *engine.Engine
	rec *replay.Writer
}

func (t *teeSink) Offer(f feature.Vector) {
	if err := t.rec.Write(f); err != nil {
		log.Warn("recording write failed", "err", err)
	}
	t.eng.Offer(f)
}

func loadModel(path string) (*calibration.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return calibration.Decode(data)
}

// logDriver prints cursor commands instead of issuing OS calls. It is the
// default output boundary; platform integrations implement the same
// interface against their windowing system.
type logDriver struct{}

func newLogDriver() *logDriver {
	return &logDriver{}
}

func (d *logDriver) MoveTo(p feature.GazePoint) {
	debug.FrameLog("cursor -> (%.3f, %.3f)\n", p.X, p.Y)
}

func (d *logDriver) SetEnlarged(enlarged bool) {
	log.Debug("cursor enlarged", "enlarged", enlarged)
}

func (d *logDriver) DispatchAction(kind engine.ActionKind) {
	log.Info("action", "kind", string(kind))
}
