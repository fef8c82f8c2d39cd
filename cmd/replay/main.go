// replay plays a feature recording through the engine and prints every
// cursor command, transition, and action. Useful for tuning thresholds
// against a captured session without a camera attached.
//
// Usage:
//
//	replay -recording session.jsonl -model calibration.json -speed 4
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gazemouse/internal/config"
	"gazemouse/internal/log"
	"gazemouse/pkg/calibration"
	"gazemouse/pkg/engine"
	"gazemouse/pkg/feature"
	"gazemouse/pkg/gesture"
	"gazemouse/pkg/replay"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	recordingPath := flag.String("recording", "", "feature recording to play (required)")
	modelPath := flag.String("model", "", "calibration model file (overrides config)")
	speed := flag.Float64("speed", 1.0, "playback speed factor; 0 plays unpaced")
	flag.Parse()

	if *recordingPath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -recording session.jsonl [-model calibration.json]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.Logging.Level)

	f, err := os.Open(*recordingPath)
	if err != nil {
		log.Error("cannot open recording", "path", *recordingPath, "err", err)
		os.Exit(1)
	}
	frames, err := replay.ReadAll(f)
	f.Close()
	if err != nil {
		log.Error("cannot read recording", "path", *recordingPath, "err", err)
		os.Exit(1)
	}

	path := cfg.Calibration.ModelPath
	if *modelPath != "" {
		path = *modelPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("cannot read calibration model", "path", path, "err", err)
		os.Exit(1)
	}
	model, err := calibration.Decode(data)
	if err != nil {
		log.Error("cannot decode calibration model", "err", err)
		os.Exit(1)
	}

	eng := engine.New(cfg.EngineConfig(), &printDriver{}, cfg.TriggerRegistry())
	eng.SetPreprocessor(cfg.Preprocessor())
	eng.SetClassifier(gesture.New(cfg.GestureConfig()))
	eng.SetModel(model)
	eng.OnTransition = func(tr engine.Transition) {
		fmt.Printf("%s  %s -> %s\n", tr.At.Format("15:04:05.000"), tr.From, tr.To)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		eng.Stop()
		cancel()
	}()

	if err := eng.Start(); err != nil {
		log.Error("cannot start control session", "err", err)
		os.Exit(1)
	}

	go func() {
		player := replay.NewPlayer(frames, *speed)
		if err := player.Play(ctx, eng); err != nil {
			log.Debug("playback stopped", "err", err)
		}
		// Recording exhausted; the inactivity timer will end the session.
		log.Info("recording complete", "frames", player.Len())
	}()

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		log.Error("control loop failed", "err", err)
		os.Exit(1)
	}
}

// printDriver writes cursor commands to stdout.
type printDriver struct{}

func (printDriver) MoveTo(p feature.GazePoint) {
	fmt.Printf("move (%.3f, %.3f) conf %.2f\n", p.X, p.Y, p.Confidence)
}

func (printDriver) SetEnlarged(enlarged bool) {
	fmt.Printf("cursor enlarged=%v\n", enlarged)
}

func (printDriver) DispatchAction(kind engine.ActionKind) {
	fmt.Printf("action %s\n", kind)
}
