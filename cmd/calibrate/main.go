// calibrate fits a calibration model from recorded samples and writes it to
// disk for the engine to load.
//
// The samples file is JSONL: one {"feature": ..., "target": ...} object per
// line, as captured while the user fixated each grid point.
//
// Usage:
//
//	calibrate -samples samples.jsonl -out calibration.json
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gazemouse/internal/config"
	"gazemouse/internal/log"
	"gazemouse/pkg/calibration"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	samplesPath := flag.String("samples", "samples.jsonl", "recorded calibration samples")
	outPath := flag.String("out", "", "output model file (defaults to config model_path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.Logging.Level)

	samples, err := readSamples(*samplesPath)
	if err != nil {
		log.Error("cannot read samples", "path", *samplesPath, "err", err)
		os.Exit(1)
	}

	session := calibration.NewSession(cfg.CalibrationConfig())
	skipped := 0
	for _, s := range samples {
		if s.Feature.FaceLost() || !s.Feature.Valid() {
			skipped++
		}
		if err := session.Add(s); err != nil {
			log.Error("adding sample", "err", err)
			os.Exit(1)
		}
	}
	log.Info("samples loaded", "total", len(samples), "skipped", skipped,
		"grid_cells", len(session.Samples()))

	model, err := session.Finish()
	if err != nil {
		log.Error("fit failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("model %s\n", model.Version)
	fmt.Printf("  rms residual:     %.4f\n", model.Residual)
	fmt.Printf("  excluded samples: %d\n", model.ExcludedSamples)
	for i, r := range model.PointResiduals {
		fmt.Printf("  point %2d residual %.4f\n", i, r)
	}

	path := cfg.Calibration.ModelPath
	if *outPath != "" {
		path = *outPath
	}
	data, err := calibration.Encode(model)
	if err != nil {
		log.Error("encoding model", "err", err)
		os.Exit(1)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Error("writing model", "path", path, "err", err)
		os.Exit(1)
	}
	log.Info("model written", "path", path)
}

func readSamples(path string) ([]calibration.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []calibration.Sample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var s calibration.Sample
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
