package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"contsub/internal/logger"
	"contsub/internal/models"
	"contsub/pkg/config"
	"contsub/pkg/contsub"
	"contsub/pkg/cubeio"
	"contsub/pkg/visualization"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "contsub: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("contsub", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "contsub.yaml", "YAML configuration file (defaults are used when missing)")
	initConfig := fs.Bool("init-config", false, "Write the default configuration to -config and exit")
	cubePath := fs.String("cube", "", "Input cube file")
	axisPath := fs.String("axis", "", "Input spectral axis file")
	maskPath := fs.String("mask", "", "Input mask file (overrides mask generation)")
	outDir := fs.String("out", "contsub_out", "Output directory")

	method := fs.String("method", "", "Fitting method: spline or median")
	order := fs.Int("order", 0, "Spline order")
	width := fs.Float64("width", 0, "Knot spacing or median window in km/s")
	entropy := fs.Uint64("seed", 0, "Entropy for the knot jitter stream")
	workers := fs.Int("workers", 0, "Number of worker goroutines")
	clip := fs.String("clip", "", "Mask generation: pixel, channel or none")
	clipN := fs.Float64("n", 0, "Clip threshold in units of the spread")
	spread := fs.String("spread", "", "Spread estimator: rms or mad")
	dilation := fs.Int("dilation", 0, "Binary dilation passes for pixel clipping")
	preview := fs.String("preview", "", "Directory for channel-map previews")
	verbose := fs.Bool("v", false, "Debug logging")
	jsonLogs := fs.Bool("json", false, "Log JSON lines")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Default configuration written to %s\n", *configPath)
		return nil
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	// Flags given on the command line override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "method":
			cfg.Fit.Method = *method
		case "order":
			cfg.Fit.Order = *order
		case "width":
			cfg.Fit.Width = *width
		case "seed":
			cfg.Fit.Entropy = *entropy
		case "workers":
			cfg.Processing.NumWorkers = *workers
		case "clip":
			if *clip == "none" {
				cfg.Mask.Enabled = false
			} else {
				cfg.Mask.Enabled = true
				cfg.Mask.Method = *clip
			}
		case "n":
			cfg.Mask.N = *clipN
		case "spread":
			cfg.Mask.Spread = *spread
		case "dilation":
			cfg.Mask.Dilation = *dilation
		case "preview":
			cfg.Output.PreviewDir = *preview
		case "v":
			cfg.Output.Verbose = *verbose
		case "json":
			cfg.Output.LogJSON = *jsonLogs
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if cfg.Output.Verbose {
		level = zerolog.DebugLevel
	}
	log := logger.New(stderr, level, cfg.Output.LogJSON)

	if *cubePath == "" || *axisPath == "" {
		fs.Usage()
		return errors.New("-cube and -axis are required")
	}
	return process(cfg, log, *cubePath, *axisPath, *maskPath, *outDir)
}

func process(cfg *config.Config, log zerolog.Logger, cubePath, axisPath, maskPath, outDir string) error {
	start := time.Now()

	axis, err := cubeio.LoadAxis(axisPath)
	if err != nil {
		return err
	}
	cube, err := cubeio.LoadCube(cubePath)
	if err != nil {
		return err
	}
	log.Info().Str("cube", cubePath).Str("shape", cube.Shape.String()).Msg("loaded cube")
	if err := axis.Validate(); err != nil {
		log.Warn().Err(err).Msg("spectral axis is not strictly monotonic")
	}

	var mask *models.Mask
	switch {
	case maskPath != "":
		if mask, err = cubeio.LoadMask(maskPath); err != nil {
			return err
		}
	case cfg.Mask.Enabled:
		clipper, err := cfg.BuildClipper(logger.Component(log, "clipping"))
		if err != nil {
			return err
		}
		if mask, err = contsub.NewMask(clipper).GetMask(cube); err != nil {
			return fmt.Errorf("mask generation failed: %w", err)
		}
		log.Info().
			Str("method", clipper.Name()).
			Int("flagged", mask.Size()-mask.Count()).
			Msg("mask generated")
		if err := cubeio.SaveMask(filepath.Join(outDir, "mask.csub"), mask); err != nil {
			return err
		}
	}

	fitter, err := cfg.BuildFitter(logger.Component(log, "fitting"))
	if err != nil {
		return err
	}

	nextReport := 10
	sub, err := contsub.New(axis, cube, fitter, mask,
		contsub.WithWorkers(cfg.Processing.NumWorkers),
		contsub.WithLogger(logger.Component(log, "contsub")),
		contsub.WithProgress(func(done, total int) {
			if pct := done * 100 / total; pct >= nextReport {
				log.Info().Int("percent", pct).Msg("progress")
				nextReport = pct/10*10 + 10
			}
		}),
	)
	if err != nil {
		return err
	}

	continuum, line, err := sub.FitContinuum()
	if err != nil {
		return fmt.Errorf("continuum fit failed: %w", err)
	}

	if err := cubeio.SaveCube(filepath.Join(outDir, "continuum.csub"), continuum); err != nil {
		return err
	}
	if err := cubeio.SaveCube(filepath.Join(outDir, "line.csub"), line); err != nil {
		return err
	}

	if dir := cfg.Output.PreviewDir; dir != "" {
		previews := map[string]*visualization.Viewer{
			"continuum": visualization.NewViewer(continuum),
			"line":      visualization.NewViewer(line),
		}
		if mask != nil {
			previews["mask"] = visualization.NewMaskViewer(mask)
		}
		for name, viewer := range previews {
			if err := viewer.SaveSliceSequence("z", name, dir); err != nil {
				log.Warn().Err(err).Str("preview", name).Msg("failed to save previews")
			}
		}
		log.Info().Str("dir", dir).Msg("previews saved")
	}

	log.Info().
		Str("out", outDir).
		Dur("elapsed", time.Since(start)).
		Msg("continuum subtraction complete")
	return nil
}
