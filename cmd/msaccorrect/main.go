package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"msacbgcorr/internal/logger"
	"msacbgcorr/internal/models"
	"msacbgcorr/pkg/config"
	"msacbgcorr/pkg/correction"
	"msacbgcorr/pkg/loader"
	"msacbgcorr/pkg/visualization"
)

func main() {
	// Parse command line arguments
	phasePath := flag.String("phase", "", "Phase .npy file [dim1 dim2 slice time (channel)]")
	magnitudePath := flag.String("magnitude", "", "Magnitude .npy file with the same layout")
	configPath := flag.String("config", "config.yaml", "YAML configuration file (defaults are used if missing)")
	flow4D := flag.Bool("4d", false, "Treat the input as 4D flow with three velocity channels")
	seed := flag.Uint64("seed", 0, "Random seed (overrides the configuration)")
	workers := flag.Int("workers", 0, "Goroutines scoring MSAC trials (overrides the configuration)")
	panelDir := flag.String("panels", "", "Directory for result panels (overrides the configuration)")
	showHist := flag.Bool("histogram", true, "Print velocity histograms inside the MSAC mask")
	verbose := flag.Bool("verbose", false, "Log MSAC search details")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath, *flow4D); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *phasePath == "" || *magnitudePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath, *flow4D)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Processing.Seed = *seed
		case "workers":
			cfg.Processing.NumCores = *workers
		case "panels":
			cfg.Output.PanelDir = *panelDir
		case "verbose":
			cfg.Output.Verbose = *verbose
		}
	})

	log := logger.NewConsole(cfg.Output.Verbose)

	params, err := cfg.Params()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	phase, magnitude, err := loadInputs(*phasePath, *magnitudePath, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load input data")
	}

	fmt.Println("================================")
	fmt.Println("MSAC BACKGROUND PHASE CORRECTION FOR PHASE-CONTRAST MRI")
	fmt.Println("================================")

	corrector := correction.NewCorrector(params, nil)
	corrector.SetLogger(log)

	result, err := corrector.Process(phase, magnitude)
	if err != nil {
		log.Fatal().Err(err).Msg("Correction failed")
	}

	printSummary(result, params, cfg.Input.Venc)

	viewer := visualization.NewViewer(result, cfg.Input.Venc)
	if *showHist {
		for c := range result.Stats {
			fmt.Println()
			if err := viewer.WriteHistogram(os.Stdout, c); err != nil {
				log.Warn().Err(err).Int("channel", c).Msg("Histogram skipped")
			}
		}
	}

	if cfg.Output.PanelDir != "" {
		files, err := viewer.SavePanels(cfg.Output.PanelDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to save panels")
		}
		fmt.Println("\nResult panels saved to:")
		for _, f := range files {
			fmt.Printf("- %s\n", f)
		}
	}
}

// loadInputs reads both arrays and normalizes them to the ranges the
// corrector expects
func loadInputs(phasePath, magnitudePath string, cfg *config.Config, log zerolog.Logger) (*models.Series, *models.Series, error) {
	phase, err := loader.LoadSeries(phasePath)
	if err != nil {
		return nil, nil, err
	}
	magnitude, err := loader.LoadSeries(magnitudePath)
	if err != nil {
		return nil, nil, err
	}
	log.Info().
		Ints("phase", phase.Shape[:]).
		Ints("magnitude", magnitude.Shape[:]).
		Msg("Input loaded")

	if err := loader.NormalizePhase(phase, cfg.Input.PhaseScale); err != nil {
		return nil, nil, err
	}
	if cfg.Processing.FlowDimensions == 3 {
		err = loader.NormalizeMagnitude4D(magnitude)
	} else {
		err = loader.NormalizeMagnitude2D(magnitude)
	}
	if err != nil {
		return nil, nil, err
	}
	return phase, magnitude, nil
}

func printSummary(result *correction.Result, params *correction.Params, venc float64) {
	fmt.Printf("\nCorrection completed in %.2f seconds (MSAC search %.2f seconds)\n",
		result.TotalTime.Seconds(), result.SearchTime.Seconds())
	fmt.Printf("Magnitude mask: %d pixels\n", result.MagnitudeMask.Count())
	if result.Skipped > 0 {
		fmt.Printf("Degenerate trials skipped: %d of %d\n", result.Skipped, params.Trials)
	}

	fmt.Printf("\nBackground model (order %d, units of venc):\n", params.CorrectionOrder)
	fmt.Printf("=======================================\n")
	for c := 0; c < result.Model.Channels(); c++ {
		coef := make([]string, 0, len(result.Model.Channel(c)))
		for _, v := range result.Model.Channel(c) {
			coef = append(coef, fmt.Sprintf("%.4g", v))
		}
		fmt.Printf("Channel %d: cost %.4g, coefficients [%s]\n", c, result.Cost[c], strings.Join(coef, " "))
	}

	fmt.Printf("\nVelocity inside the MSAC mask [cm/s]:\n")
	fmt.Printf("=======================================\n")
	for _, s := range result.Stats {
		fmt.Printf("Channel %d: %d inliers of %d mask pixels\n", s.Channel, s.Inliers, s.MaskPixels)
		fmt.Printf("- Before: mean %.3f, std %.3f, median %.3f, 1%%..99%% [%.3f, %.3f]\n",
			s.Before.Mean*venc, s.Before.StdDev*venc, s.Before.Median*venc, s.Before.P01*venc, s.Before.P99*venc)
		fmt.Printf("- After:  mean %.3f, std %.3f, median %.3f, 1%%..99%% [%.3f, %.3f]\n",
			s.After.Mean*venc, s.After.StdDev*venc, s.After.Median*venc, s.After.P01*venc, s.After.P99*venc)
	}
}
