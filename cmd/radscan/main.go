package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"radscan/internal/models"
	"radscan/pkg/calibration"
	"radscan/pkg/config"
	"radscan/pkg/roi"
	"radscan/pkg/rsimage"
	"radscan/pkg/visualization"
	"radscan/pkg/workflow"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "radscan.yaml", "Analysis configuration file (YAML)")
	mode := flag.String("mode", "", "Override the analysis mode from the config (simple-roi, simple-image, full-roi, full-image)")
	output := flag.String("output", "", "Override the output map file from the config")
	writeConfig := flag.Bool("write-config", false, "Write a default configuration file to the -config path and exit")
	plotFile := flag.String("plot", "", "Save a plot of the loaded calibration curve to this file")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *mode != "" {
		cfg.Analysis.Mode = *mode
	}
	if *output != "" {
		cfg.Output.MapFile = *output
	}
	if *plotFile != "" {
		cfg.Output.PlotFile = *plotFile
	}

	channel, err := models.ParseChannel(cfg.Analysis.Channel)
	if err != nil {
		log.Fatalf("Invalid channel in config: %v", err)
	}

	// Load the calibration, if one is configured. Without it the
	// analysis yields NetOD instead of dose.
	var calib *calibration.Calibration
	if cfg.Analysis.CalibrationFile != "" {
		calib, err = calibration.Load(cfg.Analysis.CalibrationFile)
		if err != nil {
			log.Fatalf("Failed to load calibration: %v", err)
		}
		if cfg.Output.Verbose {
			fmt.Printf("Loaded calibration lot %s (%s): %s\n", calib.Lot, calib.Channel, calib.FitString())
		}
		if cfg.Output.PlotFile != "" {
			if err := calib.WritePlot(cfg.Output.PlotFile, 0, 0); err != nil {
				log.Fatalf("Failed to write calibration plot: %v", err)
			}
			fmt.Printf("Calibration plot saved to %s\n", cfg.Output.PlotFile)
		}
	}

	if len(cfg.Input.PreImages) == 0 || len(cfg.Input.PostImages) == 0 {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nconfig must name pre- and post-irradiation images")
		os.Exit(1)
	}

	pre := loadImage(cfg.Input.PreImages, cfg.Input.PreROIs, cfg.Output.Verbose)
	post := loadImage(cfg.Input.PostImages, cfg.Input.PostROIs, cfg.Output.Verbose)

	startTime := time.Now()

	switch cfg.Analysis.Mode {
	case config.ModeSimpleROI:
		values, err := workflow.SimpleByROI(pre, post, channel, calib)
		if err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}
		printValues(values, calib != nil)

	case config.ModeSimpleImage:
		result, err := workflow.SimpleByImage(pre, post, channel, calib)
		if err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}
		saveMap(result, cfg.Output.MapFile)

	case config.ModeFullROI, config.ModeFullImage:
		ctrlPre := loadImage(cfg.Input.ControlPreImages, cfg.Input.ControlPreROIs, cfg.Output.Verbose)
		ctrlPost := loadImage(cfg.Input.ControlPostImages, cfg.Input.ControlPostROIs, cfg.Output.Verbose)

		var background *rsimage.RSImage
		if len(cfg.Input.BackgroundImages) > 0 {
			background = loadImage(cfg.Input.BackgroundImages, cfg.Input.BackgroundROIs, cfg.Output.Verbose)
		}

		if cfg.Analysis.Mode == config.ModeFullROI {
			values, err := workflow.FullByROI(pre, post, ctrlPre, ctrlPost, background, channel, calib)
			if err != nil {
				log.Fatalf("Analysis failed: %v", err)
			}
			printValues(values, calib != nil)
		} else {
			result, err := workflow.FullByImage(pre, post, ctrlPre, ctrlPost, background, channel, calib)
			if err != nil {
				log.Fatalf("Analysis failed: %v", err)
			}
			saveMap(result, cfg.Output.MapFile)
		}

	default:
		log.Fatalf("Unknown analysis mode %q", cfg.Analysis.Mode)
	}

	if cfg.Output.Verbose {
		fmt.Printf("Analysis completed in %.2f seconds\n", time.Since(startTime).Seconds())
	}
}

// loadImage loads one film image (possibly averaged from several
// scans) and attaches its regions of interest.
func loadImage(paths []string, roiPath string, verbose bool) *rsimage.RSImage {
	img, err := rsimage.LoadMulti(paths)
	if err != nil {
		log.Fatalf("Failed to load images: %v", err)
	}
	if verbose {
		fmt.Printf("Loaded %d scan(s) starting with %s (%sx%s)\n",
			len(paths), img.Filename, img.Metadata["ImageWidth"], img.Metadata["ImageLength"])
	}

	if roiPath != "" {
		regions, err := roi.Load(roiPath)
		if err != nil {
			log.Fatalf("Failed to load ROIs: %v", err)
		}
		img.Regions = regions
		if verbose {
			fmt.Printf("Attached %d region(s) from %s\n", len(regions), roiPath)
		}
	}
	return img
}

// printValues writes per-region results to stdout.
func printValues(values []float64, calibrated bool) {
	unit := "NetOD"
	if calibrated {
		unit = "Gy"
	}
	for i, v := range values {
		fmt.Printf("Region %d: %.4f %s\n", i, v, unit)
	}
}

// saveMap writes a per-pixel result map as a grayscale PNG.
func saveMap(m *mat.Dense, path string) {
	renderer := visualization.NewRenderer()
	if err := renderer.SaveMap(m, path); err != nil {
		log.Fatalf("Failed to save result map: %v", err)
	}
	fmt.Printf("Result map saved to %s\n", path)
}
