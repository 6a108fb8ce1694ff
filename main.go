package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	ddlog "github.com/insar-tools/ddphase/internal/log"
	"github.com/insar-tools/ddphase/phase"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

// dataDirEnv overrides the default project data directory.
const dataDirEnv = "DDPHASE_DATA_DIR"

type cliFlags struct {
	directory  string
	outDir     string
	paramsPath string
	mode       string
	filter     int
	show       bool
	logLevel   string
	logConsole bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if err := loadEnvFile(".env"); err != nil {
		logger := ddlog.WithComponent("cli")
		logger.Warn().Err(err).Msg("Ignoring .env file")
	}

	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		logger := ddlog.WithComponent("cli")
		logger.Error().Err(err).Msg("ddphase failed")
		return exitCode(err)
	}
	return 0
}

// loadEnvFile adds the variables of path to the environment without overriding
// ones already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func newRootCmd() *cobra.Command {
	var f cliFlags

	cmd := &cobra.Command{
		Use:   "ddphase [flags] <reference> <secondary>",
		Short: "Complex difference of two coregistered interferograms",
		Long: `Computes the double difference angle(exp(i*phi1) * conj(exp(i*phi2))) of two
coregistered interferograms (<name>.tif under the data directory), then writes
a three-panel figure, a GeoTIFF of the result and a JSON summary into the
output directory. Optional products (clip, map, profile, smoothing) are
configured with a JSON5 parameter file.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fail(exitUsage, "arguments", fmt.Errorf("want <reference> <secondary>, got %d arguments", len(args)))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoubleDifference(cmd, args, f)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fail(exitUsage, "flags", err)
	})
	bindFlags(cmd, &f)
	return cmd
}

func bindFlags(cmd *cobra.Command, f *cliFlags) {
	fl := cmd.Flags()
	fl.StringVarP(&f.directory, "directory", "D", "", "Project data directory (default $"+dataDirEnv+" or "+defaultDataDirectory+")")
	fl.StringVarP(&f.outDir, "outdir", "O", "output_test", "Output directory, created under the data directory")
	fl.StringVarP(&f.paramsPath, "params", "p", "", "JSON5 parameter file")
	fl.StringVar(&f.mode, "mode", "conjugate", "Difference mode: conjugate or subtract")
	fl.IntVar(&f.filter, "filter", 0, "Boxcar smoothing window in pixels (0 disables smoothing)")
	fl.BoolVar(&f.show, "show", false, "Display the figures in a window when done")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fl.BoolVar(&f.logConsole, "log-console", false, "Human readable log output")
}

// buildParams merges defaults, the environment, the parameter file, explicit
// flags and positional arguments, in increasing order of precedence.
func buildParams(cmd *cobra.Command, args []string, f cliFlags) (RunParams, []byte, error) {
	p := defaultRunParams()
	if dir := os.Getenv(dataDirEnv); dir != "" {
		p.Directory = dir
	}

	var data []byte
	if f.paramsPath != "" {
		var err error
		data, err = os.ReadFile(f.paramsPath)
		if err != nil {
			return p, nil, fail(exitParamRead, "parameter file", fmt.Errorf("attempt to read %q failed: %w", f.paramsPath, err))
		}
		jsonTable, err := parseParamFile(data)
		if err != nil {
			return p, nil, fail(exitParamFormat, "parameter file", fmt.Errorf("format error in %q: %w", f.paramsPath, err))
		}
		if msg, ok := validateJsonFileAndFillParams(jsonTable, &p); !ok {
			return p, nil, fail(exitParamInvalid, "parameter file", errors.New(msg))
		}
	}

	fl := cmd.Flags()
	if fl.Changed("directory") {
		p.Directory = f.directory
	}
	if fl.Changed("outdir") {
		p.OutDir = f.outDir
	}
	if fl.Changed("mode") {
		m, err := phase.ParseMode(f.mode)
		if err != nil {
			return p, nil, fail(exitUsage, "flags", err)
		}
		p.DifferenceMode = m
	}
	if fl.Changed("filter") {
		p.FilterWindowPixels = f.filter
	}
	if fl.Changed("log-level") {
		p.LogLevel = f.logLevel
	}
	if f.show && p.WindowSizePixels == 0 {
		p.WindowSizePixels = 1200
	}
	if len(args) == 2 {
		p.Reference, p.Secondary = args[0], args[1]
	}

	dir, err := expandPath(p.Directory)
	if err != nil {
		return p, nil, fail(exitUsage, "directory", err)
	}
	p.Directory = dir

	if p.Reference == "" || p.Secondary == "" {
		return p, nil, fail(exitUsage, "arguments", errMissingInputs)
	}
	if err := checkParams(p); err != nil {
		return p, nil, fail(exitParamInvalid, "parameters", err)
	}
	return p, data, nil
}

// expandPath expands a leading ~ and makes path absolute.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

func runDoubleDifference(cmd *cobra.Command, args []string, f cliFlags) error {
	programStart := time.Now()

	p, data, err := buildParams(cmd, args, f)
	// Configure logging before reporting anything, even a parameter problem.
	ddlog.Configure(ddlog.Config{Level: firstNonEmpty(f.logLevel, p.LogLevel), Console: f.logConsole})
	if err != nil {
		return err
	}
	logger := ddlog.WithComponent("cli")
	logger.Debug().Str("version", version).Str("directory", p.Directory).Msg("Starting")

	// Check for user wanting printout of the complete parameter file
	if p.ShowInput && data != nil {
		fmt.Printf("\nPrintout of complete parameter file contents...\n%s\n", data)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := Run(ctx, p)
	if err != nil {
		return err
	}

	elapsed := time.Since(programStart)
	logger.Info().Dur("elapsed", elapsed).Int("outputs", len(report.Outputs)).Msg("Computation Time")
	fmt.Printf("# - Computation Time: %s\n", elapsed)

	if p.WindowSizePixels > 0 {
		images := []ResultImage{{Path: report.Outputs["figure"], Aspect: p.FigureWidthIn / p.FigureHeightIn}}
		if path, ok := report.Outputs["map"]; ok {
			images = append(images, ResultImage{Path: path, Aspect: p.MapWidthIn / p.MapHeightIn})
		}
		if path, ok := report.Outputs["profile"]; ok {
			images = append(images, ResultImage{Path: path, Aspect: float64(profileWidthPx) / profileHeightPx})
		}
		showResults(report.Reference.Name+"-"+report.Secondary.Name, p.WindowSizePixels, images)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
