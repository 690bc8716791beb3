package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/specdec/internal/backend"
	"github.com/samcharles93/specdec/internal/draft"
)

var (
	configFile    string
	fileConfig    Config
	backendName   string
	workers       int64
	maxNumTokens  int64
	seed          uint64
	residualFloor float64
	logLevel      string
	logFormat     string
	debug         bool
)

func samplerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "execution backend (auto, cpu, cuda)",
			Value:       backend.Auto,
			Destination: &backendName,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Aliases:     []string{"j"},
			Usage:       "concurrent kernel workers (0 = GOMAXPROCS)",
			Destination: &workers,
		},
		&cli.Int64Flag{
			Name:        "max-num-tokens",
			Usage:       "staging capacity in draft tokens (batch_size * max_spec_len)",
			Value:       draft.DefaultMaxNumTokens,
			Destination: &maxNumTokens,
		},
		&cli.Uint64Flag{
			Name:        "seed",
			Usage:       "seed of the shared random source (0 = clock)",
			Destination: &seed,
		},
		&cli.Float64Flag{
			Name:        "residual-floor",
			Usage:       "floor for non-positive residual mass (0 = smallest normal float32)",
			Destination: &residualFloor,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (console, json, text)",
			Value:       "console",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
