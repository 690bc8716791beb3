package main

import (
	"context"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/specdec/internal/batch"
	"github.com/samcharles93/specdec/internal/logger"
)

func verifyCmd() *cli.Command {
	var (
		batchPath string
		format    string
		output    string
	)

	return &cli.Command{
		Name:  "verify",
		Usage: "Verify a batch file and print the accepted tokens",
		Flags: append(samplerFlags(),
			&cli.StringFlag{
				Name:        "batch",
				Aliases:     []string{"b"},
				Usage:       "path to a batch file (.yaml, .yml or .json)",
				Required:    true,
				Destination: &batchPath,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (json, yaml)",
				Value:       batch.FormatJSON,
				Destination: &format,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "write the result here instead of stdout",
				Destination: &output,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			f, err := batch.Load(batchPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			in, err := f.Input()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %s: %v", batchPath, err), 1)
			}

			sampler, err := newSampler(ctx, cmd, nil)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: create sampler: %v", err), 1)
			}
			defer func() { _ = sampler.Close() }()

			out, err := sampler.Forward(ctx, in)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: verify: %v", err), 1)
			}
			res := batch.NewResult("verify_"+uuid.NewString(), out)
			log.Info("verified batch",
				"path", batchPath,
				"requests", len(res.Outputs),
				"drafted", res.Usage.DraftTokens,
				"accepted", res.Usage.AcceptedTokens,
			)

			var w io.Writer = os.Stdout
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				defer func() { _ = file.Close() }()
				w = file
			}
			return writeResult(w, format, res)
		},
	}
}

func writeResult(w io.Writer, format string, res batch.Result) error {
	switch format {
	case batch.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case batch.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	default:
		return cli.Exit(fmt.Sprintf("error: unknown output format %q", format), 1)
	}
}
