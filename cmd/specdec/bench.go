package main

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/stat"

	"github.com/samcharles93/specdec/internal/batch"
	"github.com/samcharles93/specdec/internal/logger"
)

func benchCmd() *cli.Command {
	var (
		batchSize      int64
		specLen        int64
		vocab          int64
		iters          int64
		warmup         int64
		greedyFraction float64
		withDraftProbs bool
		variable       bool
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Time verification of synthetic batches",
		Flags: append(samplerFlags(),
			&cli.Int64Flag{Name: "batch-size", Value: 64, Usage: "requests per batch", Destination: &batchSize},
			&cli.Int64Flag{Name: "spec-len", Value: 5, Usage: "draft tokens per request", Destination: &specLen},
			&cli.Int64Flag{Name: "vocab", Value: 32000, Usage: "vocabulary size", Destination: &vocab},
			&cli.Int64Flag{Name: "iters", Value: 20, Usage: "timed iterations", Destination: &iters},
			&cli.Int64Flag{Name: "warmup", Value: 2, Usage: "untimed iterations", Destination: &warmup},
			&cli.Float64Flag{Name: "greedy-fraction", Value: 0, Usage: "fraction of greedy requests", Destination: &greedyFraction},
			&cli.BoolFlag{Name: "draft-probs", Usage: "attach draft probabilities (otherwise n-gram drafting)", Destination: &withDraftProbs},
			&cli.BoolFlag{Name: "variable-length", Usage: "draw draft lengths from [0, spec-len]", Destination: &variable},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			if batchSize <= 0 || specLen < 0 || vocab <= 0 || iters <= 0 {
				return cli.Exit("error: batch-size, vocab and iters must be positive", 1)
			}

			log.Info("generating synthetic batch", "batch_size", batchSize, "spec_len", specLen, "vocab", vocab)
			f := batch.Synthetic(batch.SyntheticConfig{
				BatchSize:      int(batchSize),
				SpecLen:        int(specLen),
				VocabSize:      int(vocab),
				GreedyFraction: greedyFraction,
				DraftProbs:     withDraftProbs,
				VariableLength: variable,
				Seed:           42,
			})
			in, err := f.Input()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			sampler, err := newSampler(ctx, cmd, nil)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: create sampler: %v", err), 1)
			}
			defer func() { _ = sampler.Close() }()

			for i := range int(warmup) {
				if _, err := sampler.Forward(ctx, in); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run %d: %v", i+1, err), 1)
				}
			}

			durations := make([]float64, 0, iters)
			for i := range int(iters) {
				start := time.Now()
				if _, err := sampler.Forward(ctx, in); err != nil {
					return cli.Exit(fmt.Sprintf("error: run %d: %v", i+1, err), 1)
				}
				durations = append(durations, time.Since(start).Seconds())
			}
			slices.Sort(durations)

			mean, std := stat.MeanStdDev(durations, nil)
			p50 := stat.Quantile(0.5, stat.Empirical, durations, nil)
			p99 := stat.Quantile(0.99, stat.Empirical, durations, nil)
			st := sampler.Stats()
			draftPerBatch := float64(st.DraftTokens) / float64(st.Batches)

			fmt.Println("=== specdec bench ===")
			fmt.Printf("Backend:    %s (%d workers)\n", sampler.Backend().Name(), sampler.Backend().Workers())
			fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
			fmt.Printf("Batch:      %d x %d, vocab %d\n", batchSize, specLen, vocab)
			fmt.Printf("Runs:       %d (+%d warmup)\n", iters, warmup)
			fmt.Println()
			fmt.Printf("%-8s %12s\n", "mean", seconds(mean))
			fmt.Printf("%-8s %12s\n", "stddev", seconds(std))
			fmt.Printf("%-8s %12s\n", "p50", seconds(p50))
			fmt.Printf("%-8s %12s\n", "p99", seconds(p99))
			fmt.Printf("%-8s %12.0f draft tokens/s\n", "rate", draftPerBatch/mean)
			fmt.Printf("%-8s %12.3f\n", "accept", st.AcceptanceRate())
			return nil
		},
	}
}

func seconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Microsecond).String()
}
