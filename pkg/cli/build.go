package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/graph"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/usecase/build"
	"github.com/m-mizutani/medgraph/pkg/usecase/match"
	"github.com/m-mizutani/medgraph/pkg/usecase/resolve"
	"github.com/urfave/cli/v3"
)

// buildFlags returns flags tuning the graph builder
func buildFlags(concurrency *int64, relatedThreshold *float64, skipFailed *bool) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "concurrency",
			Usage:       "Maximum number of concurrent units per snapshot",
			Value:       build.DefaultConcurrency,
			Sources:     cli.EnvVars("MEDGRAPH_CONCURRENCY"),
			Destination: concurrency,
		},
		&cli.FloatFlag{
			Name:        "related-threshold",
			Usage:       "Minimum similarity between an exam and a catalog examinable",
			Value:       resolve.RelatedSymptomsThreshold,
			Sources:     cli.EnvVars("MEDGRAPH_RELATED_THRESHOLD"),
			Destination: relatedThreshold,
		},
		&cli.BoolFlag{
			Name:        "skip-failed-snapshots",
			Usage:       "Skip snapshots whose every unit failed instead of aborting",
			Sources:     cli.EnvVars("MEDGRAPH_SKIP_FAILED_SNAPSHOTS"),
			Destination: skipFailed,
		},
	}
}

func builderOptions(concurrency int64, skipFailed bool) []build.Option {
	opts := []build.Option{build.WithConcurrency(int(concurrency))}
	if skipFailed {
		opts = append(opts, build.WithSnapshotErrorHandler(build.SkipFailedSnapshot))
	}
	return opts
}

type buildOutput struct {
	GraphID   model.GraphID           `json:"graph_id,omitempty"`
	Snapshots int                     `json:"snapshots"`
	Symptoms  []string                `json:"symptoms"`
	Graph     *graph.Graph            `json:"graph"`
	Diagnosis []*model.DiagnosisEntry `json:"diagnosis,omitempty"`
}

func buildCommand() *cli.Command {
	var (
		cfg              config
		input            string
		output           string
		publish          bool
		diagnose         bool
		concurrency      int64
		relatedThreshold float64
		skipFailed       bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to snapshots file (JSON or YAML, - for stdin)",
			Destination: &input,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Path to write the graph JSON (stdout if omitted)",
			Destination: &output,
		},
		&cli.BoolFlag{
			Name:        "publish",
			Usage:       "Store the graph in Cloud Storage and its record in Firestore",
			Destination: &publish,
		},
		&cli.BoolFlag{
			Name:        "diagnose",
			Usage:       "Rank candidate diseases for the extracted symptoms",
			Destination: &diagnose,
		},
	}
	flags = append(flags, buildFlags(&concurrency, &relatedThreshold, &skipFailed)...)
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, catalogFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, bigqueryFlags(&cfg)...)
	flags = append(flags, matchFlags(&cfg)...)

	return &cli.Command{
		Name:  "build",
		Usage: "Build a knowledge graph from patient snapshots",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx)
			if err != nil {
				return err
			}
			if publish && cfg.catalogFile != "" {
				return goerr.New("--publish can not be used with --catalog-file")
			}
			matchOpts, err := cfg.matchOptions()
			if err != nil {
				return err
			}

			snapshots, err := loadSnapshots(input)
			if err != nil {
				return err
			}

			// Initialize dependencies
			client, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			repo, closeRepo, err := cfg.openRepository(ctx, client)
			if err != nil {
				return err
			}
			defer closeRepo()

			cat, err := cfg.loadCatalog(ctx, repo)
			if err != nil {
				return err
			}

			resolver := resolve.New(cat, resolve.WithRelatedThreshold(relatedThreshold))
			builder := build.New(client, resolver, builderOptions(concurrency, skipFailed)...)

			spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			spin.Suffix = fmt.Sprintf(" building graph from %d snapshots...", len(snapshots))
			spin.Start()
			result, err := builder.BuildGraph(ctx, snapshots)
			spin.Stop()
			if err != nil {
				return failure(ctx, msgBuildFailed, err)
			}

			out := &buildOutput{
				Snapshots: result.SnapshotCount,
				Symptoms:  result.SymptomNames(),
				Graph:     result.Graph,
			}
			if diagnose || publish {
				out.Diagnosis = match.Diagnose(result.Symptoms, cat, cfg.matchThreshold, int(cfg.maxIterations), matchOpts...)
			}

			if publish {
				storage, err := cfg.newStorage(ctx)
				if err != nil {
					return err
				}
				record, err := build.NewPublisher(repo, storage).Publish(ctx, result, out.Diagnosis)
				if err != nil {
					return goerr.Wrap(err, "failed to publish graph")
				}
				out.GraphID = record.ID
			}

			var w io.Writer = c.Root().Writer
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return goerr.Wrap(err, "failed to create output file", goerr.V("path", output))
				}
				defer f.Close()
				w = f
			}

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return goerr.Wrap(err, "failed to write graph")
			}
			return nil
		},
	}
}
