package cli

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/service/llm"
	"github.com/m-mizutani/medgraph/pkg/usecase/match"
	"github.com/urfave/cli/v3"
)

func embedSymptoms(ctx context.Context, client *llm.Client, symptoms []model.Symptom) ([]*model.SymptomWithEmbedding, error) {
	patient := make([]*model.SymptomWithEmbedding, 0, len(symptoms))
	for _, s := range symptoms {
		emb, err := client.Embed(ctx, s.Name, s.Description)
		if err != nil {
			return nil, err
		}
		patient = append(patient, &model.SymptomWithEmbedding{Symptom: s, Embedding: emb})
	}
	return patient, nil
}

func matchCommand() *cli.Command {
	var (
		cfg   config
		input string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to patient symptoms file (JSON or YAML list of name/description, - for stdin)",
			Destination: &input,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, catalogFlags(&cfg)...)
	flags = append(flags, bigqueryFlags(&cfg)...)
	flags = append(flags, matchFlags(&cfg)...)

	return &cli.Command{
		Name:  "match",
		Usage: "Rank candidate diseases for a list of patient symptoms",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx)
			if err != nil {
				return err
			}
			matchOpts, err := cfg.matchOptions()
			if err != nil {
				return err
			}

			symptoms, err := loadSymptoms(input)
			if err != nil {
				return err
			}

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

			patient, err := embedSymptoms(ctx, client, symptoms)
			if err != nil {
				return failure(ctx, msgEvaluateFailed, err)
			}

			diagnosis := match.Diagnose(patient, cat, cfg.matchThreshold, int(cfg.maxIterations), matchOpts...)

			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(diagnosis); err != nil {
				return goerr.Wrap(err, "failed to write diagnosis")
			}
			return nil
		},
	}
}
