package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/usecase/seed"
	"github.com/urfave/cli/v3"
)

func seedCommand() *cli.Command {
	var (
		cfg  config
		file string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Path to catalog YAML",
			Sources:     cli.EnvVars("MEDGRAPH_SEED_FILE"),
			Destination: &file,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "seed",
		Usage: "Write symptoms, examinables, criteria and diseases from a YAML catalog to Firestore",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx)
			if err != nil {
				return err
			}

			catalog, err := seed.LoadFile(file)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			client, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			summary, err := seed.New(client, repo).Seed(ctx, catalog)
			if err != nil {
				return goerr.Wrap(err, "failed to seed catalog", goerr.V("file", file))
			}

			fmt.Fprintf(c.Root().Writer, "Seeded %d symptoms, %d examinables, %d criteria, %d diseases\n",
				summary.Symptoms, summary.Examinables, summary.Criteria, summary.Diseases)
			return nil
		},
	}
}
