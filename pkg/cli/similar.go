package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func similarCommand() *cli.Command {
	var (
		cfg       config
		limit     int64
		threshold float64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of examinables to display",
			Value:       10,
			Sources:     cli.EnvVars("MEDGRAPH_SIMILAR_LIMIT"),
			Destination: &limit,
		},
		&cli.FloatFlag{
			Name:        "threshold",
			Aliases:     []string{"t"},
			Usage:       "Cosine distance threshold (0.0-2.0, lower is more similar)",
			Value:       1.0,
			Sources:     cli.EnvVars("MEDGRAPH_SIMILAR_THRESHOLD"),
			Destination: &threshold,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "similar",
		Usage:     "Find catalog examinables similar to a text using vector search",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx)
			if err != nil {
				return err
			}

			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return goerr.New("text is required")
			}

			// Initialize dependencies
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			client, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			emb, err := client.EmbedText(ctx, text)
			if err != nil {
				return goerr.Wrap(err, "failed to embed text")
			}

			examinables, err := repo.SearchSimilarExaminables(ctx, emb, threshold, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to search similar examinables")
			}

			if len(examinables) == 0 {
				fmt.Fprintf(c.Root().Writer, "No similar examinables found\n")
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "Found %d similar examinables:\n\n", len(examinables))
			for i, e := range examinables {
				fmt.Fprintf(c.Root().Writer, "%d. %s\n", i+1, e.Name)
				fmt.Fprintf(c.Root().Writer, "   ID: %s\n", e.ID)
				if e.Description != "" {
					fmt.Fprintf(c.Root().Writer, "   Description: %s\n", e.Description)
				}
				fmt.Fprintf(c.Root().Writer, "\n")
			}
			return nil
		},
	}
}
