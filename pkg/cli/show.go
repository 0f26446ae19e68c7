package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/graph"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/usecase/build"
	"github.com/urfave/cli/v3"
)

func showCommand() *cli.Command {
	var (
		cfg     config
		graphID model.GraphID
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "graph-id",
			Aliases:     []string{"id"},
			Usage:       "Graph ID to show",
			Sources:     cli.EnvVars("MEDGRAPH_GRAPH_ID"),
			Destination: (*string)(&graphID),
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "show",
		Usage: "Show a published graph and its record",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx)
			if err != nil {
				return err
			}

			// Initialize dependencies
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			record, g, err := build.NewPublisher(repo, storage).Load(ctx, graphID)
			if err != nil {
				return goerr.Wrap(err, "failed to show graph")
			}

			data, err := json.MarshalIndent(struct {
				Record *model.GraphRecord `json:"record"`
				Graph  *graph.Graph       `json:"graph"`
			}{record, g}, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to marshal graph")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", string(data))
			return nil
		},
	}
}
