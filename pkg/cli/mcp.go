package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/service/mcp"
	"github.com/m-mizutani/medgraph/pkg/usecase/build"
	"github.com/m-mizutani/medgraph/pkg/usecase/resolve"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var (
		cfg              config
		addr             string
		concurrency      int64
		relatedThreshold float64
		skipFailed       bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Serve streamable HTTP on this address instead of stdio",
			Sources:     cli.EnvVars("MEDGRAPH_MCP_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, buildFlags(&concurrency, &relatedThreshold, &skipFailed)...)
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, catalogFlags(&cfg)...)
	flags = append(flags, bigqueryFlags(&cfg)...)
	flags = append(flags, matchFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve graph building and diagnosis as MCP tools",
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

			builder := build.New(client, resolve.New(cat, resolve.WithRelatedThreshold(relatedThreshold)),
				builderOptions(concurrency, skipFailed)...)
			server := mcp.NewServer(client, builder, cat, Version,
				mcp.WithMatchThreshold(cfg.matchThreshold),
				mcp.WithMaxIterations(int(cfg.maxIterations)),
				mcp.WithMatchOptions(matchOpts...),
			)

			if addr == "" {
				return server.Run(ctx)
			}
			return serveHTTP(ctx, addr, server.Handler())
		},
	}
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("serving MCP over HTTP", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return goerr.Wrap(err, "mcp http server stopped", goerr.V("addr", addr))
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shutdown mcp http server")
		}
		return nil
	}
}
