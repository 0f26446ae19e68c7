package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Version is reported to MCP clients. Overwritten at link time.
var Version = "dev"

// Messages shown to users when the core fails. Details go to the log only.
const (
	msgBuildFailed    = "could not build graph"
	msgEvaluateFailed = "could not evaluate"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "medgraph",
		Usage: "Build symptom knowledge graphs from clinical records and rank candidate diseases",
		Commands: []*cli.Command{
			buildCommand(),
			diagnoseCommand(),
			matchCommand(),
			similarCommand(),
			seedCommand(),
			showCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// failure logs err and replaces it with msg
func failure(ctx context.Context, msg string, err error) error {
	logging.From(ctx).Error(msg, "error", err)
	return goerr.New(msg)
}
