package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/catalog"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/repository"
	"github.com/m-mizutani/medgraph/pkg/service/llm"
	"github.com/m-mizutani/medgraph/pkg/usecase/build"
	"github.com/m-mizutani/medgraph/pkg/usecase/diagnostic"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

var errInterrupted = goerr.New("interrupted")

// parseAnswer accepts y/yes, n/no and ?/unknown, case-insensitive
func parseAnswer(line string) (diagnostic.Answer, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return diagnostic.AnswerYes, true
	case "n", "no":
		return diagnostic.AnswerNo, true
	case "?", "unknown", "skip":
		return diagnostic.AnswerUnknown, true
	default:
		return diagnostic.AnswerUnknown, false
	}
}

// readlineAsker asks questions on the terminal
func readlineAsker(rl *readline.Instance, w io.Writer) diagnostic.Asker {
	return diagnostic.AskerFunc(func(ctx context.Context, symptom *model.SymptomRecord) (diagnostic.Answer, error) {
		if symptom.Description != "" {
			fmt.Fprintf(w, "Do you have %s? (%s) [y/n/?]\n", symptom.Name, symptom.Description)
		} else {
			fmt.Fprintf(w, "Do you have %s? [y/n/?]\n", symptom.Name)
		}

		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return diagnostic.AnswerUnknown, errInterrupted
			}
			if err != nil {
				return diagnostic.AnswerUnknown, goerr.Wrap(err, "failed to read answer")
			}
			if answer, ok := parseAnswer(line); ok {
				return answer, nil
			}
			fmt.Fprintf(w, "Please answer y, n or ?\n")
		}
	})
}

// confirmedSymptoms maps symptom names to catalog IDs. Unknown names are logged and dropped.
func confirmedSymptoms(ctx context.Context, cat *catalog.Catalog, names []string) []model.SymptomID {
	var ids []model.SymptomID
	for _, name := range names {
		s, ok := cat.SymptomByName(name)
		if !ok {
			logging.From(ctx).Warn("symptom is not in catalog", "name", name)
			continue
		}
		ids = append(ids, s.ID)
	}
	return ids
}

func diagnoseCommand() *cli.Command {
	var (
		cfg          config
		symptoms     []string
		graphID      string
		maxQuestions int64
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "symptom",
			Aliases:     []string{"s"},
			Usage:       "Symptom already known to be present (repeatable)",
			Destination: &symptoms,
		},
		&cli.StringFlag{
			Name:        "graph-id",
			Aliases:     []string{"g"},
			Usage:       "Published graph whose symptoms are known to be present",
			Sources:     cli.EnvVars("MEDGRAPH_GRAPH_ID"),
			Destination: &graphID,
		},
		&cli.IntFlag{
			Name:        "max-questions",
			Usage:       "Maximum number of questions to ask",
			Value:       diagnostic.DefaultMaxQuestions,
			Sources:     cli.EnvVars("MEDGRAPH_MAX_QUESTIONS"),
			Destination: &maxQuestions,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, catalogFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, bigqueryFlags(&cfg)...)

	return &cli.Command{
		Name:  "diagnose",
		Usage: "Narrow down the most probable disease by asking yes/no questions",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx)
			if err != nil {
				return err
			}
			w := c.Root().Writer

			// Models are only used to embed a seed file
			var client *llm.Client
			if cfg.catalogFile != "" {
				if client, err = cfg.newGemini(ctx); err != nil {
					return err
				}
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

			engine, err := diagnostic.New(cat.Diseases())
			if err != nil {
				return failure(ctx, msgEvaluateFailed, err)
			}
			session := diagnostic.NewSession(engine, cat, diagnostic.WithMaxQuestions(int(maxQuestions)))

			known := symptoms
			if graphID != "" {
				names, err := publishedSymptoms(ctx, &cfg, repo, model.GraphID(graphID))
				if err != nil {
					return err
				}
				known = append(known, names...)
			}
			session.Confirm(confirmedSymptoms(ctx, cat, known)...)

			rl, err := readline.NewEx(&readline.Config{Prompt: "> "})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			outcome, err := session.Run(ctx, readlineAsker(rl, w))
			if errors.Is(err, errInterrupted) {
				fmt.Fprintf(w, "Interrupted\n")
				return nil
			}
			if err != nil {
				return failure(ctx, msgEvaluateFailed, err)
			}

			fmt.Fprintf(w, "\nMost probable: %s (%.1f%%)\n\n", outcome.Disease.Name, outcome.Probability*100)
			for i, entry := range outcome.Ranking {
				fmt.Fprintf(w, "%d. %s  %.3f\n", i+1, entry.Name, entry.Score)
			}
			return nil
		},
	}
}

// publishedSymptoms returns the symptom names recorded with a published graph
func publishedSymptoms(ctx context.Context, cfg *config, repo repository.Repository, id model.GraphID) ([]string, error) {
	if cfg.catalogFile != "" {
		return nil, goerr.New("--graph-id can not be used with --catalog-file")
	}
	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, err
	}
	record, _, err := build.NewPublisher(repo, storage).Load(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load graph", goerr.V("id", id))
	}
	return record.Symptoms, nil
}
