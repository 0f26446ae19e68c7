package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/adapter"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
)

// DefaultScanLimit is the maximum bytes a prevalence query may scan
const DefaultScanLimit = 1 << 30

// PrevalenceLoader reads disease prevalence from a BigQuery table with `disease` (name) and
// `prevalence` columns
type PrevalenceLoader struct {
	bq        adapter.BigQuery
	table     string
	scanLimit int64
}

type PrevalenceOption func(*PrevalenceLoader)

func WithScanLimit(limit int64) PrevalenceOption {
	return func(l *PrevalenceLoader) {
		l.scanLimit = limit
	}
}

func NewPrevalenceLoader(bq adapter.BigQuery, table string, opts ...PrevalenceOption) *PrevalenceLoader {
	l := &PrevalenceLoader{
		bq:        bq,
		table:     table,
		scanLimit: DefaultScanLimit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *PrevalenceLoader) query() string {
	return fmt.Sprintf("SELECT disease, prevalence FROM `%s`", l.table)
}

// Load returns prevalence keyed by lower-cased disease name
func (l *PrevalenceLoader) Load(ctx context.Context) (map[string]float64, error) {
	if l.table == "" {
		return nil, goerr.New("prevalence table is not set")
	}
	query := l.query()

	scanned, err := l.bq.DryRun(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to dry-run prevalence query", goerr.V("table", l.table))
	}
	if scanned > l.scanLimit {
		return nil, goerr.New("prevalence query exceeds scan limit",
			goerr.V("table", l.table), goerr.V("scanned", scanned), goerr.V("limit", l.scanLimit))
	}

	jobID, err := l.bq.Query(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query prevalence", goerr.V("table", l.table))
	}
	rows, err := l.bq.GetQueryResult(ctx, jobID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get prevalence rows", goerr.V("job_id", jobID))
	}

	result := make(map[string]float64, len(rows))
	for i, row := range rows {
		name, ok := row["disease"].(string)
		if !ok || name == "" {
			return nil, goerr.New("invalid disease column", goerr.V("row", i), goerr.V("value", row["disease"]))
		}

		var p float64
		switch v := row["prevalence"].(type) {
		case float64:
			p = v
		case int64:
			p = float64(v)
		default:
			return nil, goerr.New("invalid prevalence column", goerr.V("row", i), goerr.V("value", v))
		}
		if p < 0 {
			return nil, goerr.New("negative prevalence", goerr.V("disease", name), goerr.V("prevalence", p))
		}
		result[strings.ToLower(name)] = p
	}

	logging.From(ctx).Debug("loaded prevalence", "table", l.table, "count", len(result))
	return result, nil
}

// Apply overwrites prevalence of diseases found in the table. Diseases left without
// prevalence get model.DefaultPrevalence.
func (l *PrevalenceLoader) Apply(ctx context.Context, diseases []*model.Disease) error {
	prevalence, err := l.Load(ctx)
	if err != nil {
		return err
	}

	for _, d := range diseases {
		if p, ok := prevalence[strings.ToLower(d.Name)]; ok {
			d.Prevalence = p
		} else if d.Prevalence == 0 {
			d.Prevalence = model.DefaultPrevalence
		}
	}
	return nil
}
