package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/internal/parser"
)

// Options customises how EXPLAIN is executed.
type Options struct {
	Timeout time.Duration
}

// Run executes EXPLAIN (FORMAT JSON) for the provided SQL statement on a
// dedicated connection. The statement itself is never executed.
func Run(ctx context.Context, dsn, sqlStatement string, opts Options) ([]byte, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("runner: empty DSN")
	}
	query, err := explainQuery(sqlStatement)
	if err != nil {
		return nil, err
	}

	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("runner: connect: %w", err)
	}
	defer conn.Close(ctx)

	var payload []byte
	if err := conn.QueryRow(ctx, query).Scan(&payload); err != nil {
		return nil, fmt.Errorf("runner: query: %w", err)
	}
	return payload, nil
}

func explainQuery(sqlStatement string) (string, error) {
	query := strings.TrimSpace(sqlStatement)
	query = strings.TrimSpace(strings.TrimRight(query, ";"))
	if query == "" {
		return "", fmt.Errorf("runner: empty sql statement")
	}
	return "EXPLAIN (FORMAT JSON) " + query, nil
}

// Explainer runs EXPLAIN over a connection pool and is safe for concurrent use.
type Explainer struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewExplainer connects a pool to dsn.
func NewExplainer(ctx context.Context, dsn string, opts Options) (*Explainer, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("runner: empty DSN")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("runner: connect: %w", err)
	}
	return &Explainer{pool: pool, timeout: opts.Timeout}, nil
}

// ExplainJSON returns the raw EXPLAIN (FORMAT JSON) document for sql.
func (e *Explainer) ExplainJSON(ctx context.Context, sql string) ([]byte, error) {
	query, err := explainQuery(sql)
	if err != nil {
		return nil, err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	var payload []byte
	if err := e.pool.QueryRow(ctx, query).Scan(&payload); err != nil {
		return nil, fmt.Errorf("runner: explain: %w", err)
	}
	return payload, nil
}

// Explain returns the parsed plan for sql.
func (e *Explainer) Explain(ctx context.Context, sql string) (*model.Explain, error) {
	payload, err := e.ExplainJSON(ctx, sql)
	if err != nil {
		return nil, err
	}
	plan, err := parser.ParseBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	return plan, nil
}

// TableStats reads relpages and reltuples from pg_class for the given relations.
func (e *Explainer) TableStats(ctx context.Context, relations []string) (model.TableStats, error) {
	stats := model.TableStats{}
	if len(relations) == 0 {
		return stats, nil
	}
	rows, err := e.pool.Query(ctx,
		"SELECT relname, relpages, reltuples FROM pg_class WHERE relname = ANY($1)", relations)
	if err != nil {
		return nil, fmt.Errorf("runner: table stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name      string
			relpages  int32
			reltuples float32
		)
		if err := rows.Scan(&name, &relpages, &reltuples); err != nil {
			return nil, fmt.Errorf("runner: scan table stats: %w", err)
		}
		stats[name] = model.RelationStats{RelPages: int64(relpages), RelTuples: float64(reltuples)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runner: table stats: %w", err)
	}
	return stats, nil
}

// Close releases the pool.
func (e *Explainer) Close() {
	e.pool.Close()
}
