// Package reconcile copies records present on only one side of the local
// and remote stores to the other side.
package reconcile

import (
	"context"
	"fmt"

	"mtreport-backend/internal/assert"
	"mtreport-backend/internal/records"
	"mtreport-backend/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("mtreport.reconcile")

const report_reconcile = "reconcile.transfer"

type Direction string

const (
	Pull Direction = "pull"
	Push Direction = "push"
	Both Direction = "both"
)

func (d Direction) pulls() bool { return d == Pull || d == Both }
func (d Direction) pushes() bool { return d == Push || d == Both }

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Pull, Push, Both:
		return d, nil
	}
	return "", fmt.Errorf("unknown sync direction %q (expected pull, push or both)", s)
}

// Side is a record store that can list its natural keys, fetch the records
// behind them and merge records into itself. Keys must use the local
// representation on both sides.
type Side interface {
	EquityKeys(ctx context.Context) ([]records.EquityKey, error)
	SummaryKeys(ctx context.Context) ([]records.SummaryKey, error)
	DishKeys(ctx context.Context) ([]records.DishKey, error)

	FetchEquity(ctx context.Context, keys []records.EquityKey) ([]records.EquityPackageSale, error)
	FetchSummary(ctx context.Context, keys []records.SummaryKey) ([]records.BusinessSummary, error)
	FetchDish(ctx context.Context, keys []records.DishKey) ([]records.DishSale, error)

	WriteEquity(ctx context.Context, recs []records.EquityPackageSale, opts records.WriteOptions) (records.WriteStats, error)
	WriteSummary(ctx context.Context, recs []records.BusinessSummary, opts records.WriteOptions) (records.WriteStats, error)
	WriteDish(ctx context.Context, recs []records.DishSale, opts records.WriteOptions) (records.WriteStats, error)
}

type Options struct {
	// DryRun only counts the missing keys.
	DryRun bool
}

// Stats is the outcome of reconciling one entity type.
type Stats struct {
	Entity records.EntityType
	// MissingLocal is the number of keys only the remote side has.
	MissingLocal int
	// MissingRemote is the number of keys only the local side has.
	MissingRemote int
	Pulled        records.WriteStats
	Pushed        records.WriteStats
}

type Reconciler struct {
	local  Side
	remote Side
	tel    telemetry.API
}

func NewReconciler(local, remote Side, tel telemetry.API) *Reconciler {
	assert.NotNil(local, "local")
	assert.NotNil(remote, "remote")
	assert.NotNil(tel, "telemetry")
	return &Reconciler{
		local:  local,
		remote: remote,
		tel:    telemetry.NewScopedAPI("reconcile", tel),
	}
}

// difference returns the keys of a missing from b, in the order of a
// without repeats.
func difference[K comparable](a, b []K) []K {
	have := make(map[K]struct{}, len(b))
	for _, k := range b {
		have[k] = struct{}{}
	}
	var out []K
	for _, k := range a {
		if _, ok := have[k]; ok {
			continue
		}
		have[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// ops binds one entity's key listing, fetch and write on both sides.
type ops[K comparable, T any] struct {
	keys  func(Side) func(context.Context) ([]K, error)
	fetch func(Side) func(context.Context, []K) ([]T, error)
	write func(Side) func(context.Context, []T, records.WriteOptions) (records.WriteStats, error)
}

// transfer fetches keys from src and merges them into dst through its
// regular write path.
func transfer[K comparable, T any](ctx context.Context, o ops[K, T], src, dst Side, keys []K) (records.WriteStats, error) {
	if len(keys) == 0 {
		return records.WriteStats{}, nil
	}
	recs, err := o.fetch(src)(ctx, keys)
	if err != nil {
		return records.WriteStats{}, fmt.Errorf("fetch: %w", err)
	}
	stats, err := o.write(dst)(ctx, recs, records.WriteOptions{})
	if err != nil {
		return stats, fmt.Errorf("write: %w", err)
	}
	return stats, nil
}

func reconcile[K comparable, T any](ctx context.Context, r *Reconciler, o ops[K, T], dir Direction, opts Options, stats *Stats) error {
	localKeys, err := o.keys(r.local)(ctx)
	if err != nil {
		return fmt.Errorf("list local keys: %w", err)
	}
	remoteKeys, err := o.keys(r.remote)(ctx)
	if err != nil {
		return fmt.Errorf("list remote keys: %w", err)
	}

	missingLocal := difference(remoteKeys, localKeys)
	missingRemote := difference(localKeys, remoteKeys)
	stats.MissingLocal = len(missingLocal)
	stats.MissingRemote = len(missingRemote)
	if opts.DryRun {
		return nil
	}

	if dir.pulls() {
		stats.Pulled, err = transfer(ctx, o, r.remote, r.local, missingLocal)
		if err != nil {
			r.tel.ReportBroken(report_reconcile, stats.Entity, Pull, err)
			return fmt.Errorf("pull: %w", err)
		}
	}
	if dir.pushes() {
		stats.Pushed, err = transfer(ctx, o, r.local, r.remote, missingRemote)
		if err != nil {
			r.tel.ReportBroken(report_reconcile, stats.Entity, Push, err)
			return fmt.Errorf("push: %w", err)
		}
	}
	return nil
}

var equityOps = ops[records.EquityKey, records.EquityPackageSale]{
	keys:  func(s Side) func(context.Context) ([]records.EquityKey, error) { return s.EquityKeys },
	fetch: func(s Side) func(context.Context, []records.EquityKey) ([]records.EquityPackageSale, error) { return s.FetchEquity },
	write: func(s Side) func(context.Context, []records.EquityPackageSale, records.WriteOptions) (records.WriteStats, error) {
		return s.WriteEquity
	},
}

var summaryOps = ops[records.SummaryKey, records.BusinessSummary]{
	keys:  func(s Side) func(context.Context) ([]records.SummaryKey, error) { return s.SummaryKeys },
	fetch: func(s Side) func(context.Context, []records.SummaryKey) ([]records.BusinessSummary, error) { return s.FetchSummary },
	write: func(s Side) func(context.Context, []records.BusinessSummary, records.WriteOptions) (records.WriteStats, error) {
		return s.WriteSummary
	},
}

var dishOps = ops[records.DishKey, records.DishSale]{
	keys:  func(s Side) func(context.Context) ([]records.DishKey, error) { return s.DishKeys },
	fetch: func(s Side) func(context.Context, []records.DishKey) ([]records.DishSale, error) { return s.FetchDish },
	write: func(s Side) func(context.Context, []records.DishSale, records.WriteOptions) (records.WriteStats, error) {
		return s.WriteDish
	},
}

// Reconcile copies the records of one entity type missing on the
// destination side(s), existing keys are never transferred again.
func (r *Reconciler) Reconcile(ctx context.Context, dir Direction, entity records.EntityType, opts Options) (Stats, error) {
	ctx, span := tracer.Start(ctx, "Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("direction", string(dir)),
		attribute.String("entity", string(entity)),
	)

	stats := Stats{Entity: entity}
	var err error
	switch entity {
	case records.Equity:
		err = reconcile(ctx, r, equityOps, dir, opts, &stats)
	case records.Summary:
		err = reconcile(ctx, r, summaryOps, dir, opts, &stats)
	case records.Dish:
		err = reconcile(ctx, r, dishOps, dir, opts, &stats)
	default:
		return stats, fmt.Errorf("unknown entity type %q", entity)
	}
	if err != nil {
		return stats, fmt.Errorf("reconcile %s: %w", entity, err)
	}

	span.SetAttributes(
		attribute.Int("missing_local", stats.MissingLocal),
		attribute.Int("missing_remote", stats.MissingRemote),
	)
	r.tel.ReportDebug(
		"reconciled",
		string(entity), string(dir), stats.MissingLocal, stats.MissingRemote,
		stats.Pulled.Written(), stats.Pushed.Written(),
	)
	return stats, nil
}

// ReconcileAll reconciles each entity type in turn and stops at the first
// operation wide failure.
func (r *Reconciler) ReconcileAll(ctx context.Context, dir Direction, entities []records.EntityType, opts Options) ([]Stats, error) {
	out := make([]Stats, 0, len(entities))
	for _, entity := range entities {
		stats, err := r.Reconcile(ctx, dir, entity, opts)
		out = append(out, stats)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
