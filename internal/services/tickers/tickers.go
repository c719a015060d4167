// Package tickers exposes the stock universe.
package tickers

import (
	"context"
	"fmt"
	"sort"
	"time"

	domrepo "AShareData/internal/domain/repository"
	"AShareData/internal/services/factor"
)

// Universe lists instruments from a compact listing table whose column
// flips to true on listing and false on delisting.
type Universe struct {
	store  domrepo.Store
	table  string
	listed *factor.Factor[bool]
}

func New(store domrepo.Store, cal factor.CalendarSource, table, column string, opts ...factor.Option) (*Universe, error) {
	listed, err := factor.NewCompact("listed", table, column, store, cal, factor.Bool, opts...)
	if err != nil {
		return nil, err
	}
	return &Universe{store: store, table: table, listed: listed}, nil
}

// All returns every instrument that ever appeared, sorted.
func (u *Universe) All(ctx context.Context) ([]string, error) {
	rows, err := u.store.Read(ctx, u.table, domrepo.Query{Columns: []string{u.listed.Column()}})
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r.ID)
	}
	sort.Strings(out)
	return out, nil
}

// Listed returns the instruments listed as of date, sorted. date must
// be a trading day.
func (u *Universe) Listed(ctx context.Context, date time.Time) ([]string, error) {
	all, err := u.All(ctx)
	if err != nil {
		return nil, err
	}
	s, err := u.listed.Get(ctx, []time.Time{date}, all)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, id := range all {
		if v, ok := s.Get(date, id); ok && v {
			out = append(out, id)
		}
	}
	return out, nil
}
