package history

import (
	"context"

	"chonkprice/internal/provider"
)

// Recorder persists every batch of quotes fetched through P. A failed save
// is logged by the store and does not fail the fetch.
type Recorder struct {
	P     provider.Provider
	Store *Store
}

func (r *Recorder) Name() string { return r.P.Name() }

func (r *Recorder) Fetch(ctx context.Context, symbols []string) ([]provider.Quote, error) {
	qs, err := r.P.Fetch(ctx, symbols)
	if err != nil {
		return nil, err
	}
	_ = r.Store.Save(ctx, qs)
	return qs, nil
}
