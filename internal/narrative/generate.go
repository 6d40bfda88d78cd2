package narrative

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/credit-delta/internal/feature"
	"github.com/sells-group/credit-delta/internal/model"
	"github.com/sells-group/credit-delta/internal/table"
)

// ErrMissingCustomerColumn is returned when the engineered table has no
// customer_no column.
var ErrMissingCustomerColumn = eris.New("narrative: input table has no customer_no column")

// Options configures report generation.
type Options struct {
	// Concurrency bounds how many customers are rendered at once. Zero
	// means GOMAXPROCS.
	Concurrency int
	// Engine overrides the rule engine; nil uses NewEngine.
	Engine *Engine
}

// IndexEnquiries groups enquiries by customer, preserving input order.
func IndexEnquiries(enquiries []model.Enquiry) map[string][]model.Enquiry {
	idx := make(map[string][]model.Enquiry)
	for _, e := range enquiries {
		idx[e.CustomerNo] = append(idx[e.CustomerNo], e)
	}
	return idx
}

// Generate produces one ReportPair per distinct customer in t, in order of
// first appearance. Customers are rendered concurrently; t is only read.
func Generate(ctx context.Context, t *table.Table, enquiries []model.Enquiry, opts Options) ([]model.ReportPair, error) {
	if !t.Has(feature.CustomerNo) {
		return nil, ErrMissingCustomerColumn
	}

	engine := opts.Engine
	if engine == nil {
		engine = NewEngine()
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	groups := t.GroupBy(feature.CustomerNo)
	byCustomer := IndexEnquiries(enquiries)
	pairs := make([]model.ReportPair, len(groups))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, grp := range groups {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			view := NewGroup(t, grp.Key, grp.Rows, byCustomer[grp.Key])
			pairs[i] = model.ReportPair{
				CustomerNo:           grp.Key,
				CustomerInfo:         engine.Info(view),
				CustomerCreditUpdate: engine.Update(view),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "narrative: generate")
	}

	zap.L().Info("narrative: reports generated",
		zap.Int("customers", len(pairs)),
		zap.Int("enquiries", len(enquiries)),
	)
	return pairs, nil
}
