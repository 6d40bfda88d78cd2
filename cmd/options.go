package main

import (
	"github.com/sells-group/credit-delta/internal/config"
	"github.com/sells-group/credit-delta/internal/feature"
	"github.com/sells-group/credit-delta/internal/narrative"
	"github.com/sells-group/credit-delta/internal/store"
	"github.com/sells-group/credit-delta/internal/tableio"
)

// inputOptions builds reader options, loading the schema file if one is set.
func inputOptions(c *config.Config) (tableio.Options, error) {
	opts := tableio.Options{
		Delimiter:  c.Input.DelimiterRune(),
		Encoding:   c.Input.Encoding,
		LazyQuotes: c.Input.LazyQuotes,
		SheetName:  c.Input.Sheet,
	}
	if c.Input.SchemaFile != "" {
		schema, err := tableio.LoadSchema(c.Input.SchemaFile)
		if err != nil {
			return tableio.Options{}, err
		}
		opts.Schema = schema
	}
	return opts, nil
}

// featureOptions leaves unset fields zero; feature.Engineer fills them.
func featureOptions(c *config.Config) feature.Options {
	return feature.Options{
		CCPriorityCode:      c.Pipeline.CCPriorityCode,
		NewAccountMaxMonths: c.Pipeline.NewAccountMaxMonths,
		RankByCustomer:      c.Pipeline.RankByCustomer,
		DateLayouts:         c.Pipeline.DateLayouts,
	}
}

func narrativeOptions(c *config.Config) narrative.Options {
	return narrative.Options{Concurrency: c.Narrative.Concurrency}
}

func poolConfig(c *config.Config) *store.PoolConfig {
	return &store.PoolConfig{MaxConns: c.Store.MaxConns, MinConns: c.Store.MinConns}
}
