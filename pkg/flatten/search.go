package flatten

import (
	"context"
	"fmt"
	"strings"

	"github.com/wehubfusion/Ariadne/pkg/concurrency"
	"github.com/wehubfusion/Ariadne/pkg/content"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Aggregate renders every search result and joins the entries with
// SearchSeparator in result order. Databases are queried and mapped as
// records, pages are flattened with their title. A failing item renders as
// a diagnostic naming its kind and ID.
func (f *Flattener) Aggregate(ctx context.Context, results []content.SearchResult) string {
	ctx, span := f.tracer.Start(ctx, "flatten.Aggregate",
		trace.WithAttributes(attribute.Int("results.count", len(results))))
	defer span.End()

	entries := make([]string, len(results))
	var g errgroup.Group
	for i, item := range results {
		g.Go(func() error {
			text, err := safely(func() (string, error) {
				return f.aggregateItem(ctx, item)
			})
			if err != nil {
				f.logger.Error("Error processing content",
					zap.String("object", string(item.Object)),
					zap.String("id", item.ID),
					zap.Error(err))
				text = fmt.Sprintf("Error processing content for %s with id %s", item.Object, item.ID)
			}
			entries[i] = text
			return nil
		})
	}
	_ = g.Wait()

	return strings.Join(entries, SearchSeparator)
}

func (f *Flattener) aggregateItem(ctx context.Context, item content.SearchResult) (string, error) {
	switch item.Object {
	case content.KindDatabase:
		records, err := concurrency.Submit(ctx, f.gateway, func(ctx context.Context) ([]content.Record, error) {
			return f.source.QueryDatabase(ctx, item.ID)
		})
		if err != nil {
			return "", err
		}
		return f.MapRecords(ctx, records, ""), nil

	case content.KindPage:
		blocks, err := concurrency.Submit(ctx, f.gateway, func(ctx context.Context) ([]content.Block, error) {
			return f.source.ListBlockChildren(ctx, item.ID, f.pageSize)
		})
		if err != nil {
			return "", err
		}
		return f.FlattenContainer(ctx, item.ID, blocks), nil
	}

	f.logger.Warn("Unknown search result type",
		zap.String("object", string(item.Object)),
		zap.String("id", item.ID))
	return fmt.Sprintf("%s: %s with id %s", UnknownObjectType, item.Object, item.ID), nil
}
