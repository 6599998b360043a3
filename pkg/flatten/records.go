package flatten

import (
	"context"
	"strings"

	"github.com/wehubfusion/Ariadne/pkg/content"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MapRecords converts database rows into text, one entry per record with
// one "<name>: <value>" line per non-empty property. A record that fails
// renders as ErrorProcessingPage. A non-empty title becomes the first entry.
// If the call as a whole fails the result is ErrorMappingContent.
func (f *Flattener) MapRecords(ctx context.Context, records []content.Record, title string) string {
	ctx, span := f.tracer.Start(ctx, "flatten.MapRecords",
		trace.WithAttributes(attribute.Int("records.count", len(records))))
	defer span.End()

	text, err := safely(func() (string, error) {
		return f.mapRecords(ctx, records, title)
	})
	if err != nil {
		f.logger.Error(ErrorMappingContent, zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ErrorMappingContent
	}
	return text
}

func (f *Flattener) mapRecords(ctx context.Context, records []content.Record, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entries := make([]string, len(records))
	var g errgroup.Group
	for i, record := range records {
		g.Go(func() error {
			text, err := safely(func() (string, error) {
				return f.mapRecord(ctx, record)
			})
			if err != nil {
				f.logger.Error(ErrorProcessingPage,
					zap.String("record_id", record.ID),
					zap.Error(err))
				entries[i] = ErrorProcessingPage
				return nil
			}
			entries[i] = text
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(entries)+1)
	if title != "" {
		parts = append(parts, title)
	}
	for _, entry := range entries {
		if entry != "" {
			parts = append(parts, entry)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// mapRecord formats every property of record concurrently. Any property
// error fails the whole record.
func (f *Flattener) mapRecord(ctx context.Context, record content.Record) (string, error) {
	if record.Err != nil {
		return "", record.Err
	}
	lines := make([]string, len(record.Properties))

	g, gctx := errgroup.WithContext(ctx)
	for i, property := range record.Properties {
		g.Go(func() error {
			value, err := safely(func() (string, error) {
				return f.formatter.Format(gctx, property)
			})
			if err != nil {
				return err
			}
			if value != "" {
				lines[i] = property.Name + ": " + value
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	kept := lines[:0]
	for _, line := range lines {
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}
