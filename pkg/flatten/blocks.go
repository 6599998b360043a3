package flatten

import (
	"context"
	"strings"

	"github.com/wehubfusion/Ariadne/pkg/concurrency"
	"github.com/wehubfusion/Ariadne/pkg/content"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FlattenBlocks converts a block list into text. Each block contributes its
// own text followed by its flattened children; blank contributions are
// dropped and the rest joined by blank lines in input order.
func (f *Flattener) FlattenBlocks(ctx context.Context, blocks []content.Block) string {
	ctx, span := f.tracer.Start(ctx, "flatten.FlattenBlocks",
		trace.WithAttributes(attribute.Int("blocks.count", len(blocks))))
	defer span.End()

	return f.flattenBlocks(ctx, "", blocks)
}

// FlattenContainer is FlattenBlocks for the children of containerID, with
// the container's title prepended when it has one.
func (f *Flattener) FlattenContainer(ctx context.Context, containerID string, blocks []content.Block) string {
	ctx, span := f.tracer.Start(ctx, "flatten.FlattenContainer",
		trace.WithAttributes(
			attribute.String("container.id", containerID),
			attribute.Int("blocks.count", len(blocks)),
		))
	defer span.End()

	return f.flattenBlocks(ctx, containerID, blocks)
}

func (f *Flattener) flattenBlocks(ctx context.Context, containerID string, blocks []content.Block) string {
	entries := make([]string, len(blocks))
	var title string

	var g errgroup.Group
	if containerID != "" {
		g.Go(func() error {
			t, err := safely(func() (string, error) {
				return f.formatter.ContainerTitle(ctx, containerID)
			})
			if err != nil {
				f.logger.Error("Error fetching container title",
					zap.String("container_id", containerID),
					zap.Error(err))
				return nil
			}
			title = t
			return nil
		})
	}
	for i, block := range blocks {
		g.Go(func() error {
			text, err := safely(func() (string, error) {
				return f.flattenBlock(ctx, block)
			})
			if err != nil {
				f.logger.Error("Error processing block",
					zap.String("block_id", block.ID),
					zap.String("block_type", block.Type),
					zap.Error(err))
				return nil
			}
			entries[i] = text
			return nil
		})
	}
	_ = g.Wait()

	parts := make([]string, 0, len(entries)+1)
	if title != "" {
		parts = append(parts, title+"\n")
	}
	parts = append(parts, entries...)
	return joinNonBlank(parts, "\n\n")
}

// flattenBlock returns the trimmed text of one block and its subtree
func (f *Flattener) flattenBlock(ctx context.Context, block content.Block) (string, error) {
	if block.Err != nil {
		return "", block.Err
	}
	text := content.PlainText(block.Text)

	if block.HasChildren {
		children, err := concurrency.Submit(ctx, f.gateway, func(ctx context.Context) ([]content.Block, error) {
			return f.source.ListBlockChildren(ctx, block.ID, f.pageSize)
		})
		if err != nil {
			return "", err
		}
		text += "\n" + f.flattenBlocks(ctx, "", children)
	}

	return strings.TrimSpace(text), nil
}

// joinNonBlank joins the parts that are not empty after trimming
func joinNonBlank(parts []string, sep string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
