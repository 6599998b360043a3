package flatten

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wehubfusion/Ariadne/pkg/content"
)

func TestAggregateIsolatesUnknownKind(t *testing.T) {
	source := newFakeSource()
	source.addTitled("p1", "Handbook")
	source.children["p1"] = []content.Block{textBlock("b1", "Welcome")}
	flattener := newTestFlattener(source, 3)

	got := flattener.Aggregate(context.Background(), []content.SearchResult{
		{ID: "p1", Object: content.KindPage},
		{ID: "X", Object: "unknown"},
	})

	entries := strings.Split(got, SearchSeparator)
	require.Len(t, entries, 2)
	assert.Equal(t, "Handbook\n\n\nWelcome", entries[0])
	assert.Contains(t, entries[1], "X")
	assert.True(t, strings.HasPrefix(entries[1], UnknownObjectType))
}

func TestAggregateDispatchesByKind(t *testing.T) {
	source := newFakeSource()
	source.databases["db1"] = []content.Record{
		{ID: "row-1", Properties: []content.Property{selectProperty("Status", "Open")}},
	}
	source.children["p1"] = []content.Block{textBlock("b1", "Page body")}
	source.delays["db1"] = 20 * time.Millisecond
	flattener := newTestFlattener(source, 3)

	got := flattener.Aggregate(context.Background(), []content.SearchResult{
		{ID: "db1", Object: content.KindDatabase},
		{ID: "p1", Object: content.KindPage},
	})

	assertText(t, "Status: Open"+SearchSeparator+"Page body", got)
}

func TestAggregateReportsFailedItem(t *testing.T) {
	source := newFakeSource()
	source.children["p1"] = []content.Block{textBlock("b1", "Fine")}
	source.failures["p2"] = errors.New("upstream 502")
	flattener := newTestFlattener(source, 3)

	got := flattener.Aggregate(context.Background(), []content.SearchResult{
		{ID: "p1", Object: content.KindPage},
		{ID: "p2", Object: content.KindPage},
		{ID: "db-missing", Object: content.KindDatabase},
	})

	assertText(t, strings.Join([]string{
		"Fine",
		"Error processing content for page with id p2",
		"Error processing content for database with id db-missing",
	}, SearchSeparator), got)
}

func TestAggregateEmpty(t *testing.T) {
	flattener := newTestFlattener(newFakeSource(), 3)
	assert.Equal(t, "", flattener.Aggregate(context.Background(), nil))
}
