package flatten

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wehubfusion/Ariadne/pkg/content"
)

func selectProperty(name, option string) content.Property {
	return content.Property{Name: name, Type: content.TypeSelect, Value: content.SelectValue{Option: &content.Option{Name: option}}}
}

func richTextProperty(name, text string) content.Property {
	value := content.RichTextValue{}
	if text != "" {
		value.Text = []content.RichText{{PlainText: text}}
	}
	return content.Property{Name: name, Type: content.TypeRichText, Value: value}
}

func TestMapRecordsEmpty(t *testing.T) {
	flattener := newTestFlattener(newFakeSource(), 3)
	assert.Equal(t, "", flattener.MapRecords(context.Background(), nil, ""))
}

func TestMapRecordsOmitsEmptyProperties(t *testing.T) {
	flattener := newTestFlattener(newFakeSource(), 3)

	got := flattener.MapRecords(context.Background(), []content.Record{{
		ID:         "row-1",
		Properties: []content.Property{selectProperty("Name", "Done"), richTextProperty("Notes", "")},
	}}, "")

	assert.Equal(t, "Name: Done", got)
}

func TestMapRecordsKeepsPropertyAndRecordOrder(t *testing.T) {
	source := newFakeSource()
	source.addTitled("acme", "Acme")
	source.delays["acme"] = 20 * time.Millisecond
	flattener := newTestFlattener(source, 3)

	records := []content.Record{
		{
			ID: "row-1",
			Properties: []content.Property{
				{Name: "Company", Type: content.TypeRelation, Value: content.RelationValue{IDs: []string{"acme"}}},
				richTextProperty("Notes", "First"),
				{Name: "Done", Type: content.TypeCheckbox, Value: content.CheckboxValue{Checked: true}},
			},
		},
		{},
		{ID: "row-3", Properties: []content.Property{richTextProperty("Notes", "Third")}},
	}

	got := flattener.MapRecords(context.Background(), records, "Projects")

	assertText(t, "Projects\n\nCompany: Acme\nNotes: First\nDone: V\n\nNotes: Third", got)
}

func TestMapRecordsIsolatesFailingRecord(t *testing.T) {
	source := newFakeSource()
	source.failures["gone"] = errors.New("not reachable")
	flattener := newTestFlattener(source, 3)

	records := []content.Record{
		{ID: "row-1", Properties: []content.Property{richTextProperty("Notes", "Fine")}},
		{ID: "row-2", Properties: []content.Property{
			richTextProperty("Notes", "Lost"),
			{Name: "Company", Type: content.TypeRelation, Value: content.RelationValue{IDs: []string{"gone"}}},
		}},
		{ID: "row-3", Properties: []content.Property{{Name: "Broken", Type: content.TypeNumber, Err: errors.New("bad number")}}},
	}

	got := flattener.MapRecords(context.Background(), records, "")

	assertText(t, "Notes: Fine\n\n"+ErrorProcessingPage+"\n\n"+ErrorProcessingPage, got)
}

func TestMapRecordsIsolatesPanics(t *testing.T) {
	source := newFakeSource()
	source.panics["cursed"] = true
	flattener := newTestFlattener(source, 3)

	records := []content.Record{
		{ID: "row-1", Properties: []content.Property{selectProperty("N", "Done")}},
		{ID: "row-2", Properties: []content.Property{{Name: "Empty", Type: content.TypeSelect}}},
		{ID: "row-3", Properties: []content.Property{
			{Name: "Company", Type: content.TypeRelation, Value: content.RelationValue{IDs: []string{"cursed"}}},
		}},
		{ID: "row-4", Properties: []content.Property{selectProperty("N", "Open")}},
	}

	got := flattener.MapRecords(context.Background(), records, "")

	assertText(t, "N: Done\n\n"+ErrorProcessingPage+"\n\n"+ErrorProcessingPage+"\n\nN: Open", got)
}

func TestMapRecordsRendersUndecodableRecordAsError(t *testing.T) {
	flattener := newTestFlattener(newFakeSource(), 3)

	got := flattener.MapRecords(context.Background(), []content.Record{
		{ID: "row-1", Properties: []content.Property{selectProperty("N", "Done")}},
		{Err: errors.New("record has no id")},
	}, "")

	assertText(t, "N: Done\n\n"+ErrorProcessingPage, got)
}

// explodingContext panics as soon as the mapper checks for cancellation
type explodingContext struct {
	context.Context
}

func (explodingContext) Err() error {
	panic("context exploded")
}

func TestMapRecordsPanicOutsideRecords(t *testing.T) {
	flattener := newTestFlattener(newFakeSource(), 3)

	got := flattener.MapRecords(explodingContext{context.Background()}, []content.Record{
		{ID: "row-1", Properties: []content.Property{selectProperty("N", "Done")}},
	}, "")

	assert.Equal(t, ErrorMappingContent, got)
}

func TestMapRecordsCancelledContext(t *testing.T) {
	flattener := newTestFlattener(newFakeSource(), 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := flattener.MapRecords(ctx, []content.Record{
		{ID: "row-1", Properties: []content.Property{richTextProperty("Notes", "Fine")}},
	}, "")

	assert.Equal(t, ErrorMappingContent, got)
}

func TestMapRecordsUnknownTypeIsNotAnError(t *testing.T) {
	flattener := newTestFlattener(newFakeSource(), 3)

	got := flattener.MapRecords(context.Background(), []content.Record{{
		ID:         "row-1",
		Properties: []content.Property{{Name: "Calc", Type: "formula", Value: content.UnknownValue{Type: "formula"}}},
	}}, "")

	assert.Equal(t, "Calc: "+UnknownType, got)
}
