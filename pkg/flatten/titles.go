package flatten

import (
	"context"

	"github.com/wehubfusion/Ariadne/pkg/concurrency"
	"github.com/wehubfusion/Ariadne/pkg/content"
)

// RecordTitle fetches a record, locates its first title-typed property and
// fetches that property's value. It returns NoTitle when the record has no
// title property or the title has no fragments.
func (f *Formatter) RecordTitle(ctx context.Context, recordID string) (string, error) {
	record, err := concurrency.Submit(ctx, f.gateway, func(ctx context.Context) (content.Record, error) {
		return f.source.GetRecord(ctx, recordID)
	})
	if err != nil {
		return "", err
	}

	titleProperty, ok := record.TitleProperty()
	if !ok {
		return NoTitle, nil
	}

	id := record.ID
	if id == "" {
		id = recordID
	}
	return f.titleText(ctx, id, titleProperty.ID, NoTitle)
}

// ContainerTitle returns the title of a page used as a traversal root,
// or "" when it has none.
func (f *Formatter) ContainerTitle(ctx context.Context, containerID string) (string, error) {
	return f.titleText(ctx, containerID, content.TitlePropertyID, "")
}

// titleText fetches a title property and returns its first fragment
func (f *Formatter) titleText(ctx context.Context, recordID, propertyID, fallback string) (string, error) {
	property, err := concurrency.Submit(ctx, f.gateway, func(ctx context.Context) (content.Property, error) {
		return f.source.GetPropertyValue(ctx, recordID, propertyID)
	})
	if err != nil {
		return "", err
	}
	if property.Err != nil {
		return "", property.Err
	}

	title, ok := property.Value.(content.TitleValue)
	if !ok || len(title.Text) == 0 {
		return fallback, nil
	}
	return title.Text[0].PlainText, nil
}
