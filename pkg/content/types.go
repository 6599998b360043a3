// Package content defines the records, blocks and typed property values
// flattened by Ariadne, and decodes them from Notion API JSON.
package content

import (
	"context"
	"encoding/json"
	"strings"
)

// ObjectKind is the object discriminator of a record or search result
type ObjectKind string

const (
	KindPage     ObjectKind = "page"
	KindDatabase ObjectKind = "database"
)

// TitlePropertyID is the fixed property ID of a page title
const TitlePropertyID = "title"

// RichText is one inline text fragment
type RichText struct {
	PlainText string `json:"plain_text"`
	Href      string `json:"href,omitempty"`
}

// PlainText concatenates the plain text of every fragment
func PlainText(fragments []RichText) string {
	if len(fragments) == 1 {
		return fragments[0].PlainText
	}
	var sb strings.Builder
	for _, f := range fragments {
		sb.WriteString(f.PlainText)
	}
	return sb.String()
}

// Record is a page or a database row with its properties in document order.
type Record struct {
	ID         string
	Object     ObjectKind
	Properties []Property
	Raw        json.RawMessage
	// Err is set when the listing entry could not be decoded
	Err error
}

// TitleProperty returns the first property whose type is title
func (r Record) TitleProperty() (Property, bool) {
	for _, p := range r.Properties {
		if p.Type == TypeTitle {
			return p, true
		}
	}
	return Property{}, false
}

// Block is one content block. Children are fetched separately.
type Block struct {
	ID          string
	Type        string
	Text        []RichText
	HasChildren bool
	Raw         json.RawMessage
	// Err is set when the listing entry could not be decoded
	Err error
}

// SearchResult is one item returned by a workspace search
type SearchResult struct {
	ID     string
	Object ObjectKind
	Raw    json.RawMessage
}

// Source is the remote content API consumed by the flattener.
// pkg/notion provides the HTTP implementation.
type Source interface {
	QueryDatabase(ctx context.Context, databaseID string) ([]Record, error)
	ListBlockChildren(ctx context.Context, blockID string, pageSize int) ([]Block, error)
	GetRecord(ctx context.Context, recordID string) (Record, error)
	GetPropertyValue(ctx context.Context, recordID, propertyID string) (Property, error)
	Search(ctx context.Context, query string) ([]SearchResult, error)
}
