// Package flatten turns records, block trees and search results into plain
// text. Sibling work fans out concurrently and is reassembled by position;
// every remote fetch goes through a shared concurrency.Gateway.
package flatten

import (
	"fmt"
	"runtime/debug"

	"github.com/wehubfusion/Ariadne/pkg/concurrency"
	"github.com/wehubfusion/Ariadne/pkg/content"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Placeholder texts emitted in place of content
const (
	UnknownType         = "Unknown Type"
	NoTitle             = "No Title"
	ErrorProcessingPage = "Error processing page"
	ErrorMappingContent = "Error mapping content"
	UnknownObjectType   = "Bad Request: Unknown object type"

	// SearchSeparator separates search result entries
	SearchSeparator = "\n\n-----------Next page---------------\n\n"
)

// Flattener converts content fetched from a Source into text.
// It is safe for concurrent use; all state lives in the Gateway.
type Flattener struct {
	source    content.Source
	gateway   *concurrency.Gateway
	formatter *Formatter
	pageSize  int
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewFlattener creates a flattener. pageSize bounds child block fetches
// and is clamped to 1..100.
func NewFlattener(source content.Source, gateway *concurrency.Gateway, pageSize int, logger *zap.Logger) *Flattener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize < 1 || pageSize > concurrency.MaxPageSize {
		pageSize = concurrency.DefaultPageSize
	}

	return &Flattener{
		source:    source,
		gateway:   gateway,
		formatter: NewFormatter(source, gateway, logger),
		pageSize:  pageSize,
		logger:    logger,
		tracer:    otel.Tracer("ariadne/flatten"),
	}
}

// safely runs fn and turns a panic into an error
func safely(fn func() (string, error)) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}
