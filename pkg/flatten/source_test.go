package flatten

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wehubfusion/Ariadne/pkg/content"
	sdkerrors "github.com/wehubfusion/Ariadne/pkg/errors"
)

// fakeSource is an in-memory content.Source with per-ID delays and failures
type fakeSource struct {
	mu        sync.Mutex
	records   map[string]content.Record
	titles    map[string]content.Property
	children  map[string][]content.Block
	databases map[string][]content.Record
	delays    map[string]time.Duration
	failures  map[string]error
	panics    map[string]bool

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	calls       atomic.Int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		records:   make(map[string]content.Record),
		titles:    make(map[string]content.Property),
		children:  make(map[string][]content.Block),
		databases: make(map[string][]content.Record),
		delays:    make(map[string]time.Duration),
		failures:  make(map[string]error),
		panics:    make(map[string]bool),
	}
}

// addTitled registers a record whose title property resolves to title
func (s *fakeSource) addTitled(id, title string) {
	s.records[id] = content.Record{
		ID:     id,
		Object: content.KindPage,
		Properties: []content.Property{
			{ID: "notes", Name: "Notes", Type: content.TypeRichText, Value: content.RichTextValue{}},
			{ID: content.TitlePropertyID, Name: "Name", Type: content.TypeTitle, Value: content.TitleValue{Text: []content.RichText{{PlainText: title}}}},
		},
	}
	s.titles[id+"/"+content.TitlePropertyID] = content.Property{
		ID:    content.TitlePropertyID,
		Type:  content.TypeTitle,
		Value: content.TitleValue{Text: []content.RichText{{PlainText: title}}},
	}
}

func (s *fakeSource) enter(key string) error {
	s.calls.Add(1)
	current := s.inFlight.Add(1)
	for {
		seen := s.maxInFlight.Load()
		if current <= seen || s.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}

	s.mu.Lock()
	delay := s.delays[key]
	err := s.failures[key]
	panics := s.panics[key]
	s.mu.Unlock()

	if panics {
		panic("source exploded on " + key)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (s *fakeSource) leave() {
	s.inFlight.Add(-1)
}

func (s *fakeSource) QueryDatabase(ctx context.Context, databaseID string) ([]content.Record, error) {
	defer s.leave()
	if err := s.enter(databaseID); err != nil {
		return nil, err
	}
	records, ok := s.databases[databaseID]
	if !ok {
		return nil, sdkerrors.NotFound("Not Found: Database not found")
	}
	return records, nil
}

func (s *fakeSource) ListBlockChildren(ctx context.Context, blockID string, pageSize int) ([]content.Block, error) {
	defer s.leave()
	if err := s.enter(blockID); err != nil {
		return nil, err
	}
	children := s.children[blockID]
	if len(children) > pageSize {
		children = children[:pageSize]
	}
	return children, nil
}

func (s *fakeSource) GetRecord(ctx context.Context, recordID string) (content.Record, error) {
	defer s.leave()
	if err := s.enter(recordID); err != nil {
		return content.Record{}, err
	}
	record, ok := s.records[recordID]
	if !ok {
		return content.Record{}, sdkerrors.NotFound("record " + recordID)
	}
	return record, nil
}

func (s *fakeSource) GetPropertyValue(ctx context.Context, recordID, propertyID string) (content.Property, error) {
	key := recordID + "/" + propertyID
	defer s.leave()
	if err := s.enter(key); err != nil {
		return content.Property{}, err
	}
	p, ok := s.titles[key]
	if !ok {
		return content.Property{}, sdkerrors.NotFound(fmt.Sprintf("property %s", key))
	}
	return p, nil
}

func (s *fakeSource) Search(ctx context.Context, query string) ([]content.SearchResult, error) {
	return nil, nil
}

func textBlock(id, text string) content.Block {
	return content.Block{ID: id, Type: "paragraph", Text: []content.RichText{{PlainText: text}}}
}

func parentBlock(id, text string) content.Block {
	b := textBlock(id, text)
	b.HasChildren = true
	return b
}
