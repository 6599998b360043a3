package flatten

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wehubfusion/Ariadne/pkg/concurrency"
	"github.com/wehubfusion/Ariadne/pkg/content"
	sdkerrors "github.com/wehubfusion/Ariadne/pkg/errors"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestFormatter(source *fakeSource) *Formatter {
	return NewFormatter(source, concurrency.NewGateway(concurrency.DefaultGatewayConfig(), nil), nil)
}

func ptr[T any](v T) *T { return &v }

func TestFormatVariants(t *testing.T) {
	formatter := newTestFormatter(newFakeSource())

	tests := []struct {
		name  string
		value content.Value
		want  string
	}{
		{"title", content.TitleValue{Text: []content.RichText{{PlainText: "Road"}, {PlainText: "map"}}}, "Roadmap"},
		{"rich text", content.RichTextValue{Text: []content.RichText{{PlainText: "notes"}}}, "notes"},
		{"empty rich text", content.RichTextValue{}, ""},
		{"select", content.SelectValue{Option: &content.Option{Name: "Done"}}, "Done"},
		{"unset select", content.SelectValue{}, ""},
		{"status", content.StatusValue{Option: &content.Option{Name: "In progress"}}, "In progress"},
		{"multi select", content.MultiSelectValue{Options: []content.Option{{Name: "a"}, {Name: "b"}}}, "a, b"},
		{"email", content.EmailValue{Email: "ada@example.com"}, "ada@example.com"},
		{"phone", content.PhoneNumberValue{PhoneNumber: "+31 6 1234"}, "+31 6 1234"},
		{"url", content.URLValue{URL: "https://example.com"}, "https://example.com"},
		{"date", content.DateValue{Start: "2024-01-02", End: "2024-02-01"}, "2024-01-02"},
		{"unset date", content.DateValue{}, ""},
		{"people", content.PeopleValue{People: []content.User{{Name: "Ada"}, {Name: "Grace"}}}, "Ada, Grace"},
		{"checked", content.CheckboxValue{Checked: true}, "V"},
		{"unchecked", content.CheckboxValue{}, "X"},
		{"integer", content.NumberValue{Number: ptr(3.0)}, "3"},
		{"fraction", content.NumberValue{Number: ptr(1.25)}, "1.25"},
		{"unset number", content.NumberValue{}, ""},
		{"created time", content.CreatedTimeValue{Time: "2024-01-01T00:00:00.000Z"}, "2024-01-01T00:00:00.000Z"},
		{"last edited time", content.LastEditedTimeValue{Time: "2024-03-01T10:00:00.000Z"}, "2024-03-01T10:00:00.000Z"},
		{"created by", content.CreatedByValue{User: content.User{Name: "Ada"}}, "Ada"},
		{"last edited by", content.LastEditedByValue{User: content.User{Name: "Grace"}}, "Grace"},
		{"verification", content.VerificationValue{State: "verified"}, "verified"},
		{"empty relation", content.RelationValue{}, ""},
		{"unknown", content.UnknownValue{Type: "formula"}, UnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatter.Format(context.Background(), content.Property{Name: "P", Type: tt.value.Tag(), Value: tt.value})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatReturnsDecodeError(t *testing.T) {
	formatter := newTestFormatter(newFakeSource())

	_, err := formatter.Format(context.Background(), content.Property{
		Name: "Done",
		Type: content.TypeCheckbox,
		Err:  sdkerrors.ErrMalformedProperty,
	})
	assert.ErrorIs(t, err, sdkerrors.ErrMalformedProperty)

	_, err = formatter.Format(context.Background(), content.Property{Name: "Empty"})
	assert.ErrorIs(t, err, sdkerrors.ErrMalformedProperty)
}

func TestRelationToRecordWithoutTitle(t *testing.T) {
	source := newFakeSource()
	source.records["r0"] = content.Record{ID: "r0", Object: content.KindPage}
	formatter := newTestFormatter(source)

	got, err := formatter.Format(context.Background(), content.Property{
		Name:  "Company",
		Type:  content.TypeRelation,
		Value: content.RelationValue{IDs: []string{"r0"}},
	})
	require.NoError(t, err)
	assert.Equal(t, NoTitle, got)
}

func TestRelationResolvesTitles(t *testing.T) {
	source := newFakeSource()
	source.addTitled("r1", "Acme")
	source.addTitled("r2", "Globex")
	formatter := newTestFormatter(source)

	got, err := formatter.Format(context.Background(), content.Property{
		Type:  content.TypeRelation,
		Value: content.RelationValue{IDs: []string{"r1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", got)

	got, err = formatter.Format(context.Background(), content.Property{
		Type:  content.TypeRelation,
		Value: content.RelationValue{IDs: []string{"r1", "r2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme, Globex", got)
}

func TestRelationKeepsReferenceOrderWhenLookupsFinishOutOfOrder(t *testing.T) {
	source := newFakeSource()
	source.addTitled("slow", "Acme")
	source.addTitled("fast", "Globex")
	source.delays["slow"] = 30 * time.Millisecond
	formatter := newTestFormatter(source)

	got, err := formatter.Format(context.Background(), content.Property{
		Type:  content.TypeRelation,
		Value: content.RelationValue{IDs: []string{"slow", "fast"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme, Globex", got)
}

func TestRelationTitleWithoutFragments(t *testing.T) {
	source := newFakeSource()
	source.addTitled("r1", "Acme")
	source.titles["r1/title"] = content.Property{Type: content.TypeTitle, Value: content.TitleValue{}}
	formatter := newTestFormatter(source)

	got, err := formatter.Format(context.Background(), content.Property{
		Type:  content.TypeRelation,
		Value: content.RelationValue{IDs: []string{"r1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, NoTitle, got)
}

func TestRelationLookupFailure(t *testing.T) {
	source := newFakeSource()
	source.addTitled("r1", "Acme")
	source.failures["r2"] = errors.New("connection reset")
	formatter := newTestFormatter(source)

	_, err := formatter.Format(context.Background(), content.Property{
		Type:  content.TypeRelation,
		Value: content.RelationValue{IDs: []string{"r1", "r2"}},
	})
	assert.ErrorContains(t, err, "connection reset")
}
