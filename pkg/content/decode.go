package content

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	sdkerrors "github.com/wehubfusion/Ariadne/pkg/errors"
)

// Decoding walks the JSON with gjson instead of unmarshalling into maps so
// that properties keep the order in which the API returned them.

// ParseRecord decodes a single page object
func ParseRecord(data []byte) (Record, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(doc)
}

// ParseRecords decodes the results of a database query. An entry that cannot
// be decoded is kept in place with Err set.
func ParseRecords(data []byte) ([]Record, error) {
	results, err := parseResults(data)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(results))
	for i, item := range results {
		record, err := decodeRecord(item)
		if err != nil {
			record = Record{
				ID:     item.Get("id").String(),
				Object: ObjectKind(item.Get("object").Str),
				Raw:    json.RawMessage(item.Raw),
				Err:    fmt.Errorf("result %d: %w", i, err),
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// ParseBlocks decodes a block children listing. A block without an id is
// kept in place with Err set.
func ParseBlocks(data []byte) ([]Block, error) {
	results, err := parseResults(data)
	if err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, len(results))
	for i, item := range results {
		blockType := item.Get("type").Str
		block := Block{
			Type: blockType,
			Raw:  json.RawMessage(item.Raw),
		}
		id := item.Get("id")
		if id.Type != gjson.String || id.Str == "" {
			block.Err = fmt.Errorf("%w: block %d has no id", sdkerrors.ErrMalformedResponse, i)
			blocks = append(blocks, block)
			continue
		}
		block.ID = id.Str
		block.HasChildren = item.Get("has_children").Bool()
		if blockType != "" {
			if text := item.Get(gjson.Escape(blockType) + ".rich_text"); text.IsArray() {
				block.Text = decodeFragments(text)
			}
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// ParseSearchResults decodes the results of a workspace search
func ParseSearchResults(data []byte) ([]SearchResult, error) {
	results, err := parseResults(data)
	if err != nil {
		return nil, err
	}

	items := make([]SearchResult, 0, len(results))
	for _, item := range results {
		items = append(items, SearchResult{
			ID:     item.Get("id").Str,
			Object: ObjectKind(item.Get("object").Str),
			Raw:    json.RawMessage(item.Raw),
		})
	}
	return items, nil
}

// ParsePropertyItem decodes the response of a property item retrieval.
// Paginated types (title, rich_text, people, relation) arrive as a list of
// property_item objects holding one element each; they are folded back into
// a single Property.
func ParsePropertyItem(data []byte) (Property, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return Property{}, err
	}

	switch doc.Get("object").Str {
	case "list":
		return decodePropertyItemList(doc), nil
	case "property_item":
		p := Property{ID: doc.Get("id").Str, Type: doc.Get("type").Str}
		p.Value, p.Err = decodeValue(p.Type, doc)
		return p, nil
	default:
		return Property{}, fmt.Errorf("%w: unexpected object %q", sdkerrors.ErrMalformedResponse, doc.Get("object").Str)
	}
}

func decodePropertyItemList(doc gjson.Result) Property {
	itemType := doc.Get("property_item.type").Str
	p := Property{
		ID:   doc.Get("property_item.id").Str,
		Type: itemType,
	}

	results := doc.Get("results").Array()
	switch itemType {
	case TypeTitle, TypeRichText:
		fragments := make([]RichText, 0, len(results))
		for _, item := range results {
			fragments = append(fragments, decodeFragment(item.Get(itemType)))
		}
		if itemType == TypeTitle {
			p.Value = TitleValue{Text: fragments}
		} else {
			p.Value = RichTextValue{Text: fragments}
		}
	case TypePeople:
		people := make([]User, 0, len(results))
		for _, item := range results {
			people = append(people, decodeUser(item.Get("people")))
		}
		p.Value = PeopleValue{People: people}
	case TypeRelation:
		ids := make([]string, 0, len(results))
		for _, item := range results {
			ids = append(ids, item.Get("relation.id").Str)
		}
		p.Value = RelationValue{IDs: ids}
	default:
		p.Value = UnknownValue{Type: itemType}
	}
	return p
}

func parseDocument(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: invalid JSON", sdkerrors.ErrMalformedResponse)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: expected an object", sdkerrors.ErrMalformedResponse)
	}
	return doc, nil
}

func parseResults(data []byte) ([]gjson.Result, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	results := doc.Get("results")
	if !results.IsArray() {
		return nil, fmt.Errorf("%w: results is not an array", sdkerrors.ErrMalformedResponse)
	}
	return results.Array(), nil
}

func decodeRecord(doc gjson.Result) (Record, error) {
	if !doc.IsObject() {
		return Record{}, fmt.Errorf("%w: record is not an object", sdkerrors.ErrMalformedResponse)
	}
	id := doc.Get("id")
	if id.Type != gjson.String || id.Str == "" {
		return Record{}, fmt.Errorf("%w: record has no id", sdkerrors.ErrMalformedResponse)
	}

	record := Record{
		ID:     id.Str,
		Object: ObjectKind(doc.Get("object").Str),
		Raw:    json.RawMessage(doc.Raw),
	}

	doc.Get("properties").ForEach(func(key, value gjson.Result) bool {
		record.Properties = append(record.Properties, decodeProperty(key.String(), value))
		return true
	})
	return record, nil
}

func decodeProperty(name string, v gjson.Result) Property {
	p := Property{
		ID:   v.Get("id").Str,
		Name: name,
		Type: v.Get("type").Str,
	}
	value, err := decodeValue(p.Type, v)
	if err != nil {
		p.Err = fmt.Errorf("property %q: %w", name, err)
		return p
	}
	p.Value = value
	return p
}

// decodeValue reads the field named after tag from v
func decodeValue(tag string, v gjson.Result) (Value, error) {
	var field gjson.Result
	if tag != "" {
		field = v.Get(gjson.Escape(tag))
	}

	switch tag {
	case TypeTitle:
		if field.Exists() && !field.IsArray() {
			return nil, malformed(tag, "expected an array")
		}
		return TitleValue{Text: decodeFragments(field)}, nil

	case TypeRichText:
		if !field.IsArray() {
			return nil, malformed(tag, "expected an array")
		}
		return RichTextValue{Text: decodeFragments(field)}, nil

	case TypeSelect, TypeStatus:
		option, err := decodeOption(tag, field)
		if err != nil {
			return nil, err
		}
		if tag == TypeSelect {
			return SelectValue{Option: option}, nil
		}
		return StatusValue{Option: option}, nil

	case TypeMultiSelect:
		if !field.IsArray() {
			return nil, malformed(tag, "expected an array")
		}
		var options []Option
		for _, item := range field.Array() {
			options = append(options, Option{
				ID:    item.Get("id").Str,
				Name:  item.Get("name").Str,
				Color: item.Get("color").Str,
			})
		}
		return MultiSelectValue{Options: options}, nil

	case TypeEmail, TypePhoneNumber, TypeURL:
		s, err := nullableString(tag, field)
		if err != nil {
			return nil, err
		}
		switch tag {
		case TypeEmail:
			return EmailValue{Email: s}, nil
		case TypePhoneNumber:
			return PhoneNumberValue{PhoneNumber: s}, nil
		}
		return URLValue{URL: s}, nil

	case TypeDate:
		if isNull(field) {
			return DateValue{}, nil
		}
		if !field.IsObject() {
			return nil, malformed(tag, "expected an object")
		}
		return DateValue{
			Start:    field.Get("start").Str,
			End:      field.Get("end").Str,
			TimeZone: field.Get("time_zone").Str,
		}, nil

	case TypeRelation:
		if !field.IsArray() {
			return nil, malformed(tag, "expected an array")
		}
		var ids []string
		for _, item := range field.Array() {
			id := item.Get("id")
			if id.Type != gjson.String {
				return nil, malformed(tag, "reference without id")
			}
			ids = append(ids, id.Str)
		}
		return RelationValue{IDs: ids}, nil

	case TypePeople:
		if field.Exists() && !field.IsArray() {
			return nil, malformed(tag, "expected an array")
		}
		var people []User
		for _, item := range field.Array() {
			people = append(people, decodeUser(item))
		}
		return PeopleValue{People: people}, nil

	case TypeCheckbox:
		if field.Type != gjson.True && field.Type != gjson.False {
			return nil, malformed(tag, "expected a boolean")
		}
		return CheckboxValue{Checked: field.Bool()}, nil

	case TypeNumber:
		if isNull(field) {
			return NumberValue{}, nil
		}
		if field.Type != gjson.Number {
			return nil, malformed(tag, "expected a number")
		}
		n := field.Num
		return NumberValue{Number: &n}, nil

	case TypeCreatedTime, TypeLastEditedTime:
		if field.Type != gjson.String {
			return nil, malformed(tag, "expected a string")
		}
		if tag == TypeCreatedTime {
			return CreatedTimeValue{Time: field.Str}, nil
		}
		return LastEditedTimeValue{Time: field.Str}, nil

	case TypeCreatedBy, TypeLastEditedBy:
		if !field.IsObject() {
			return nil, malformed(tag, "expected an object")
		}
		if tag == TypeCreatedBy {
			return CreatedByValue{User: decodeUser(field)}, nil
		}
		return LastEditedByValue{User: decodeUser(field)}, nil

	case TypeVerification:
		if isNull(field) {
			return VerificationValue{}, nil
		}
		if !field.IsObject() {
			return nil, malformed(tag, "expected an object")
		}
		return VerificationValue{State: field.Get("state").Str}, nil
	}

	return UnknownValue{Type: tag}, nil
}

func decodeOption(tag string, field gjson.Result) (*Option, error) {
	if isNull(field) {
		return nil, nil
	}
	if !field.IsObject() {
		return nil, malformed(tag, "expected an object")
	}
	return &Option{
		ID:    field.Get("id").Str,
		Name:  field.Get("name").Str,
		Color: field.Get("color").Str,
	}, nil
}

func decodeFragments(field gjson.Result) []RichText {
	items := field.Array()
	if len(items) == 0 {
		return nil
	}
	fragments := make([]RichText, 0, len(items))
	for _, item := range items {
		fragments = append(fragments, decodeFragment(item))
	}
	return fragments
}

func decodeFragment(item gjson.Result) RichText {
	text := item.Get("plain_text")
	if !text.Exists() {
		text = item.Get("text.content")
	}
	return RichText{
		PlainText: text.String(),
		Href:      item.Get("href").Str,
	}
}

func decodeUser(item gjson.Result) User {
	return User{
		ID:   item.Get("id").Str,
		Name: item.Get("name").Str,
	}
}

func nullableString(tag string, field gjson.Result) (string, error) {
	if isNull(field) {
		return "", nil
	}
	if field.Type != gjson.String {
		return "", malformed(tag, "expected a string")
	}
	return field.Str, nil
}

func isNull(field gjson.Result) bool {
	return !field.Exists() || field.Type == gjson.Null
}

func malformed(tag, reason string) error {
	return fmt.Errorf("%w: %s: %s", sdkerrors.ErrMalformedProperty, tag, reason)
}
