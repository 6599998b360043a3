package content

// Property type tags as they appear in the API
const (
	TypeTitle          = "title"
	TypeRichText       = "rich_text"
	TypeSelect         = "select"
	TypeMultiSelect    = "multi_select"
	TypeEmail          = "email"
	TypePhoneNumber    = "phone_number"
	TypeURL            = "url"
	TypeDate           = "date"
	TypeRelation       = "relation"
	TypePeople         = "people"
	TypeStatus         = "status"
	TypeCheckbox       = "checkbox"
	TypeNumber         = "number"
	TypeCreatedTime    = "created_time"
	TypeCreatedBy      = "created_by"
	TypeLastEditedTime = "last_edited_time"
	TypeLastEditedBy   = "last_edited_by"
	TypeVerification   = "verification"
)

// Property is one named, typed value of a record.
//
// Err is set when the JSON shape did not match the type tag; Value is nil in
// that case and formatting the property fails.
type Property struct {
	ID    string
	Name  string
	Type  string
	Value Value
	Err   error
}

// Value is the closed set of property values. UnknownValue covers any tag
// this package does not recognize.
type Value interface {
	Tag() string
	isValue()
}

// Option is a select, multi-select or status option
type Option struct {
	ID    string
	Name  string
	Color string
}

// User is a person referenced by people, created_by and last_edited_by
type User struct {
	ID   string
	Name string
}

type TitleValue struct{ Text []RichText }

type RichTextValue struct{ Text []RichText }

// SelectValue holds the chosen option, nil when unset
type SelectValue struct{ Option *Option }

type MultiSelectValue struct{ Options []Option }

type EmailValue struct{ Email string }

type PhoneNumberValue struct{ PhoneNumber string }

type URLValue struct{ URL string }

// DateValue keeps the raw ISO strings. Start is empty when the date is unset.
type DateValue struct {
	Start    string
	End      string
	TimeZone string
}

// RelationValue lists the IDs of the referenced records
type RelationValue struct{ IDs []string }

type PeopleValue struct{ People []User }

// StatusValue holds the current status, nil when unset
type StatusValue struct{ Option *Option }

type CheckboxValue struct{ Checked bool }

// NumberValue holds the number, nil when unset
type NumberValue struct{ Number *float64 }

type CreatedTimeValue struct{ Time string }

type CreatedByValue struct{ User User }

type LastEditedTimeValue struct{ Time string }

type LastEditedByValue struct{ User User }

// VerificationValue holds the verification state, empty when absent
type VerificationValue struct{ State string }

// UnknownValue is produced for any unrecognized type tag
type UnknownValue struct{ Type string }

func (TitleValue) Tag() string          { return TypeTitle }
func (RichTextValue) Tag() string       { return TypeRichText }
func (SelectValue) Tag() string         { return TypeSelect }
func (MultiSelectValue) Tag() string    { return TypeMultiSelect }
func (EmailValue) Tag() string          { return TypeEmail }
func (PhoneNumberValue) Tag() string    { return TypePhoneNumber }
func (URLValue) Tag() string            { return TypeURL }
func (DateValue) Tag() string           { return TypeDate }
func (RelationValue) Tag() string       { return TypeRelation }
func (PeopleValue) Tag() string         { return TypePeople }
func (StatusValue) Tag() string         { return TypeStatus }
func (CheckboxValue) Tag() string       { return TypeCheckbox }
func (NumberValue) Tag() string         { return TypeNumber }
func (CreatedTimeValue) Tag() string    { return TypeCreatedTime }
func (CreatedByValue) Tag() string      { return TypeCreatedBy }
func (LastEditedTimeValue) Tag() string { return TypeLastEditedTime }
func (LastEditedByValue) Tag() string   { return TypeLastEditedBy }
func (VerificationValue) Tag() string   { return TypeVerification }
func (v UnknownValue) Tag() string      { return v.Type }

func (TitleValue) isValue()          {}
func (RichTextValue) isValue()       {}
func (SelectValue) isValue()         {}
func (MultiSelectValue) isValue()    {}
func (EmailValue) isValue()          {}
func (PhoneNumberValue) isValue()    {}
func (URLValue) isValue()            {}
func (DateValue) isValue()           {}
func (RelationValue) isValue()       {}
func (PeopleValue) isValue()         {}
func (StatusValue) isValue()         {}
func (CheckboxValue) isValue()       {}
func (NumberValue) isValue()         {}
func (CreatedTimeValue) isValue()    {}
func (CreatedByValue) isValue()      {}
func (LastEditedTimeValue) isValue() {}
func (LastEditedByValue) isValue()   {}
func (VerificationValue) isValue()   {}
func (UnknownValue) isValue()        {}
