package flatten

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wehubfusion/Ariadne/pkg/concurrency"
	"github.com/wehubfusion/Ariadne/pkg/content"
	sdkerrors "github.com/wehubfusion/Ariadne/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Formatter renders a single property value as text.
// Relation values are resolved to the titles of the referenced records.
type Formatter struct {
	source  content.Source
	gateway *concurrency.Gateway
	logger  *zap.Logger
}

// NewFormatter creates a formatter. A nil logger disables logging.
func NewFormatter(source content.Source, gateway *concurrency.Gateway, logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{source: source, gateway: gateway, logger: logger}
}

// Format returns the text of p. Errors come from malformed values or failed
// relation lookups; isolating them is up to the caller.
func (f *Formatter) Format(ctx context.Context, p content.Property) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}

	switch v := p.Value.(type) {
	case content.TitleValue:
		return content.PlainText(v.Text), nil
	case content.RichTextValue:
		return content.PlainText(v.Text), nil
	case content.SelectValue:
		return optionName(v.Option), nil
	case content.StatusValue:
		return optionName(v.Option), nil
	case content.MultiSelectValue:
		names := make([]string, len(v.Options))
		for i, o := range v.Options {
			names[i] = o.Name
		}
		return strings.Join(names, ", "), nil
	case content.EmailValue:
		return v.Email, nil
	case content.PhoneNumberValue:
		return v.PhoneNumber, nil
	case content.URLValue:
		return v.URL, nil
	case content.DateValue:
		return v.Start, nil
	case content.RelationValue:
		return f.relationTitles(ctx, v.IDs)
	case content.PeopleValue:
		names := make([]string, len(v.People))
		for i, u := range v.People {
			names[i] = u.Name
		}
		return strings.Join(names, ", "), nil
	case content.CheckboxValue:
		if v.Checked {
			return "V", nil
		}
		return "X", nil
	case content.NumberValue:
		if v.Number == nil {
			return "", nil
		}
		return strconv.FormatFloat(*v.Number, 'f', -1, 64), nil
	case content.CreatedTimeValue:
		return v.Time, nil
	case content.LastEditedTimeValue:
		return v.Time, nil
	case content.CreatedByValue:
		return v.User.Name, nil
	case content.LastEditedByValue:
		return v.User.Name, nil
	case content.VerificationValue:
		return v.State, nil
	case content.UnknownValue:
		f.logger.Warn("Unknown property type",
			zap.String("property", p.Name),
			zap.String("type", v.Type))
		return UnknownType, nil
	case nil:
		return "", fmt.Errorf("%w: property %q has no value", sdkerrors.ErrMalformedProperty, p.Name)
	}

	f.logger.Warn("Unknown property type",
		zap.String("property", p.Name),
		zap.String("type", p.Value.Tag()))
	return UnknownType, nil
}

func optionName(o *content.Option) string {
	if o == nil {
		return ""
	}
	return o.Name
}

// relationTitles resolves every referenced record concurrently and joins
// the titles in reference order
func (f *Formatter) relationTitles(ctx context.Context, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}

	titles := make([]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			title, err := safely(func() (string, error) {
				return f.RecordTitle(gctx, id)
			})
			if err != nil {
				return fmt.Errorf("resolve relation %s: %w", id, err)
			}
			titles[i] = title
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(titles, ", "), nil
}
