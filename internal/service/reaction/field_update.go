package reaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/ignite/engagement-tracker/internal/content"
	"github.com/ignite/engagement-tracker/internal/domain"
)

// FieldUpdate writes the subscriber list fields configured for the
// campaign, e.g. LAST_OPEN=[DATETIME]. Rule values are expanded with the
// event tags and, when templates is set, rendered as Liquid.
type FieldUpdate struct {
	rules     FieldRuleRepository
	fields    FieldWriter
	templates *content.TemplateEngine
}

// NewFieldUpdate creates the field-update reaction. templates may be nil.
func NewFieldUpdate(rules FieldRuleRepository, fields FieldWriter, templates *content.TemplateEngine) *FieldUpdate {
	return &FieldUpdate{rules: rules, fields: fields, templates: templates}
}

func (*FieldUpdate) Name() string { return "field_update" }

func (f *FieldUpdate) Apply(ctx context.Context, ev *Event) error {
	rules, err := f.rules.FieldRules(ctx, ev.Campaign.ID, ev.Type, ev.urlID())
	if err != nil {
		return fmt.Errorf("load field rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	cc := ev.ContentContext()
	tags := content.BuildTags(cc)

	var result *multierror.Error
	for _, rule := range rules {
		value := content.ParseTags(rule.Value, tags, nil)
		if f.templates != nil && content.IsTemplate(value) {
			if out, err := f.templates.Render(value, content.Bindings(cc)); err == nil {
				value = out
			}
		}
		field := domain.ListField{ID: rule.FieldID, ListID: ev.Subscriber.ListID, Tag: rule.FieldTag}
		if err := f.fields.SetField(ctx, ev.Subscriber, field, value); err != nil {
			result = multierror.Append(result, fmt.Errorf("rule %s: %w", rule.ID, err))
			continue
		}
		// later rules may reference the value just written
		tags[strings.ToUpper(rule.FieldTag)] = value
	}
	return result.ErrorOrNil()
}
