package reaction

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// SubscriberAction moves or copies the engaging subscriber to the lists
// named by the campaign's subscriber-action rules.
type SubscriberAction struct {
	rules SubscriberRuleRepository
	lists ListMover
}

// NewSubscriberAction creates the move/copy reaction.
func NewSubscriberAction(rules SubscriberRuleRepository, lists ListMover) *SubscriberAction {
	return &SubscriberAction{rules: rules, lists: lists}
}

func (*SubscriberAction) Name() string { return "subscriber_action" }

func (s *SubscriberAction) Apply(ctx context.Context, ev *Event) error {
	rules, err := s.rules.SubscriberRules(ctx, ev.Campaign.ID, ev.Type, ev.urlID())
	if err != nil {
		return fmt.Errorf("load subscriber rules: %w", err)
	}

	var result *multierror.Error
	for _, rule := range rules {
		var done bool
		switch rule.Action {
		case domain.ActionMove:
			done, err = s.lists.Move(ctx, ev.Subscriber, rule.TargetListID)
		case domain.ActionCopy:
			done, err = s.lists.Copy(ctx, ev.Subscriber, rule.TargetListID)
		default:
			err = fmt.Errorf("unknown action %q", rule.Action)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("rule %s: %w", rule.ID, err))
			continue
		}
		if done {
			logger.Info("subscriber list action applied",
				"action", string(rule.Action),
				"subscriber_uid", ev.Subscriber.UID,
				"target_list_id", rule.TargetListID,
			)
		}
	}
	return result.ErrorOrNil()
}
