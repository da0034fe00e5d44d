package classify

import (
	"fmt"
	"slices"

	"github.com/poiesic/postflow/core"
)

// Classifier evaluates an ordered rule table. It is immutable and safe for
// concurrent use.
type Classifier struct {
	rules    []Rule
	fallback core.Level
}

// Option configures a Classifier.
type Option func(*Classifier) error

// WithRules replaces the rule table. Rules are evaluated in slice order.
func WithRules(rules ...Rule) Option {
	return func(c *Classifier) error {
		for i, r := range rules {
			if r.Kind != MatchPrefix && r.Kind != MatchExact {
				return fmt.Errorf("%w: rule %d has kind %s", ErrInvalidRule, i, r.Kind)
			}
			if !r.Level.Valid() {
				return fmt.Errorf("%w: rule %d has level %s", ErrInvalidRule, i, r.Level)
			}
		}
		c.rules = slices.Clone(rules)
		return nil
	}
}

// WithDefaultLevel sets the level for clients no rule matches.
func WithDefaultLevel(level core.Level) Option {
	return func(c *Classifier) error {
		if !level.Valid() {
			return fmt.Errorf("%w: default level %s", ErrInvalidRule, level)
		}
		c.fallback = level
		return nil
	}
}

// New creates a Classifier using DefaultRules and DefaultLevel unless
// overridden by options.
func New(opts ...Option) (*Classifier, error) {
	c := &Classifier{
		rules:    DefaultRules(),
		fallback: DefaultLevel,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Classify returns the visibility for a post from client with or without
// attachments.
func (c *Classifier) Classify(client string, hasAttachments bool) core.Visibility {
	return core.NewVisibility(c.Level(client), hasAttachments)
}

// Level returns the sensitivity level of the first matching rule.
func (c *Classifier) Level(client string) core.Level {
	for _, r := range c.rules {
		if r.Matches(client) {
			return r.Level
		}
	}
	return c.fallback
}

// Rules returns a copy of the rule table.
func (c *Classifier) Rules() []Rule {
	return slices.Clone(c.rules)
}
