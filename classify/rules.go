// Package classify assigns a Visibility to a post from its source client.
//
// Classification is an ordered rule table evaluated top to bottom; the first
// rule whose matcher accepts the client name decides the sensitivity level.
// A client that matches no rule gets the classifier's default level. The
// attachment marking is independent of the rules.
package classify

import (
	"fmt"
	"strings"

	"github.com/poiesic/postflow/core"
)

// MatchKind selects how a Rule compares the client name.
type MatchKind int

const (
	// MatchPrefix accepts any client name starting with the pattern.
	MatchPrefix MatchKind = iota + 1
	// MatchExact accepts only the pattern itself.
	MatchExact
)

func (k MatchKind) String() string {
	switch k {
	case MatchPrefix:
		return "prefix"
	case MatchExact:
		return "exact"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// Rule maps a client-name pattern to a sensitivity level.
type Rule struct {
	Kind    MatchKind
	Pattern string
	Level   core.Level
}

// Prefix returns a rule matching client names that start with pattern.
func Prefix(pattern string, level core.Level) Rule {
	return Rule{Kind: MatchPrefix, Pattern: pattern, Level: level}
}

// Exact returns a rule matching exactly pattern.
func Exact(pattern string, level core.Level) Rule {
	return Rule{Kind: MatchExact, Pattern: pattern, Level: level}
}

// Matches reports whether the rule accepts client.
func (r Rule) Matches(client string) bool {
	switch r.Kind {
	case MatchPrefix:
		return strings.HasPrefix(client, r.Pattern)
	case MatchExact:
		return client == r.Pattern
	default:
		return false
	}
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %q -> %s", r.Kind, r.Pattern, r.Level)
}

// DefaultRules returns the standard client table in precedence order.
// Order matters: "Twitter" is a prefix rule and must be tried first.
func DefaultRules() []Rule {
	return []Rule{
		Prefix("Twitter", core.LevelUnclassified),
		Exact("web", core.LevelFOUO),
		Prefix("Tweetbot", core.LevelConfidential),
		Exact("Instagram", core.LevelSecret),
		Exact("TweetDeck", core.LevelTopSecret),
		Exact("Facebook", core.LevelTopSecretUSA),
	}
}

// DefaultLevel is the level given to clients no rule matches.
const DefaultLevel = core.LevelTopSecretFiveEyes
