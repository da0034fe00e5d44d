// Package graph converts a post into a directed, labeled property graph.
//
// Users become vertices keyed by screen name. Every relationship between
// the author and a counterpart is written as two edges, one per direction,
// using the reciprocal labels of a Relationship. Build is pure; persisting
// and merging the result is up to a storage.GraphStore.
package graph

import (
	"fmt"

	"github.com/poiesic/postflow/core"
)

// Build derives the graph for post. Every property and edge carries vis.
//
// The author vertex is always present. A reply takes precedence over a
// retweet as the primary relationship, and its counterpart is dropped from
// the mentions so the pair is linked only once. Remaining mentions are
// linked once per distinct screen name.
func Build(post *core.Post, vis core.Visibility) *Graph {
	g := &Graph{}
	author := post.Author
	g.addUser(author, vis)

	mentions := post.Mentions
	var primary *core.Reference
	var rel Relationship
	switch {
	case post.RepliedTo != nil:
		primary, rel = post.RepliedTo, RepliedTo
	case post.Retweeted != nil:
		primary, rel = post.Retweeted, Retweeted
	}
	if primary != nil {
		mentions = without(mentions, primary.User)
		g.relate(rel, post.ID, author, primary.User, vis)
	}

	for _, u := range distinct(mentions) {
		g.relate(Mentioned, post.ID, author, u, vis)
	}

	return g
}

// EdgeName is the descriptor stored on both edges of a relationship.
func EdgeName(author string, label Label, counterpart string) string {
	return fmt.Sprintf("%s_%s_%s", author, label, counterpart)
}

func (g *Graph) addUser(u core.User, vis core.Visibility) {
	g.Vertices = append(g.Vertices, Vertex{
		ID:       u.ScreenName,
		Selector: KeyTwitterID,
		Properties: []Property{
			{Key: KeyScreenName, Value: u.ScreenName, Visibility: vis},
			{Key: KeyTwitterID, Value: u.ID, Visibility: vis},
		},
	})
}

// relate adds the counterpart vertex and the reverse then forward edge.
func (g *Graph) relate(rel Relationship, postID string, author, counterpart core.User, vis core.Visibility) {
	g.addUser(counterpart, vis)

	props := func() []Property {
		return []Property{
			{Key: KeyTweetID, Value: postID, Visibility: vis},
			{Key: KeyEdgeName, Value: EdgeName(author.ScreenName, rel.Forward, counterpart.ScreenName), Visibility: vis},
		}
	}
	g.Edges = append(g.Edges,
		Edge{Out: counterpart.ScreenName, In: author.ScreenName, Label: rel.Reverse, Properties: props(), Visibility: vis},
		Edge{Out: author.ScreenName, In: counterpart.ScreenName, Label: rel.Forward, Properties: props(), Visibility: vis},
	)
}

func without(users []core.User, target core.User) []core.User {
	var out []core.User
	for _, u := range users {
		if !u.Same(target) {
			out = append(out, u)
		}
	}
	return out
}

func distinct(users []core.User) []core.User {
	seen := make(map[string]struct{}, len(users))
	var out []core.User
	for _, u := range users {
		if _, ok := seen[u.ScreenName]; ok {
			continue
		}
		seen[u.ScreenName] = struct{}{}
		out = append(out, u)
	}
	return out
}
