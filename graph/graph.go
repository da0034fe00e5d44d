package graph

import (
	"github.com/poiesic/postflow/core"
)

// Property keys written on vertices and edges.
const (
	KeyScreenName = "screenName"
	KeyTwitterID  = "twitterId"
	KeyTweetID    = "tweetId"
	KeyEdgeName   = "edgeName"
)

// Property is a single string value carrying its own visibility.
type Property struct {
	Key        string          `json:"key"`
	Value      string          `json:"value"`
	Visibility core.Visibility `json:"visibility"`
}

// Vertex represents a user. Its ID is the screen name, which stores use as
// the upsert key.
type Vertex struct {
	ID         string     `json:"id"`
	Selector   string     `json:"selector"` // Key of the property that identifies the account
	Properties []Property `json:"properties"`
}

// Property returns the first property with key.
func (v Vertex) Property(key string) (Property, bool) {
	return findProperty(v.Properties, key)
}

// Edge is a directed, labeled relationship between two vertices.
type Edge struct {
	Out        string          `json:"out"`
	In         string          `json:"in"`
	Label      Label           `json:"label"`
	Properties []Property      `json:"properties"`
	Visibility core.Visibility `json:"visibility"`
}

// Property returns the first property with key.
func (e Edge) Property(key string) (Property, bool) {
	return findProperty(e.Properties, key)
}

// Graph is the set of elements derived from one post. Vertices are not
// deduplicated; the same user may appear more than once.
type Graph struct {
	Vertices []Vertex `json:"vertices"`
	Edges    []Edge   `json:"edges"`
}

// Empty reports whether the graph has no elements.
func (g *Graph) Empty() bool {
	return g == nil || (len(g.Vertices) == 0 && len(g.Edges) == 0)
}

func findProperty(props []Property, key string) (Property, bool) {
	for _, p := range props {
		if p.Key == key {
			return p, true
		}
	}
	return Property{}, false
}
