package graph

// Label names a directed edge.
type Label string

const (
	LabelMentioned   Label = "mentioned"
	LabelMentionedBy Label = "mentionedBy"
	LabelRetweeted   Label = "retweeted"
	LabelRetweetedBy Label = "retweetedBy"
	LabelRepliedTo   Label = "repliedTo"
	LabelRepliedToBy Label = "repliedToBy"
)

// Relationship pairs the label used from author to counterpart with the
// label used in the opposite direction.
type Relationship struct {
	Forward Label
	Reverse Label
}

var (
	Mentioned = Relationship{Forward: LabelMentioned, Reverse: LabelMentionedBy}
	Retweeted = Relationship{Forward: LabelRetweeted, Reverse: LabelRetweetedBy}
	RepliedTo = Relationship{Forward: LabelRepliedTo, Reverse: LabelRepliedToBy}
)

// Relationships returns the closed relationship vocabulary.
func Relationships() []Relationship {
	return []Relationship{Mentioned, Retweeted, RepliedTo}
}

// Labels returns every label in the vocabulary, forward labels first.
func Labels() []Label {
	rels := Relationships()
	labels := make([]Label, 0, 2*len(rels))
	for _, r := range rels {
		labels = append(labels, r.Forward)
	}
	for _, r := range rels {
		labels = append(labels, r.Reverse)
	}
	return labels
}

// Reciprocal returns the label of the edge running the other way.
func (l Label) Reciprocal() (Label, bool) {
	for _, r := range Relationships() {
		switch l {
		case r.Forward:
			return r.Reverse, true
		case r.Reverse:
			return r.Forward, true
		}
	}
	return "", false
}

// Known reports whether l belongs to the vocabulary.
func (l Label) Known() bool {
	_, ok := l.Reciprocal()
	return ok
}
