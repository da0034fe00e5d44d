package core

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Level is a sensitivity level in the ordered visibility lattice.
// Higher values are more sensitive.
type Level int

const (
	LevelUnclassified Level = iota + 1
	LevelFOUO
	LevelConfidential
	LevelSecret
	LevelTopSecret
	LevelTopSecretUSA
	LevelTopSecretFiveEyes
)

// Formal labels, indexed by Level.
var levelLabels = [...]string{
	LevelUnclassified:      "U",
	LevelFOUO:              "U&FOUO",
	LevelConfidential:      "C",
	LevelSecret:            "S",
	LevelTopSecret:         "TS",
	LevelTopSecretUSA:      "TS&USA",
	LevelTopSecretFiveEyes: "TS&(USA|GBR)",
}

// Levels returns every level from least to most sensitive.
func Levels() []Level {
	return []Level{
		LevelUnclassified,
		LevelFOUO,
		LevelConfidential,
		LevelSecret,
		LevelTopSecret,
		LevelTopSecretUSA,
		LevelTopSecretFiveEyes,
	}
}

// Valid reports whether l is a member of the lattice.
func (l Level) Valid() bool {
	return l >= LevelUnclassified && l <= LevelTopSecretFiveEyes
}

// String returns the formal label of the level.
func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelLabels[l]
}

// ParseLevel converts a formal label such as "TS&USA" back to its Level.
func ParseLevel(formal string) (Level, error) {
	for _, l := range Levels() {
		if levelLabels[l] == formal {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, formal)
}

// Visibility is the access classification attached to every unit of data
// that leaves the pipeline. It is an immutable value: the With* methods
// return modified copies.
type Visibility struct {
	level         Level
	attachments   bool
	provenanceID  ProvenanceID
	hasProvenance bool
}

// NewVisibility creates a Visibility at the given level.
func NewVisibility(level Level, attachments bool) Visibility {
	return Visibility{level: level, attachments: attachments}
}

// Level returns the sensitivity level.
func (v Visibility) Level() Level {
	return v.level
}

// Formal returns the formal label of the sensitivity level.
func (v Visibility) Formal() string {
	return v.level.String()
}

// Attachments reports whether the classified record carries attachments.
func (v Visibility) Attachments() bool {
	return v.attachments
}

// ProvenanceID returns the provenance annotation, if one was attached.
func (v Visibility) ProvenanceID() (ProvenanceID, bool) {
	return v.provenanceID, v.hasProvenance
}

// WithProvenanceID returns a copy of v annotated with id.
func (v Visibility) WithProvenanceID(id ProvenanceID) Visibility {
	v.provenanceID = id
	v.hasProvenance = true
	return v
}

// WithAttachments returns a copy of v with the attachment marking set to has.
func (v Visibility) WithAttachments(has bool) Visibility {
	v.attachments = has
	return v
}

// Equal reports whether v and other carry the same level and markings.
func (v Visibility) Equal(other Visibility) bool {
	return v == other
}

// Validate returns ErrUnknownLevel if the level is outside the lattice, as
// it is for the zero Visibility.
func (v Visibility) Validate() error {
	if !v.level.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownLevel, v.level)
	}
	return nil
}

func (v Visibility) String() string {
	s := v.Formal()
	if v.attachments {
		s += " +attachments"
	}
	if v.hasProvenance {
		s += fmt.Sprintf(" id=%d", v.provenanceID)
	}
	return s
}

type visibilityJSON struct {
	Formal       string        `json:"formal"`
	Attachments  bool          `json:"attachments,omitempty"`
	ProvenanceID *ProvenanceID `json:"provenance_id,omitempty"`
}

// MarshalJSON encodes the visibility with its formal label. Levels outside
// the lattice are rejected so that every encoded value decodes again.
func (v Visibility) MarshalJSON() ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	out := visibilityJSON{Formal: v.Formal(), Attachments: v.attachments}
	if v.hasProvenance {
		id := v.provenanceID
		out.ProvenanceID = &id
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a visibility written by MarshalJSON.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var in visibilityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	level, err := ParseLevel(in.Formal)
	if err != nil {
		return err
	}
	*v = NewVisibility(level, in.Attachments)
	if in.ProvenanceID != nil {
		*v = v.WithProvenanceID(*in.ProvenanceID)
	}
	return nil
}
