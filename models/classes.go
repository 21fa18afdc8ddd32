// Package models - NudeNet label table, policy set and model artifacts.
package models

import "fmt"

// Labels is the NudeNet detector's class table, in model output order.
var Labels = []string{
	"FEMALE_GENITALIA_COVERED",
	"FACE_FEMALE",
	"BUTTOCKS_EXPOSED",
	"FEMALE_BREAST_EXPOSED",
	"FEMALE_GENITALIA_EXPOSED",
	"MALE_BREAST_EXPOSED",
	"ANUS_EXPOSED",
	"FEET_EXPOSED",
	"BELLY_COVERED",
	"FEET_COVERED",
	"ARMPITS_COVERED",
	"ARMPITS_EXPOSED",
	"FACE_MALE",
	"BELLY_EXPOSED",
	"MALE_GENITALIA_EXPOSED",
	"ANUS_COVERED",
	"FEMALE_BREAST_COVERED",
	"BUTTOCKS_COVERED",
}

// Flagged lists the labels that make an image NSFW when detected with enough confidence.
var Flagged = []string{
	"FEMALE_GENITALIA_EXPOSED",
	"BUTTOCKS_EXPOSED",
	"FEMALE_BREAST_EXPOSED",
	"MALE_GENITALIA_EXPOSED",
	"ANUS_EXPOSED",
	"ARMPITS_EXPOSED",
	"BELLY_EXPOSED",
	"MALE_BREAST_EXPOSED",
}

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int `json:"index" yaml:"index"`
	// The human-readable label.
	Name string `json:"name" yaml:"name"`
	// Flagged marks labels that trip the content policy.
	Flagged bool `json:"flagged" yaml:"flagged"`
}

// LabelSet is an immutable, index-addressable class table with its policy-flagged subset.
type LabelSet struct {
	classes   []OutputClass
	nameToIdx map[string]int
}

// NewLabelSet builds a set from ordered names and the flagged subset.
//
// Arguments:
//   - names: Class names in model output order.
//   - flagged: Names that trip the content policy; each must appear in names.
//
// Returns:
//   - LabelSet: The immutable set.
//   - error: An error for duplicate names or unknown flagged names.
func NewLabelSet(names, flagged []string) (LabelSet, error) {
	set := LabelSet{
		classes:   make([]OutputClass, len(names)),
		nameToIdx: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if _, dup := set.nameToIdx[name]; dup {
			return LabelSet{}, fmt.Errorf("duplicate label %q", name)
		}
		set.classes[i] = OutputClass{Index: i, Name: name}
		set.nameToIdx[name] = i
	}
	for _, name := range flagged {
		idx, ok := set.nameToIdx[name]
		if !ok {
			return LabelSet{}, fmt.Errorf("flagged label %q is not in the label table", name)
		}
		set.classes[idx].Flagged = true
	}
	return set, nil
}

// DefaultLabels returns the NudeNet label set.
func DefaultLabels() LabelSet {
	set, err := NewLabelSet(Labels, Flagged)
	if err != nil {
		panic(err)
	}
	return set
}

// Len returns the number of classes.
func (s LabelSet) Len() int {
	return len(s.classes)
}

// Name returns the label at index i, or a placeholder for indexes outside the table.
func (s LabelSet) Name(i int) string {
	if i < 0 || i >= len(s.classes) {
		return fmt.Sprintf("class_%d", i)
	}
	return s.classes[i].Name
}

// Index returns the index of a label name.
func (s LabelSet) Index(name string) (int, bool) {
	i, ok := s.nameToIdx[name]
	return i, ok
}

// IsFlagged reports whether the class at index i is policy-flagged. Unknown indexes are not.
func (s LabelSet) IsFlagged(i int) bool {
	if i < 0 || i >= len(s.classes) {
		return false
	}
	return s.classes[i].Flagged
}

// Classes returns a copy of the class table.
func (s LabelSet) Classes() []OutputClass {
	out := make([]OutputClass, len(s.classes))
	copy(out, s.classes)
	return out
}
