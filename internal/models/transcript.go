package models

import "strings"

type Segment struct {
	Start float64 `bson:"start" json:"start"`
	End   float64 `bson:"end" json:"end"`
	Text  string  `bson:"text" json:"text"`
}

type Transcript struct {
	Language string    `bson:"language" json:"language"`
	Segments []Segment `bson:"segments" json:"segments"`
}

// Text joins segment texts with a single space, in order.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if txt := strings.TrimSpace(s.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}
