package models

import (
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// KBExample is one patient utterance of the retrieval knowledge base.
// Position fixes load order, which breaks distance ties.
type KBExample struct {
	ID        string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Position  int64           `gorm:"column:position;uniqueIndex" json:"position"`
	Text      string          `gorm:"column:text;type:text" json:"text"`
	Model     string          `gorm:"column:model;type:text" json:"model"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector" json:"-"`
	Metadata  datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (KBExample) TableName() string { return "patient_kb_examples" }
