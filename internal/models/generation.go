package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Styles is the closed set of generation styles accepted by the API.
var Styles = []string{"photorealistic", "artistic", "abstract", "vintage", "modern"}

type Generation struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	UserID   string `gorm:"type:uuid;not null;index"`
	ImageURL string `gorm:"not null"`
	Prompt   string `gorm:"not null"`
	Style    string `gorm:"not null"`
	Status   string `gorm:"not null"`
	// Params snapshots the pipeline settings used for this generation.
	Params    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"index"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}

func (g *Generation) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

func ValidStyle(style string) bool {
	for _, s := range Styles {
		if s == style {
			return true
		}
	}
	return false
}
