package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Canonical enum values for buyer classification fields. Values match the
// wire format; CSV tokens are mapped onto them by the lead package.
const (
	StatusNew         = "NEW"
	StatusQualified   = "QUALIFIED"
	StatusContacted   = "CONTACTED"
	StatusVisited     = "VISITED"
	StatusNegotiation = "NEGOTIATION"
	StatusConverted   = "CONVERTED"
	StatusDropped     = "DROPPED"

	PropertyApartment = "APARTMENT"
	PropertyVilla     = "VILLA"
)

// Buyer represents a buyer lead record
type Buyer struct {
	ID           string                      `json:"id" gorm:"type:uuid;primaryKey"`
	FullName     string                      `json:"fullName" gorm:"type:varchar(80);not null"`
	Email        *string                     `json:"email,omitempty" gorm:"type:varchar(255);index"`
	Phone        string                      `json:"phone" gorm:"type:varchar(15);not null;index"`
	City         string                      `json:"city" gorm:"type:varchar(20);not null;index"`
	PropertyType string                      `json:"propertyType" gorm:"type:varchar(20);not null;index"`
	BHK          *string                     `json:"bhk,omitempty" gorm:"type:varchar(10)"`
	Purpose      string                      `json:"purpose" gorm:"type:varchar(10);not null"`
	BudgetMin    *int64                      `json:"budgetMin,omitempty"`
	BudgetMax    *int64                      `json:"budgetMax,omitempty"`
	Timeline     string                      `json:"timeline" gorm:"type:varchar(30);not null"`
	Source       string                      `json:"source" gorm:"type:varchar(20);not null"`
	Status       string                      `json:"status" gorm:"type:varchar(20);not null;default:NEW;index"`
	Notes        *string                     `json:"notes,omitempty" gorm:"type:varchar(1000)"`
	Tags         datatypes.JSONSlice[string] `json:"tags" gorm:"type:jsonb"`
	OwnerID      string                      `json:"ownerId" gorm:"type:uuid;not null;index"`
	Owner        *User                       `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	CreatedAt    time.Time                   `json:"createdAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

// TableName specifies the table name for Buyer
func (Buyer) TableName() string {
	return "buyers"
}

// BeforeCreate hook
func (b *Buyer) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = StatusNew
	}
	if b.Tags == nil {
		b.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}
