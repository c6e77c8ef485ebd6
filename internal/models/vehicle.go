package models

import (
	"gorm.io/gorm"
)

type Vehicle struct {
	gorm.Model
	Name          string  `json:"name" gorm:"not null"`
	Category      string  `json:"category" gorm:"not null"`
	PlateSeries   string  `json:"plateSeries"`
	ImageURL      string  `json:"imageUrl"`
	FarePerDay    float64 `json:"farePerDay" gorm:"not null"`
	TotalUnits    int     `json:"totalUnits" gorm:"not null;default:0"`
	ReservedUnits int     `json:"reservedUnits" gorm:"not null;default:0"`
}

// AvailableUnits is derived and never persisted.
func (v *Vehicle) AvailableUnits() int {
	available := v.TotalUnits - v.ReservedUnits
	if available < 0 {
		return 0
	}
	return available
}
