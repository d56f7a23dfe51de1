/**
 * @description
 * Event database model.
 * Maps to the 'events' table in PostgreSQL. An event is the aggregate
 * container for one or more markets.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import (
	"time"
)

// Event represents a catalog event (a group of related markets)
type Event struct {
	ID          string      `gorm:"primaryKey;column:id" json:"id"`
	Title       string      `gorm:"column:title" json:"title"`
	Slug        string      `gorm:"column:slug;index" json:"slug"`
	Description string      `gorm:"column:description" json:"description"`
	ImageURL    string      `gorm:"column:image_url" json:"image_url"`
	IconURL     string      `gorm:"column:icon_url" json:"icon_url"`
	StartDate   *time.Time  `gorm:"column:start_date" json:"start_date"`
	EndDate     *time.Time  `gorm:"column:end_date" json:"end_date"`
	Volume      float64     `gorm:"column:volume" json:"volume"`
	Volume24h   float64     `gorm:"column:volume_24h;index:idx_events_volume_24h,sort:desc" json:"volume_24h"`
	Liquidity   float64     `gorm:"column:liquidity" json:"liquidity"`
	Active      bool        `gorm:"column:active;default:true;index:idx_events_live,priority:1" json:"active"`
	Closed      bool        `gorm:"column:closed;default:false;index:idx_events_live,priority:2" json:"closed"`
	Archived    bool        `gorm:"column:archived;default:false;index:idx_events_live,priority:3" json:"archived"`
	Tags        StringArray `gorm:"column:tags;type:text[]" json:"tags"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Event to `events`
func (Event) TableName() string {
	return "events"
}

// Live reports whether the event is tradable from the catalog's point of view
func (e *Event) Live() bool {
	return e.Active && !e.Closed && !e.Archived
}
