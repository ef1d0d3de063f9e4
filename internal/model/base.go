// Package model defines the persisted entities of the platform. Every entity
// embeds Record, the shared envelope of identity, timestamps, soft-delete
// marker, free-form metadata and optimistic-lock version.
package model

import "time"

// Record is the envelope embedded by value in every entity.
type Record struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	DeletedAt *time.Time        `json:"deleted_at,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Version   int               `json:"version"`
	CreatedBy string            `json:"created_by,omitempty"`
	UpdatedBy string            `json:"updated_by,omitempty"`
}

// IsDeleted reports whether the record carries a soft-delete marker.
func (r *Record) IsDeleted() bool { return r.DeletedAt != nil }

// SoftDelete stamps the record as deleted at the given time.
func (r *Record) SoftDelete(at time.Time) {
	t := at
	r.DeletedAt = &t
}

// Touch advances the update timestamp and version.
func (r *Record) Touch(at time.Time) {
	r.UpdatedAt = at
	r.Version++
}

// Named extends Record with the human-readable identity shared by most
// aggregates.
type Named struct {
	Record
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
