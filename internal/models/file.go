package models

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// File records an uploaded object and where it can be fetched from.
type File struct {
	Base
	UploaderID uuid.UUID `gorm:"type:uuid;not null;index" json:"uploader_id"`
	Uploader   *User     `gorm:"foreignKey:UploaderID;constraint:OnDelete:CASCADE" json:"-"`
	URL        string    `gorm:"not null" json:"url"`
	MetaData   string    `gorm:"type:text" json:"meta_data,omitempty"`
}

// NewFile builds a file record with a fresh identifier.
func NewFile(uploaderID uuid.UUID, url, metaData string) *File {
	return &File{Base: newBase(), UploaderID: uploaderID, URL: url, MetaData: metaData}
}

// FileExtension returns the lowercased extension of name without the dot.
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
