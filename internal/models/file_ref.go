package models

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// FileKind tags which storage backend a FileRef points at.
type FileKind string

const (
	// FileKindNone marks the absence of a stored file.
	FileKindNone FileKind = ""
	// FileKindCloud references an asset hosted by the cloud object store.
	FileKindCloud FileKind = "cloud"
	// FileKindLegacyRelative references a file on disk relative to the legacy upload root.
	FileKindLegacyRelative FileKind = "legacy_relative"
	// FileKindLegacyAbsolute references a file on disk by absolute path.
	FileKindLegacyAbsolute FileKind = "legacy_absolute"
)

const cloudUploadSegment = "/upload/"

// FileRef is a stored file reference. Kind is decided once when the reference is written so readers
// never have to guess which of the location fields is meaningful.
type FileRef struct {
	Kind         FileKind `gorm:"size:32" json:"kind"`
	Location     string   `gorm:"size:1024" json:"location"`
	PublicID     string   `gorm:"size:255" json:"public_id,omitempty"`
	ResourceType string   `gorm:"size:32" json:"resource_type,omitempty"`
	Name         string   `gorm:"size:255" json:"name,omitempty"`
	MimeType     string   `gorm:"size:128" json:"mime_type,omitempty"`
	Size         int64    `json:"size,omitempty"`
}

// CloudFile builds a reference to an asset held by the cloud object store.
func CloudFile(secureURL, publicID, resourceType string) FileRef {
	return FileRef{
		Kind:         FileKindCloud,
		Location:     strings.TrimSpace(secureURL),
		PublicID:     strings.TrimSpace(publicID),
		ResourceType: strings.TrimSpace(resourceType),
	}
}

// LegacyFile builds a reference to a file on local disk, classifying it as absolute or relative.
func LegacyFile(location string) FileRef {
	cleaned := strings.TrimSpace(strings.ReplaceAll(location, "\\", "/"))
	if cleaned == "" {
		return FileRef{}
	}

	if filepath.IsAbs(cleaned) {
		return FileRef{Kind: FileKindLegacyAbsolute, Location: filepath.Clean(cleaned), Name: path.Base(cleaned)}
	}

	// Old uploads stored the full multer destination; keep everything from "uploads/" on.
	if idx := strings.LastIndex(cleaned, "uploads/"); idx > 0 {
		cleaned = cleaned[idx:]
	}

	return FileRef{Kind: FileKindLegacyRelative, Location: path.Clean(cleaned), Name: path.Base(cleaned)}
}

// NewFileRef classifies a single raw reference string.
func NewFileRef(reference string) FileRef {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return FileRef{}
	}
	if IsCloudURL(reference) {
		ref := CloudFile(reference, "", "")
		ref.Name = path.Base(strings.SplitN(reference, "?", 2)[0])
		return ref
	}
	return LegacyFile(reference)
}

// ClassifyReference picks the authoritative reference among the fields of a pre-migration record.
// A cloud URL wins over a relative legacy path, which wins over an absolute legacy path.
func ClassifyReference(cloudURL, publicID, relativePath, absolutePath string) FileRef {
	if IsCloudURL(cloudURL) {
		return CloudFile(cloudURL, publicID, "")
	}
	if rel := strings.TrimSpace(relativePath); rel != "" {
		if ref := LegacyFile(rel); ref.Kind == FileKindLegacyRelative {
			return ref
		}
	}
	if abs := strings.TrimSpace(absolutePath); abs != "" {
		return LegacyFile(abs)
	}
	return FileRef{}
}

// IsCloudURL reports whether the value is a fully-qualified http(s) URL.
func IsCloudURL(value string) bool {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// IsZero reports whether no file is referenced.
func (f FileRef) IsZero() bool {
	return f.Kind == FileKindNone || f.Location == ""
}

// IsCloud reports whether the file lives in the cloud object store.
func (f FileRef) IsCloud() bool {
	return f.Kind == FileKindCloud && f.Location != ""
}

// IsLegacy reports whether the file lives on local disk.
func (f FileRef) IsLegacy() bool {
	return (f.Kind == FileKindLegacyRelative || f.Kind == FileKindLegacyAbsolute) && f.Location != ""
}

// WithMetadata returns a copy carrying the original file name, mime type and size.
func (f FileRef) WithMetadata(name, mimeType string, size int64) FileRef {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		f.Name = trimmed
	}
	if trimmed := strings.TrimSpace(mimeType); trimmed != "" {
		f.MimeType = trimmed
	}
	if size > 0 {
		f.Size = size
	}
	return f
}

// DownloadURL returns the cloud URL rewritten to force an attachment disposition.
func (f FileRef) DownloadURL() string {
	if !f.IsCloud() {
		return ""
	}
	if !strings.Contains(f.Location, cloudUploadSegment) || strings.Contains(f.Location, cloudUploadSegment+"fl_attachment") {
		return f.Location
	}
	return strings.Replace(f.Location, cloudUploadSegment, cloudUploadSegment+"fl_attachment/", 1)
}

// DisplayName returns the best available name for Content-Disposition headers.
func (f FileRef) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	if f.Location == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(f.Location, "\\", "/"))
}
