package database

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrPathConflict is returned when an insert would duplicate the path of a
// non-trashed record.
var ErrPathConflict = errors.New("path already cataloged")

// ThumbnailStatus is the per-record thumbnail lifecycle state.
type ThumbnailStatus int

const (
	ThumbnailPending         ThumbnailStatus = 0
	ThumbnailPrioritized     ThumbnailStatus = 1
	ThumbnailGenerated       ThumbnailStatus = 2
	ThumbnailFailedPermanent ThumbnailStatus = 3
)

func (s ThumbnailStatus) String() string {
	switch s {
	case ThumbnailPending:
		return "pending"
	case ThumbnailPrioritized:
		return "prioritized"
	case ThumbnailGenerated:
		return "generated"
	case ThumbnailFailedPermanent:
		return "failed_permanent"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Priority scores. Lower is sooner.
const (
	PriorityDefault = 1000
	PriorityVisible = 10
	PriorityBackoff = 9999
	PriorityNever   = 2147483647
)

// MetadataSource records where a prompt or workflow came from.
type MetadataSource string

const (
	SourceNone     MetadataSource = "none"
	SourceEmbedded MetadataSource = "internal_embedded"
	SourceSidecar  MetadataSource = "external_sidecar"
	SourceError    MetadataSource = "error"
)

// MediaRecord is one cataloged file.
type MediaRecord struct {
	ID                int64   `json:"id"`
	PathCanon         string  `json:"path"`
	Filename          string  `json:"filename"`
	Subfolder         string  `json:"subfolder"`
	TopLevelSubfolder string  `json:"topLevelSubfolder"`
	Format            string  `json:"format"`
	SizeBytes         int64   `json:"size"`
	Mtime             float64 `json:"mtime"`
	IsDirectory       bool    `json:"isDirectory"`

	Width            *int           `json:"width,omitempty"`
	Height           *int           `json:"height,omitempty"`
	AspectRatioLabel string         `json:"aspectRatio,omitempty"`
	PromptText       string         `json:"prompt,omitempty"`
	PromptSource     MetadataSource `json:"promptSource"`
	WorkflowJSON     string         `json:"workflow,omitempty"`
	WorkflowSource   MetadataSource `json:"workflowSource"`
	HasEditFile      bool           `json:"hasEditFile"`
	Tags             []string       `json:"tags,omitempty"`

	ThumbnailStatus          ThumbnailStatus `json:"thumbnailStatus"`
	ThumbnailPriorityScore   int             `json:"thumbnailPriority"`
	ThumbnailLastGeneratedAt *float64        `json:"thumbnailLastGeneratedAt,omitempty"`
	ThumbHash                string          `json:"thumbHash"`

	IsTrashed         bool   `json:"isTrashed"`
	OriginalPathCanon string `json:"originalPath,omitempty"`

	DiscoveredAt float64 `json:"discoveredAt"`
	LastSyncedAt float64 `json:"lastSyncedAt"`
}

// BaselineEntry is the change-detection view of a non-trashed record.
type BaselineEntry struct {
	ID        int64
	Mtime     float64
	Size      int64
	ThumbHash string
}

// ThumbnailJob is the slice of a record the thumbnail routine needs.
type ThumbnailJob struct {
	ID              int64
	PathCanon       string
	Format          string
	Mtime           float64
	ThumbHash       string
	Status          ThumbnailStatus
	Score           int
	LastGeneratedAt *float64
	HasEditFile     bool
	IsTrashed       bool
}

// ThumbnailTransition describes a guarded thumbnail state change. From
// lists the statuses the row may currently be in; empty means any.
// ExpectMtime, when non-zero, additionally requires the row's mtime to be
// unchanged since the job was read.
type ThumbnailTransition struct {
	ID          int64
	To          ThumbnailStatus
	Score       int
	GeneratedAt float64
	ExpectMtime float64
	From        []ThumbnailStatus
}

// TransitionResult reports what a ThumbnailTransition found and did.
type TransitionResult struct {
	Applied  bool
	Previous ThumbnailStatus
	Trashed  bool
}

// FolderAggregate is the derived per-folder non-trashed media count.
type FolderAggregate struct {
	FolderPath string `json:"folder"`
	ImageCount int    `json:"count"`
}
