package handlers

import (
	"media-catalog/internal/database"
	"media-catalog/internal/indexer"
	"media-catalog/internal/stats"
	"media-catalog/internal/thumbnails"
	"media-catalog/internal/trash"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Handlers is the HTTP surface over the catalog services.
type Handlers struct {
	db         *database.Database
	indexer    *indexer.Indexer
	thumbnails *thumbnails.Service
	trash      *trash.Manager
	stats      *stats.Cache
}

// New creates Handlers.
func New(db *database.Database, idx *indexer.Indexer, thumbs *thumbnails.Service, tm *trash.Manager, cache *stats.Cache) *Handlers {
	return &Handlers{
		db:         db,
		indexer:    idx,
		thumbnails: thumbs,
		trash:      tm,
		stats:      cache,
	}
}
