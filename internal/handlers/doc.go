// Package handlers is the JSON/HTTP layer over the catalog services.
//
// Routes are registered on a gorilla/mux router by [Handlers.RegisterRoutes]:
//
//	GET  /healthz, /readyz          liveness and readiness probes
//	GET  /api/health, /api/version  detailed status and build info
//	GET  /api/stats                 cached record and thumbnail counts
//	POST /api/sync                  run a synchronization pass (409 if one is running)
//	GET  /api/files/{path}          catalog record for a live file
//	GET  /api/folders               live media count per folder
//	GET  /api/thumbnail/{path}      JPEG thumbnail, ?force=1 to regenerate
//	GET  /api/thumbnails/status     live record count per thumbnail status
//	POST /api/thumbnails/visible    raise thumbnail priority for {"paths": [...]}
//	POST /api/thumbnails/clean      reconcile the thumbnail cache
//	POST /api/trash                 trash {"paths": [...]}
//	POST /api/trash/restore         restore {"paths": [...]}
//	POST /api/trash/empty           empty the trash
//	POST /api/delete                permanently delete {"paths": [...]}
//
// Errors are returned as {"error": "..."}. Batch endpoints always answer 200
// with one result per requested path.
package handlers
