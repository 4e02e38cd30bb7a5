// Package main is catalogctl, the maintenance CLI for media-catalog.
//
// It reads the same environment (and .env file) as the server and operates
// directly on the catalog database, so it should not run while the server
// holds the same catalog busy with long operations. Every subcommand runs
// once and exits:
//
//	catalogctl sync                  run one synchronization pass
//	catalogctl stats                 record counts, thumbnail states, last runs
//	catalogctl check                 verify the database and directories
//	catalogctl vacuum                compact the database
//	catalogctl folders               live media count per folder
//	catalogctl clean-thumbnails      reconcile the thumbnail cache
//	catalogctl thumbnail PATH        generate one thumbnail (-o to save it)
//	catalogctl trash PATH...         move files to the trash
//	catalogctl restore PATH...       restore trashed files
//	catalogctl delete PATH...        permanently delete live files
//	catalogctl empty-trash --yes     permanently delete the trash
//
// --json switches every command to machine-readable output.
package main
