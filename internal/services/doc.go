// Package services holds the small shared layer between the orchestrator
// and the external tool clients.
//
// It contributes two things: context helpers that stamp task IDs and stage
// names onto log records, and the structured error markers (with Wrap) that
// collapse failures into the coarse kinds recorded on task results. New
// execution code should lean on both so observability and error handling
// look the same everywhere.
package services
