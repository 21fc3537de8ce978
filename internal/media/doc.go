// Package media defines the shared request, metadata, result and progress
// types used across extraction, download and orchestration.
package media
