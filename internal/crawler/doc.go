// Package crawler defines the record types, collaborator interfaces, typed
// errors and pure normalization helpers shared by the harvesting pipeline.
package crawler
