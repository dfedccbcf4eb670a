// Package services provides shared error classification and context helpers
// used by the publish pipeline stages.
package services
