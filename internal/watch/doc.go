// Package watch monitors a drop folder for new videos. A video accompanied
// by a <name>.recipe.toml sidecar is enqueued for publishing once both files
// have settled, so half-copied files are never picked up.
package watch
