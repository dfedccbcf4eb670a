// Package media describes source video files handed to the publish pipeline.
// An Asset carries the byte size measured from disk plus the stream metadata
// ffprobe reports for the file.
package media
