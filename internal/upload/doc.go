// Package upload sends finished video files to the publish server as
// multipart form posts and reports byte-level progress while the body
// streams. Progress callbacks are coalesced so slow consumers never see a
// firehose of per-chunk updates.
package upload
