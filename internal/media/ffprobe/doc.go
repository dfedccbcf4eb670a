// Package ffprobe shells out to ffprobe and exposes the subset of its JSON
// output the publish pipeline needs: dimensions, duration, and size of the
// primary video stream.
package ffprobe
