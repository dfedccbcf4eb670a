// Package recipes turns operator-entered recipe text into the structured
// draft the publish server expects and submits the final metadata payload
// once the video is hosted.
package recipes
