// Package transcode shrinks source videos toward the upload ceiling by
// shelling out to ffmpeg. When no usable encoder binary is present the
// package degrades to a pass-through implementation that hands the original
// file downstream unchanged.
package transcode
