package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"recipecast/internal/media/ffprobe"
	"recipecast/internal/services"
)

// Asset is a local video file the pipeline operates on. SizeBytes always
// reflects a fresh stat of the file at the time the Asset was built, never a
// cached value from an earlier stage.
type Asset struct {
	Path            string
	SizeBytes       int64
	Width           int
	Height          int
	DurationSeconds float64
	Container       string
	VideoCodec      string
}

// FromFile stats the file at path and fills in probe metadata via ffprobe.
// The returned Asset is the authoritative description of the file on disk.
func FromFile(ctx context.Context, ffprobeBinary string, path string) (Asset, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Asset{}, services.Wrap(services.ErrValidation, "media", "stat", "empty source path", nil)
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrValidation, "media", "stat", fmt.Sprintf("resolve %s", path), err)
	}

	info, err := os.Stat(absolute)
	if err != nil {
		if os.IsNotExist(err) {
			return Asset{}, services.Wrap(services.ErrNotFound, "media", "stat", fmt.Sprintf("source file %s", absolute), err)
		}
		return Asset{}, services.Wrap(services.ErrValidation, "media", "stat", fmt.Sprintf("stat %s", absolute), err)
	}
	if info.IsDir() {
		return Asset{}, services.Wrap(services.ErrValidation, "media", "stat", fmt.Sprintf("%s is a directory", absolute), nil)
	}

	asset := Asset{
		Path:      absolute,
		SizeBytes: info.Size(),
	}

	result, err := ffprobe.Inspect(ctx, ffprobeBinary, absolute)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrExternalTool, "media", "probe", fmt.Sprintf("inspect %s", absolute), err)
	}
	if result.VideoStreamCount() == 0 {
		return Asset{}, services.Wrap(services.ErrValidation, "media", "probe", fmt.Sprintf("%s contains no video stream", absolute), nil)
	}

	if stream, ok := result.VideoStream(); ok {
		asset.Width = stream.Width
		asset.Height = stream.Height
		asset.VideoCodec = stream.CodecName
	}
	asset.DurationSeconds = result.DurationSeconds()
	asset.Container = result.Format.FormatName
	return asset, nil
}

// Remeasure refreshes SizeBytes from disk without re-probing the streams.
// Stages that rewrite the file call this so downstream checks never trust a
// stale size.
func (a *Asset) Remeasure() error {
	info, err := os.Stat(a.Path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "media", "remeasure", fmt.Sprintf("stat %s", a.Path), err)
	}
	a.SizeBytes = info.Size()
	return nil
}

// MaxDimension returns the larger of the asset's width and height.
func (a Asset) MaxDimension() int {
	if a.Width > a.Height {
		return a.Width
	}
	return a.Height
}

// Basename returns the file name portion of the asset path.
func (a Asset) Basename() string {
	return filepath.Base(a.Path)
}
