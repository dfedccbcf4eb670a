package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"recipecast/internal/recipes"
	"recipecast/internal/services"
)

// SidecarSuffix names the recipe file that must accompany a dropped video.
const SidecarSuffix = ".recipe.toml"

// Sidecar is the on-disk recipe description dropped next to a video.
// Ingredients and steps are newline separated, tags comma separated.
type Sidecar struct {
	Title       string `toml:"title"`
	Ingredients string `toml:"ingredients"`
	Steps       string `toml:"steps"`
	Tags        string `toml:"tags"`
	Tips        string `toml:"tips"`
}

// SidecarPath returns the sidecar path expected for a video file.
func SidecarPath(videoPath string) string {
	base := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	return base + SidecarSuffix
}

// VideoPathFor maps a sidecar path back to the video basename it describes.
// The extension is unknown, so only the prefix is returned.
func VideoPathFor(sidecarPath string) string {
	return strings.TrimSuffix(sidecarPath, SidecarSuffix)
}

// IsSidecar reports whether a path names a recipe sidecar.
func IsSidecar(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), SidecarSuffix)
}

// LoadSidecar parses a recipe sidecar and validates the resulting draft.
func LoadSidecar(path string) (recipes.Draft, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return recipes.Draft{}, services.Wrap(services.ErrNotFound, "watch", "read_sidecar", fmt.Sprintf("read %s", path), err)
	}
	var sc Sidecar
	if err := toml.Unmarshal(raw, &sc); err != nil {
		return recipes.Draft{}, services.Wrap(services.ErrValidation, "watch", "parse_sidecar", fmt.Sprintf("parse %s", path), err)
	}
	draft := recipes.NewDraft(sc.Title, sc.Ingredients, sc.Steps, sc.Tags, sc.Tips)
	if err := draft.Validate(); err != nil {
		return recipes.Draft{}, services.Wrap(services.ErrValidation, "watch", "validate_sidecar", fmt.Sprintf("incomplete recipe in %s", path), err)
	}
	return draft, nil
}
