package recipes

import (
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Ingredient is one line of the ingredient list. Amount and Unit default to
// "1" and "x" because the entry form collects free text rather than measured
// quantities.
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

// Step is a single ordered instruction.
type Step struct {
	Order       int    `json:"order"`
	Instruction string `json:"instruction"`
}

// Draft is the recipe metadata submitted alongside the hosted video.
type Draft struct {
	Title       string       `json:"title"`
	VideoURL    string       `json:"video_url"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []Step       `json:"steps"`
	Tags        []string     `json:"tags"`
	Tips        *string      `json:"tips"`
}

var titleCaser = cases.Title(language.English)

// ParseIngredients splits newline-separated ingredient text. Blank lines are
// dropped and each surviving line becomes one ingredient.
func ParseIngredients(text string) []Ingredient {
	var ingredients []Ingredient
	for _, line := range strings.Split(text, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		ingredients = append(ingredients, Ingredient{Name: name, Amount: "1", Unit: "x"})
	}
	return ingredients
}

// ParseSteps splits newline-separated instructions into ordered steps,
// numbering from 1.
func ParseSteps(text string) []Step {
	var steps []Step
	for _, line := range strings.Split(text, "\n") {
		instruction := strings.TrimSpace(line)
		if instruction == "" {
			continue
		}
		steps = append(steps, Step{Order: len(steps) + 1, Instruction: instruction})
	}
	return steps
}

// ParseTags splits comma-separated tags, trimming whitespace and dropping
// empties.
func ParseTags(text string) []string {
	var tags []string
	for _, raw := range strings.Split(text, ",") {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// NewDraft assembles a draft from raw form text. Tips become null when blank.
func NewDraft(title, ingredientText, stepText, tagText, tips string) Draft {
	draft := Draft{
		Title:       titleCaser.String(strings.TrimSpace(title)),
		Ingredients: ParseIngredients(ingredientText),
		Steps:       ParseSteps(stepText),
		Tags:        ParseTags(tagText),
	}
	if trimmed := strings.TrimSpace(tips); trimmed != "" {
		draft.Tips = &trimmed
	}
	return draft
}

// Validate checks the draft is complete enough to submit.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.New("recipe title is required")
	}
	if len(d.Ingredients) == 0 {
		return errors.New("at least one ingredient is required")
	}
	if len(d.Steps) == 0 {
		return errors.New("at least one step is required")
	}
	return nil
}

// Marshal serializes the draft for queue persistence.
func (d Draft) Marshal() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// UnmarshalDraft restores a draft persisted in the queue.
func UnmarshalDraft(raw string) (Draft, error) {
	var draft Draft
	if strings.TrimSpace(raw) == "" {
		return draft, errors.New("empty draft")
	}
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return Draft{}, err
	}
	return draft, nil
}
