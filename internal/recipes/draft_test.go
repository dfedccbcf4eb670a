package recipes

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseIngredients(t *testing.T) {
	ingredients := ParseIngredients("2 eggs\n\n  100g flour  \n")
	if len(ingredients) != 2 {
		t.Fatalf("expected 2 ingredients, got %d", len(ingredients))
	}
	if ingredients[0].Name != "2 eggs" || ingredients[0].Amount != "1" || ingredients[0].Unit != "x" {
		t.Fatalf("unexpected ingredient %+v", ingredients[0])
	}
	if ingredients[1].Name != "100g flour" {
		t.Fatalf("unexpected ingredient %+v", ingredients[1])
	}
}

func TestParseStepsNumbersFromOne(t *testing.T) {
	steps := ParseSteps("\nwhisk eggs\n\nfold in flour\nbake\n")
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	for i, step := range steps {
		if step.Order != i+1 {
			t.Fatalf("step %d has order %d", i, step.Order)
		}
	}
	if steps[2].Instruction != "bake" {
		t.Fatalf("unexpected step %+v", steps[2])
	}
}

func TestParseTags(t *testing.T) {
	tags := ParseTags(" dessert, quick ,, baking ")
	want := []string{"dessert", "quick", "baking"}
	if len(tags) != len(want) {
		t.Fatalf("expected %v, got %v", want, tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, tags)
		}
	}
}

func TestNewDraftTitleCasesAndNullsTips(t *testing.T) {
	draft := NewDraft("pasta carbonara", "eggs", "cook", "italian", "  ")
	if draft.Title != "Pasta Carbonara" {
		t.Fatalf("unexpected title %q", draft.Title)
	}
	if draft.Tips != nil {
		t.Fatalf("blank tips should be nil, got %v", *draft.Tips)
	}

	withTips := NewDraft("pasta", "eggs", "cook", "", "serve hot")
	if withTips.Tips == nil || *withTips.Tips != "serve hot" {
		t.Fatalf("unexpected tips %v", withTips.Tips)
	}
}

func TestDraftJSONShape(t *testing.T) {
	draft := NewDraft("Cake", "flour", "bake", "dessert", "")
	draft.VideoURL = "https://cdn.example.com/v/1"
	raw, err := draft.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(raw, `"tips":null`) {
		t.Fatalf("tips must serialize as null: %s", raw)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"title", "video_url", "ingredients", "steps", "tags", "tips"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %q in %s", key, raw)
		}
	}

	restored, err := UnmarshalDraft(raw)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Title != "Cake" || restored.VideoURL != draft.VideoURL {
		t.Fatalf("round trip mismatch %+v", restored)
	}
}

func TestDraftValidate(t *testing.T) {
	valid := NewDraft("Cake", "flour", "bake", "", "")
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid draft rejected: %v", err)
	}

	cases := []struct {
		name  string
		draft Draft
	}{
		{"missing title", NewDraft("", "flour", "bake", "", "")},
		{"missing ingredients", NewDraft("Cake", "", "bake", "", "")},
		{"missing steps", NewDraft("Cake", "flour", "", "", "")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.draft.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
