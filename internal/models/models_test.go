package models

import (
	"encoding/json"
	"testing"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"color_palette": []string{"red", "blue"},
		"mood":          "dramatic",
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["mood"] != "dramatic" {
		t.Errorf("expected mood=dramatic, got %v", result["mood"])
	}
}

func TestJSONBScan(t *testing.T) {
	jsonData := []byte(`{"color": "blue", "size": 10}`)

	var j JSONB
	if err := j.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if j["color"] != "blue" {
		t.Errorf("expected color=blue, got %v", j["color"])
	}

	if j["size"].(float64) != 10 {
		t.Errorf("expected size=10, got %v", j["size"])
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	cases := map[TaskStatus]bool{
		TaskStatusQueued:     false,
		TaskStatusInProgress: false,
		TaskStatusFinished:   true,
		TaskStatusFailed:     true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestSceneCost(t *testing.T) {
	videoPrompt := "a cat walking"

	cases := []struct {
		name  string
		scene Scene
		want  int
	}{
		{"image scene", Scene{Type: SceneTypeImage}, 1},
		{"video scene without prompt_video", Scene{Type: SceneTypeVideo}, 1},
		{"video scene with prompt_video", Scene{Type: SceneTypeVideo, PromptVideo: &videoPrompt}, 5},
	}

	for _, c := range cases {
		if got := SceneCost(c.scene); got != c.want {
			t.Errorf("%s: SceneCost() = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestVideoSpecificationTotalCost(t *testing.T) {
	videoPrompt := "a dog running"
	spec := VideoSpecification{
		Scenes: []Scene{
			{Type: SceneTypeImage},
			{Type: SceneTypeVideo, PromptVideo: &videoPrompt},
			{Type: SceneTypeImage},
		},
	}

	if got, want := spec.TotalCost(), 7; got != want {
		t.Errorf("TotalCost() = %d, want %d", got, want)
	}
}

func TestECommerceMode(t *testing.T) {
	spec := VideoSpecification{}
	if spec.ECommerceMode() {
		t.Error("expected ECommerceMode() false with no product images")
	}

	spec.ProductImages = []string{"https://example.com/p1.png"}
	if !spec.ECommerceMode() {
		t.Error("expected ECommerceMode() true with product images present")
	}
}
