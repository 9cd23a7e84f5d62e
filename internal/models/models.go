package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus is the task lifecycle state. Terminal states are Finished and Failed.
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusFinished   TaskStatus = "finished"
	TaskStatusFailed     TaskStatus = "failed"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskStatusFinished || s == TaskStatusFailed
}

// SceneType distinguishes image-sourced scenes from video-sourced scenes.
type SceneType string

const (
	SceneTypeImage SceneType = "image"
	SceneTypeVideo SceneType = "video"
)

// ImageProvider enumerates the image-generation providers a scene may request.
type ImageProvider string

const (
	ImageProviderOpenAI  ImageProvider = "openai"
	ImageProviderFreepik ImageProvider = "freepik"
	ImageProviderGemini  ImageProvider = "gemini"
)

// VideoProvider enumerates the video-generation providers a scene may request.
type VideoProvider string

const (
	VideoProviderLumaAI  VideoProvider = "lumaai"
	VideoProviderKlingAI VideoProvider = "klingai"
)

// TransitionType enumerates the composer's transition vocabulary.
type TransitionType string

const (
	TransitionCrossfade TransitionType = "crossfade"
	TransitionFade      TransitionType = "fade"
	TransitionNone      TransitionType = "none"
)

// Position is the closed corner/center vocabulary shared by logo and text overlays.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionCenter      Position = "center"
)

// SubtitlePosition is the vertical band subtitles are anchored to.
type SubtitlePosition string

const (
	SubtitleTop    SubtitlePosition = "top"
	SubtitleMiddle SubtitlePosition = "middle"
	SubtitleBottom SubtitlePosition = "bottom"
)

// ZoomMode and MotionMode are the closed animation vocabularies for image scenes (spec §9).
type ZoomMode string

const (
	ZoomNone ZoomMode = "none"
	ZoomIn   ZoomMode = "zoom_in"
	ZoomOut  ZoomMode = "zoom_out"
	ZoomPulse ZoomMode = "pulse"
)

type MotionMode string

const (
	MotionNone      MotionMode = "none"
	MotionDriftUp   MotionMode = "drift_up"
	MotionDriftDown MotionMode = "drift_down"
	MotionOscillate MotionMode = "oscillate"
)

// JSONB is a free-form JSON column, following the teacher's driver.Valuer/sql.Scanner convention.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("JSONB.Scan: unsupported type %T", value)
	}
	return json.Unmarshal(b, j)
}

// LogoConfig is shared between the global video specification and per-scene overrides.
type LogoConfig struct {
	URL              string   `json:"url"`
	Position         Position `json:"position"`
	Opacity          float64  `json:"opacity"`
	SizePx           *int     `json:"size_px,omitempty"`
	MarginPx         int      `json:"margin_px"`
	ShowInAllScenes  bool     `json:"show_in_all_scenes"`
	CTAScreen        bool     `json:"cta_screen"`
}

// SubtitleConfig is shared between the global video specification and per-scene overrides.
type SubtitleConfig struct {
	FontName      *string           `json:"font_name,omitempty"`
	FontSize      *int              `json:"font_size,omitempty"`
	Color         *string           `json:"color,omitempty"`
	StrokeColor   *string           `json:"stroke_color,omitempty"`
	HighlightColor *string          `json:"highlight_color,omitempty"`
	Position      *SubtitlePosition `json:"position,omitempty"`
	LineCount     *int              `json:"line_count,omitempty"`
	Highlight     *bool             `json:"highlight,omitempty"`
}

// TransitionConfig is shared between the global video specification and per-scene overrides.
type TransitionConfig struct {
	Type            TransitionType `json:"type"`
	DurationSeconds float64        `json:"duration_seconds"`
}

// TextOverlay describes an on-screen caption distinct from spoken-word subtitles.
type TextOverlay struct {
	Content      string   `json:"content"`
	Position     Position `json:"position"`
	FontSize     int      `json:"font_size"`
	Color        string   `json:"color"`
	StrokeColor  string   `json:"stroke_color"`
	StrokeWidth  int      `json:"stroke_width"`
	Font         *string  `json:"font,omitempty"`
	PaddingPx    int      `json:"padding_px"`
	Opacity      float64  `json:"opacity"`
	Preset       *string  `json:"preset,omitempty"`
}

// AnimationConfig controls the Ken-Burns-style motion applied to image scenes.
type AnimationConfig struct {
	Mode         *ZoomMode   `json:"mode,omitempty"`
	MotionMode   *MotionMode `json:"motion_mode,omitempty"`
	Preset       *string     `json:"preset,omitempty"`
	DarkenFactor float64     `json:"darken_factor"`
	DriftPx      int         `json:"drift_px"`
	OscPx        int         `json:"osc_px"`
}

// Scene is one entry in a VideoSpecification's ordered scene list.
type Scene struct {
	SceneID string    `json:"scene_id,omitempty"`
	Index   int       `json:"-"` // position in the original payload; not serialized, so JSON decoding leaves it zero
	Type    SceneType `json:"type"`

	ImageURL        *string `json:"image_url,omitempty"`
	PromptImage     *string `json:"prompt_image,omitempty"`
	PromptEditImage *string `json:"prompt_edit_image,omitempty"`
	VideoURL        *string `json:"video_url,omitempty"`
	PromptVideo     *string `json:"prompt_video,omitempty"`

	ImageProvider ImageProvider `json:"image_provider,omitempty"`
	VideoProvider VideoProvider `json:"video_provider,omitempty"`

	Narration     *string `json:"narration,omitempty"`
	NarrationText *string `json:"narration_text,omitempty"`
	AudioPromptURL *string `json:"audio_prompt_url,omitempty"`

	DurationSeconds int `json:"duration"`

	Subtitle       bool            `json:"subtitle"`
	SubtitleConfig *SubtitleConfig `json:"subtitle_config,omitempty"`

	Logo *LogoConfig `json:"logo,omitempty"`

	Text *TextOverlay `json:"text,omitempty"`

	Animation *AnimationConfig `json:"animation,omitempty"`

	Transition *TransitionConfig `json:"transition,omitempty"`
}

// VideoSpecification is the full payload of a Task: ordered scenes plus global decorations.
type VideoSpecification struct {
	Scenes []Scene `json:"scenes"`

	NarrationText  *string `json:"narration_text,omitempty"`
	AudioPromptURL *string `json:"audio_prompt_url,omitempty"`

	Logo                   *LogoConfig       `json:"logo,omitempty"`
	GlobalSubtitleConfig   *SubtitleConfig   `json:"global_subtitle_config,omitempty"`
	GlobalTransitionConfig *TransitionConfig `json:"global_transition_config,omitempty"`

	OutputFilename string   `json:"output_filename"`
	ProductImages  []string `json:"product_images,omitempty"`
	PostDescription *string `json:"post_description,omitempty"`
}

// ECommerceMode reports whether product reference images force sequential scene processing.
func (v *VideoSpecification) ECommerceMode() bool {
	return len(v.ProductImages) > 0
}

// TaskResult is the outcome recorded on successful completion.
type TaskResult struct {
	OutputURL       string  `json:"output_url"`
	LocalPath       string  `json:"local_path,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	PostDescription *string `json:"post_description,omitempty"`
}

// Task is the unit of work the controller drives through its state machine.
type Task struct {
	ID       string     `json:"id"`
	Status   TaskStatus `json:"status"`
	OwnerKey string     `json:"owner_key"`

	Spec VideoSpecification `json:"spec"`

	Result *TaskResult `json:"result,omitempty"`
	Error  *string     `json:"error,omitempty"`
	LogURI *string     `json:"log_uri,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CreditLedgerRow is an immutable append-only accounting entry.
type CreditLedgerRow struct {
	ID        int64     `json:"id"`
	OwnerKey  string    `json:"owner_key"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SceneCost returns the credit cost of rendering this scene per spec §4.7.
func SceneCost(s Scene) int {
	if s.Type == SceneTypeVideo && s.PromptVideo != nil && *s.PromptVideo != "" {
		return 5
	}
	return 1
}

// TotalCost sums SceneCost across every scene in the specification.
func (v *VideoSpecification) TotalCost() int {
	total := 0
	for _, s := range v.Scenes {
		total += SceneCost(s)
	}
	return total
}
