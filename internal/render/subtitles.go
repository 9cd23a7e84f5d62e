package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/bobarin/reelforge/internal/models"
)

const defaultWordsPerChunk = 4

// effectiveSubtitleConfig is the fully-resolved, non-pointer subtitle configuration
// used to render one scene's subtitles, after the scene → global → default cascade.
type effectiveSubtitleConfig struct {
	fontName       string
	fontSize       int
	color          string
	strokeColor    string
	highlightColor string
	position       models.SubtitlePosition
	lineCount      int
	highlight      bool
}

// resolveSubtitleConfig cascades scene-level overrides over the global config over
// built-in defaults (§4.4 step 6: "resolves per-scene → global → defaults").
func resolveSubtitleConfig(scene, global *models.SubtitleConfig) effectiveSubtitleConfig {
	cfg := effectiveSubtitleConfig{
		fontName:       "Noto Sans",
		fontSize:       124,
		color:          "&H00FFFFFF",
		strokeColor:    "&H00000000",
		highlightColor: "&H00CC3299",
		position:       models.SubtitleBottom,
		lineCount:      1,
		highlight:      true,
	}

	apply := func(c *models.SubtitleConfig) {
		if c == nil {
			return
		}
		if c.FontName != nil {
			cfg.fontName = *c.FontName
		}
		if c.FontSize != nil {
			cfg.fontSize = *c.FontSize
		}
		if c.Color != nil {
			cfg.color = *c.Color
		}
		if c.StrokeColor != nil {
			cfg.strokeColor = *c.StrokeColor
		}
		if c.HighlightColor != nil {
			cfg.highlightColor = *c.HighlightColor
		}
		if c.Position != nil {
			cfg.position = *c.Position
		}
		if c.LineCount != nil {
			cfg.lineCount = *c.LineCount
		}
		if c.Highlight != nil {
			cfg.highlight = *c.Highlight
		}
	}

	apply(global)
	apply(scene)
	return cfg
}

func (c effectiveSubtitleConfig) alignment() int {
	switch c.position {
	case models.SubtitleTop:
		return 8
	case models.SubtitleMiddle:
		return 5
	default:
		return 2
	}
}

func (c effectiveSubtitleConfig) marginV() int {
	switch c.position {
	case models.SubtitleTop:
		return 200
	case models.SubtitleMiddle:
		return 0
	default:
		return 440
	}
}

// generateASSSubtitles writes an Advanced SubStation Alpha subtitle file from
// word-level timestamps, chunked into short on-screen lines with an optional
// per-word highlight, per the resolved subtitle configuration.
func generateASSSubtitles(words []WordTimestamp, cfg effectiveSubtitleConfig, outputPath string, silenceOffsetSec float64, playResX, playResY int) error {
	if len(words) == 0 {
		return fmt.Errorf("render: no words to subtitle")
	}

	wordsPerChunk := cfg.lineCount * defaultWordsPerChunk
	if wordsPerChunk <= 0 {
		wordsPerChunk = defaultWordsPerChunk
	}
	chunks := chunkWords(words, wordsPerChunk)

	outlineNormal := 6
	outlineHighlight := 16

	var sb strings.Builder
	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", playResX)
	fmt.Fprintf(&sb, "PlayResY: %d\n", playResY)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb, "Style: Default,%s,%d,%s,%s,%s,&H80000000,-1,0,0,0,100,100,0,0,1,%d,0,%d,40,40,%d,1\n\n",
		cfg.fontName, cfg.fontSize, cfg.color, cfg.color, cfg.strokeColor, outlineNormal, cfg.alignment(), cfg.marginV())

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, chunk := range chunks {
		for i, w := range chunk {
			start := w.Start + silenceOffsetSec
			var end float64
			if i+1 < len(chunk) {
				end = chunk[i+1].Start + silenceOffsetSec
			} else {
				end = w.End + silenceOffsetSec
			}
			text := buildHighlightedChunkText(chunk, i, cfg, outlineHighlight)
			fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", formatASSTime(start), formatASSTime(end), text)
		}
	}

	return os.WriteFile(outputPath, []byte(sb.String()), 0o644)
}

// chunkWords groups words into on-screen lines of size n, breaking early once a
// chunk has accumulated at least two words and the most recent word ends a sentence.
func chunkWords(words []WordTimestamp, n int) [][]WordTimestamp {
	var chunks [][]WordTimestamp
	var current []WordTimestamp

	for _, w := range words {
		current = append(current, w)
		endsSentence := strings.HasSuffix(w.Word, ".") || strings.HasSuffix(w.Word, "!") || strings.HasSuffix(w.Word, "?")
		if len(current) >= n || (endsSentence && len(current) >= 2) {
			chunks = append(chunks, current)
			current = nil
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// buildHighlightedChunkText renders one chunk's line, optionally wrapping the
// currently-active word in an override tag that swaps its outline color and width.
func buildHighlightedChunkText(chunk []WordTimestamp, activeIdx int, cfg effectiveSubtitleConfig, outlineHighlight int) string {
	parts := make([]string, 0, len(chunk))
	for i, w := range chunk {
		word := strings.ToUpper(strings.TrimSpace(w.Word))
		if cfg.highlight && i == activeIdx {
			word = fmt.Sprintf("{\\3c%s\\bord%d}%s{\\r}", cfg.highlightColor, outlineHighlight, word)
		}
		parts = append(parts, word)
	}
	return strings.Join(parts, " ")
}

// formatASSTime renders seconds as ASS's H:MM:SS.CC (centisecond) timestamp format.
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := int(seconds) % 60
	cs := int((seconds - float64(int(seconds))) * 100)
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}
