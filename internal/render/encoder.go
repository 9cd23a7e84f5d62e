// Package render implements the scene renderer (component C4): the per-scene
// pipeline that turns one scene descriptor into a single reel-sized MP4.
package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bobarin/reelforge/internal/config"
	"github.com/bobarin/reelforge/internal/models"
)

// Encoder wraps the external ffmpeg/ffprobe binaries behind a narrow API surface
// (per the "encoder abstraction" design note): callers never touch filter-string
// construction directly, they compose one of the handful of operations below.
type Encoder struct {
	tempDir string
	preset  string
	bitrate string
	crf     int
	threads int
}

func NewEncoder(cfg *config.Config) *Encoder {
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		panic(fmt.Sprintf("render: failed to create temp dir: %v", err))
	}
	return &Encoder{
		tempDir: cfg.TempDir,
		preset:  cfg.FFmpegPreset,
		bitrate: cfg.FFmpegBitrate,
		crf:     cfg.FFmpegCRF,
		threads: cfg.FFmpegThreads,
	}
}

func (e *Encoder) TempFile(name string) string {
	return filepath.Join(e.tempDir, name)
}

func (e *Encoder) Cleanup(paths ...string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

func (e *Encoder) codecArgs() []string {
	args := []string{"-c:v", "libx264", "-preset", e.preset, "-crf", strconv.Itoa(e.crf), "-pix_fmt", "yuv420p"}
	if e.bitrate != "" {
		args = append(args, "-b:v", e.bitrate)
	}
	if e.threads > 0 {
		args = append(args, "-threads", strconv.Itoa(e.threads))
	}
	return args
}

func (e *Encoder) run(ctx context.Context, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// RenderImageClip renders a still image plus narration audio into a video using the
// given motion filter chain, optionally burning in ASS subtitles.
func (e *Encoder) RenderImageClip(ctx context.Context, imagePath, audioPath, outputPath, motionFilter, subtitlePath string, width, height, fps int) error {
	vf := motionFilter
	if subtitlePath != "" {
		vf += fmt.Sprintf(",ass='%s'", escapeFilterPath(subtitlePath))
	}

	args := append([]string{
		"-i", imagePath,
		"-i", audioPath,
		"-vf", vf,
	}, e.codecArgs()...)
	args = append(args, "-r", strconv.Itoa(fps), "-c:a", "aac", "-b:a", "192k", "-shortest", "-y", outputPath)

	return e.run(ctx, "ffmpeg", args)
}

// RenderVideoClip combines a fetched/generated video with narration audio, freezing
// the last frame (tpad) if the video runs shorter than the narration. sizeFilter is
// the step-3 video sizing chain (see videoFitFilter); an empty sizeFilter skips sizing.
func (e *Encoder) RenderVideoClip(ctx context.Context, videoPath, audioPath, outputPath, sizeFilter, subtitlePath string) error {
	filterExpr := "[0:v]"
	if sizeFilter != "" {
		filterExpr += sizeFilter + ","
	}
	filterExpr += "tpad=stop_mode=clone:stop_duration=60"
	if subtitlePath != "" {
		filterExpr += fmt.Sprintf(",ass='%s'", escapeFilterPath(subtitlePath))
	}
	filterExpr += "[v]"

	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-filter_complex", filterExpr,
		"-map", "[v]",
		"-map", "1:a",
	}
	args = append(args, e.codecArgs()...)
	args = append(args, "-c:a", "aac", "-b:a", "192k", "-shortest", "-y", outputPath)

	return e.run(ctx, "ffmpeg", args)
}

// LoopConcatVideo loops a source video n times by listing it n times in a concat
// demuxer file, used when narration outruns a fetched video clip's native length.
func (e *Encoder) LoopConcatVideo(ctx context.Context, videoPath, outputPath string, n int) error {
	listPath := e.TempFile(fmt.Sprintf("looplist_%s.txt", randomSuffix()))
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "file '%s'\n", videoPath)
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("render: failed to write loop list: %w", err)
	}
	defer os.Remove(listPath)

	return e.run(ctx, "ffmpeg", []string{"-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", "-y", outputPath})
}

// TrimVideo trims a video to an exact duration in seconds.
func (e *Encoder) TrimVideo(ctx context.Context, videoPath, outputPath string, durationSec float64) error {
	return e.run(ctx, "ffmpeg", []string{"-i", videoPath, "-t", fmt.Sprintf("%.3f", durationSec), "-c", "copy", "-y", outputPath})
}

// PadSilence appends silence to an audio track until it reaches targetSec.
func (e *Encoder) PadSilence(ctx context.Context, audioPath, outputPath string, targetSec float64) error {
	filter := fmt.Sprintf("apad=whole_dur=%.3f", targetSec)
	return e.run(ctx, "ffmpeg", []string{"-i", audioPath, "-af", filter, "-y", outputPath})
}

// Concatenate joins clips in order via the concat demuxer (stream copy, no re-encode).
func (e *Encoder) Concatenate(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("render: no clips to concatenate")
	}
	listPath := e.TempFile(fmt.Sprintf("concat_%s.txt", randomSuffix()))
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("render: failed to create concat list: %w", err)
	}
	for _, p := range clipPaths {
		fmt.Fprintf(f, "file '%s'\n", p)
	}
	f.Close()
	defer os.Remove(listPath)

	return e.run(ctx, "ffmpeg", []string{"-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", "-y", outputPath})
}

// MixBackgroundMusic overlays looping background music at low volume under the
// existing narration track. A no-op if musicPath is empty or missing.
func (e *Encoder) MixBackgroundMusic(ctx context.Context, videoPath, musicPath, outputPath string) error {
	if musicPath == "" {
		return nil
	}
	if _, err := os.Stat(musicPath); err != nil {
		return nil
	}

	filterComplex := "[0:a]volume=1.0[narration];[1:a]volume=0.12[music];[narration][music]amix=inputs=2:duration=first:dropout_transition=3[aout]"
	args := []string{
		"-i", videoPath,
		"-stream_loop", "-1",
		"-i", musicPath,
		"-filter_complex", filterComplex,
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-y", outputPath,
	}
	return e.run(ctx, "ffmpeg", args)
}

// CrossfadeConcat joins clips with an xfade/acrossfade chain: a fade-in on the
// first clip, a fade-out on the last, and a crossfade at each interior boundary,
// all expressed as the same xfade transition per the "fade" and "crossfade" types
// sharing one treatment (composer step in §4.6). transitionSec is clamped against
// each neighboring clip's own duration so the offset never goes negative.
func (e *Encoder) CrossfadeConcat(ctx context.Context, clipPaths []string, transitionSec float64, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("render: no clips to concatenate")
	}
	if len(clipPaths) == 1 {
		return e.Reencode(ctx, clipPaths[0], outputPath)
	}

	durations := make([]float64, len(clipPaths))
	for i, p := range clipPaths {
		d, err := e.Duration(ctx, p)
		if err != nil {
			return fmt.Errorf("render: probing clip %d duration: %w", i, err)
		}
		durations[i] = d
	}

	args := make([]string, 0, len(clipPaths)*2)
	for _, p := range clipPaths {
		args = append(args, "-i", p)
	}

	firstFade := minF(transitionSec, durations[0]*0.5)
	filters := []string{fmt.Sprintf("[0:v]fade=t=in:st=0:d=%.3f[vin]", firstFade)}
	vLabel, aLabel := "vin", "0:a"
	cumDur := durations[0]
	for i := 1; i < len(clipPaths); i++ {
		d := transitionSec
		if d > durations[i-1] {
			d = durations[i-1] * 0.5
		}
		if d > durations[i] {
			d = durations[i] * 0.5
		}
		if d <= 0 {
			d = 0.1
		}
		offset := cumDur - d
		if offset < 0 {
			offset = 0
		}
		vOut, aOut := fmt.Sprintf("v%d", i), fmt.Sprintf("a%d", i)
		filters = append(filters, fmt.Sprintf("[%s][%d:v]xfade=transition=fade:duration=%.3f:offset=%.3f[%s]", vLabel, i, d, offset, vOut))
		filters = append(filters, fmt.Sprintf("[%s][%d:a]acrossfade=d=%.3f[%s]", aLabel, i, d, aOut))
		vLabel, aLabel = vOut, aOut
		cumDur = cumDur + durations[i] - d
	}
	lastFade := minF(transitionSec, durations[len(durations)-1]*0.5)
	filters = append(filters, fmt.Sprintf("[%s]fade=t=out:st=%.3f:d=%.3f[vout]", vLabel, maxF(cumDur-lastFade, 0), lastFade))
	vLabel = "vout"

	args = append(args, "-filter_complex", strings.Join(filters, ";"), "-map", "["+vLabel+"]", "-map", "["+aLabel+"]")
	args = append(args, e.codecArgs()...)
	args = append(args, "-c:a", "aac", "-b:a", "192k", "-y", outputPath)
	return e.run(ctx, "ffmpeg", args)
}

// GenerateBlackClip writes a silent black clip of the given duration and reel
// geometry, used to pad an under-length composed video up to the minimum bound.
func (e *Encoder) GenerateBlackClip(ctx context.Context, outputPath string, durationSec float64, width, height, fps int) error {
	args := []string{
		"-f", "lavfi", "-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%d", width, height, fps),
		"-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-t", fmt.Sprintf("%.3f", durationSec),
	}
	args = append(args, e.codecArgs()...)
	args = append(args, "-c:a", "aac", "-shortest", "-y", outputPath)
	return e.run(ctx, "ffmpeg", args)
}

// Duration returns a media file's duration in seconds via ffprobe.
func (e *Encoder) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("render: ffprobe failed: %w", err)
	}
	var sec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &sec); err != nil {
		return 0, fmt.Errorf("render: failed to parse duration: %w", err)
	}
	return sec, nil
}

// Dimensions returns a video file's frame width and height via ffprobe.
func (e *Encoder) Dimensions(ctx context.Context, path string) (width, height int, err error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error", "-select_streams", "v:0", "-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0", path)
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("render: ffprobe failed: %w", err)
	}
	parts := strings.SplitN(strings.TrimSpace(string(out)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("render: failed to parse dimensions from ffprobe output %q", out)
	}
	if width, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("render: failed to parse width: %w", err)
	}
	if height, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("render: failed to parse height: %w", err)
	}
	return width, height, nil
}

// burnASS re-encodes videoPath with an ASS subtitle track burned in.
func (e *Encoder) burnASS(ctx context.Context, videoPath, assPath, outputPath string) error {
	vf := fmt.Sprintf("ass='%s'", escapeFilterPath(assPath))
	args := append([]string{"-i", videoPath, "-vf", vf}, e.codecArgs()...)
	args = append(args, "-c:a", "copy", "-y", outputPath)
	return e.run(ctx, "ffmpeg", args)
}

// overlayText burns a fixed text caption at a corner/center position, clamped
// within the frame with padding (§4.4 step 7).
func (e *Encoder) overlayText(ctx context.Context, videoPath string, overlay models.TextOverlay, outputPath string) error {
	x, y := positionExpr(overlay.Position, overlay.PaddingPx)
	escaped := strings.ReplaceAll(overlay.Content, "'", "\\'")
	escaped = strings.ReplaceAll(escaped, ":", "\\:")

	font := ""
	if overlay.Font != nil && *overlay.Font != "" {
		font = fmt.Sprintf(":fontfile='%s'", escapeFilterPath(*overlay.Font))
	}

	vf := fmt.Sprintf(
		"drawtext=text='%s'%s:fontsize=%d:fontcolor=%s@%.2f:bordercolor=%s:borderw=%d:x=%s:y=%s",
		escaped, font, overlay.FontSize, overlay.Color, clamp01(overlay.Opacity), overlay.StrokeColor, overlay.StrokeWidth, x, y,
	)

	args := append([]string{"-i", videoPath, "-vf", vf}, e.codecArgs()...)
	args = append(args, "-c:a", "copy", "-y", outputPath)
	return e.run(ctx, "ffmpeg", args)
}

// OverlayLogo composites a (resized, opacity-adjusted) logo image over the clip
// at a position enum with the configured margin (§4.4 step 8).
func (e *Encoder) OverlayLogo(ctx context.Context, videoPath, logoPath string, logo models.LogoConfig, outputPath string, reelW, reelH int) error {
	sizePx := reelW / 5
	if reelH < reelW {
		sizePx = reelH / 5
	}
	if logo.SizePx != nil && *logo.SizePx > 0 {
		sizePx = *logo.SizePx
	}

	x, y := positionExpr(logo.Position, logo.MarginPx)

	filterComplex := fmt.Sprintf(
		"[1:v]scale=%d:-1,format=rgba,colorchannelmixer=aa=%.2f[logo];[0:v][logo]overlay=%s:%s",
		sizePx, clamp01(logo.Opacity), x, y,
	)

	args := []string{"-i", videoPath, "-i", logoPath, "-filter_complex", filterComplex}
	args = append(args, e.codecArgs()...)
	args = append(args, "-c:a", "copy", "-y", outputPath)
	return e.run(ctx, "ffmpeg", args)
}

// Reencode performs the final H.264 pass for a scene's output file (step 9).
func (e *Encoder) Reencode(ctx context.Context, inputPath, outputPath string) error {
	args := append([]string{"-i", inputPath}, e.codecArgs()...)
	args = append(args, "-c:a", "aac", "-b:a", "192k", "-y", outputPath)
	return e.run(ctx, "ffmpeg", args)
}

// generateSilence writes a silent AAC track of the given duration, used to pad
// image scenes that carry no narration.
func (e *Encoder) generateSilence(ctx context.Context, outputPath string, durationSec float64) error {
	args := []string{
		"-f", "lavfi", "-i", "anullsrc=channel_layout=mono:sample_rate=44100",
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-c:a", "aac", "-y", outputPath,
	}
	return e.run(ctx, "ffmpeg", args)
}

func positionExpr(pos models.Position, margin int) (string, string) {
	switch pos {
	case models.PositionTopLeft:
		return fmt.Sprintf("%d", margin), fmt.Sprintf("%d", margin)
	case models.PositionTopRight:
		return fmt.Sprintf("main_w-overlay_w-%d", margin), fmt.Sprintf("%d", margin)
	case models.PositionBottomLeft:
		return fmt.Sprintf("%d", margin), fmt.Sprintf("main_h-overlay_h-%d", margin)
	case models.PositionBottomRight:
		return fmt.Sprintf("main_w-overlay_w-%d", margin), fmt.Sprintf("main_h-overlay_h-%d", margin)
	default:
		return "(main_w-overlay_w)/2", "(main_h-overlay_h)/2"
	}
}

func clamp01(v float64) float64 {
	if v <= 0 {
		return 1.0
	}
	if v > 1 {
		return 1.0
	}
	return v
}

func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}
