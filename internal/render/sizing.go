package render

import "fmt"

const maxZoomFactor = 2.5

// sceneEncodeFPS is the fixed frame rate for image-scene animation and encoding
// (steps 4-5); independent of the final output's configurable frame rate. The
// step-9 re-encode sets no frame rate, so video scenes keep their source rate.
const sceneEncodeFPS = 24

// imageFitFilter fits a still image within the reel frame by height, clamps the
// width, and pads the remainder with the reel background color (§4.4 step 3).
func imageFitFilter(width, height int) string {
	return fmt.Sprintf(
		"scale=-2:%d:force_original_aspect_ratio=decrease,scale='min(iw,%d)':-2,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black",
		height, width, width, height,
	)
}

// videoFitFilter computes the step-3 video sizing branch. Given the source
// dimensions, it returns the ffmpeg filter chain: a plain fill-and-crop when the
// fill scale required is within maxZoomFactor, otherwise a scaled-down foreground
// composited over a blurred, darkened background derived from the source itself.
func videoFitFilter(srcW, srcH, targetW, targetH int) (string, error) {
	if srcW <= 0 || srcH <= 0 || targetW <= 0 || targetH <= 0 {
		return "", fmt.Errorf("render: invalid dimensions for video sizing (src %dx%d, target %dx%d)", srcW, srcH, targetW, targetH)
	}

	fillScale := maxF(float64(targetW)/float64(srcW), float64(targetH)/float64(srcH))

	if fillScale <= maxZoomFactor {
		return fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
			targetW, targetH, targetW, targetH,
		), nil
	}

	fgScale := minF(float64(targetW)/float64(srcW), float64(targetH)/float64(srcH)) * 0.7
	fgW := int(float64(srcW) * fgScale)
	fgH := int(float64(srcH) * fgScale)
	if fgW < 200 {
		fgW = 200
	}
	if fgH < 200 {
		fgH = 200
	}

	return fmt.Sprintf(
		"split=2[bg][fg];"+
			"[bg]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,gblur=sigma=20,colorlevels=romax=0.3:gomax=0.3:bomax=0.3[bgblur];"+
			"[fg]scale=%d:%d[fgscaled];"+
			"[bgblur][fgscaled]overlay=(W-w)/2:(H-h)/2",
		targetW, targetH, targetW, targetH, fgW, fgH,
	), nil
}

// plainResizeFilter scales to fill and center-crops to the exact target size,
// with no background compositing. Used as the step-3 video sizing fallback
// when the blurred-background composite fails.
func plainResizeFilter(targetW, targetH int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		targetW, targetH, targetW, targetH,
	)
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
