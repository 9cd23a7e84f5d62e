package render

import (
	"strings"
	"testing"
)

func TestVideoFitFilterFillWhenScaleWithinBudget(t *testing.T) {
	f, err := videoFitFilter(1920, 1080, 1080, 1920)
	if err != nil {
		t.Fatalf("videoFitFilter: %v", err)
	}
	if !strings.Contains(f, "crop=1080:1920") {
		t.Errorf("expected a fill-and-crop filter, got %q", f)
	}
	if strings.Contains(f, "split=2") {
		t.Errorf("did not expect a blurred-background branch for a modest scale, got %q", f)
	}
}

func TestVideoFitFilterBlurBackgroundWhenScaleExceedsBudget(t *testing.T) {
	// an extremely small source against a large target forces fill scale past 2.5.
	f, err := videoFitFilter(10, 10, 1080, 1920)
	if err != nil {
		t.Fatalf("videoFitFilter: %v", err)
	}
	if !strings.Contains(f, "split=2") || !strings.Contains(f, "gblur") {
		t.Errorf("expected a blurred-background compositing filter, got %q", f)
	}
}

func TestVideoFitFilterRejectsInvalidDimensions(t *testing.T) {
	if _, err := videoFitFilter(0, 1080, 1080, 1920); err == nil {
		t.Error("expected an error for a zero source dimension")
	}
}

func TestImageFitFilterPadsToTargetSize(t *testing.T) {
	f := imageFitFilter(1080, 1920)
	if !strings.Contains(f, "pad=1080:1920") {
		t.Errorf("expected pad to target size, got %q", f)
	}
}

func TestPlainResizeFilterCropsToTargetSize(t *testing.T) {
	f := plainResizeFilter(1080, 1920)
	if !strings.Contains(f, "crop=1080:1920") {
		t.Errorf("expected crop to target size, got %q", f)
	}
	if strings.Contains(f, "split=2") {
		t.Errorf("expected no background compositing in the fallback filter, got %q", f)
	}
}
