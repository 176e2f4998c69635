package gpu

import (
	"testing"

	"github.com/five82/transcode/internal/errors"
	"github.com/five82/transcode/internal/media"
)

func TestValidateTargetRejectsOdd(t *testing.T) {
	for _, d := range [][2]int{{321, 240}, {320, 241}, {0, 240}, {320, -2}} {
		if err := validateTarget(d[0], d[1]); err == nil {
			t.Errorf("validateTarget(%d, %d) = nil, want InvalidGeometry", d[0], d[1])
		} else if !errors.IsKind(err, errors.KindInvalidGeometry) {
			t.Errorf("validateTarget(%d, %d) kind = %v, want InvalidGeometry", d[0], d[1], err)
		}
	}
}

func TestValidateTargetAcceptsEven(t *testing.T) {
	for _, d := range [][2]int{{320, 240}, {2, 2}, {1920, 1080}} {
		if err := validateTarget(d[0], d[1]); err != nil {
			t.Errorf("validateTarget(%d, %d) = %v, want nil", d[0], d[1], err)
		}
	}
}

func TestReferenceYUVConstantColorWhite(t *testing.T) {
	y, u, v := ReferenceYUV(255, 255, 255)
	if y != 255 {
		t.Errorf("white Y = %d, want 255", y)
	}
	if u != 128 || v != 128 {
		t.Errorf("white (U,V) = (%d,%d), want (128,128)", u, v)
	}
}

func TestReferenceYUVConstantColorBlack(t *testing.T) {
	y, u, v := ReferenceYUV(0, 0, 0)
	if y != 0 {
		t.Errorf("black Y = %d, want 0", y)
	}
	if u != 128 || v != 128 {
		t.Errorf("black (U,V) = (%d,%d), want (128,128)", u, v)
	}
}

func TestReferenceYUVPureRed(t *testing.T) {
	// R=255, G=0, B=0: Y = 0.299*255 ~= 76, U = -0.169*255+128 ~= 85, V = 0.5*255+128 clamped to 255.
	y, u, v := ReferenceYUV(0, 0, 255)
	if y != 76 {
		t.Errorf("red Y = %d, want 76", y)
	}
	if u != 85 {
		t.Errorf("red U = %d, want 85", u)
	}
	if v != 255 {
		t.Errorf("red V = %d, want 255 (clamped)", v)
	}
}

func TestMediaSizeMatchesKernelBufferLayout(t *testing.T) {
	// Mirrors opencl_driver's ySize + 2*uvSize buffer layout.
	w, h := 320, 240
	ySize := w * h
	uvSize := (w / 2) * (h / 2)
	want := ySize + 2*uvSize

	if got := media.Size(w, h); got != want {
		t.Errorf("media.Size(%d, %d) = %d, want %d", w, h, got, want)
	}
}
