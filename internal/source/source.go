// Package source decodes an input media file into packed 8-bit BGR frames
// via CGO bindings to FFMS2.
package source

/*
#cgo pkg-config: ffms2
#include <ffms.h>
#include <stdlib.h>
#include <string.h>

#define ERR_BUF_SIZE 1024

static FFMS_ErrorInfo* create_error_info() {
	FFMS_ErrorInfo* err = (FFMS_ErrorInfo*)malloc(sizeof(FFMS_ErrorInfo));
	err->Buffer = (char*)malloc(ERR_BUF_SIZE);
	err->BufferSize = ERR_BUF_SIZE;
	err->Buffer[0] = '\0';
	return err;
}

static void free_error_info(FFMS_ErrorInfo* err) {
	if (err) {
		free(err->Buffer);
		free(err);
	}
}

static const char* get_error_message(FFMS_ErrorInfo* err) {
	return err->Buffer;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/five82/transcode/internal/errors"
	"github.com/five82/transcode/internal/media"
)

var initOnce sync.Once

func initFFMS() {
	initOnce.Do(func() {
		C.FFMS_Init(0, 0)
	})
}

// FrameSource decodes a file into sequential packed BGR8 frames. It is
// constructed from an input path, opens the source and reads geometry
// immediately; construction failure is SourceUnavailable.
type FrameSource struct {
	idx      *C.FFMS_Index
	vidSrc   *C.FFMS_VideoSource
	geometry media.Geometry

	next int // index of the next frame Next() will decode
}

// Open indexes and opens path's first video track, normalizing decoder
// output to packed 8-bit BGR. It reads width, height, fps, and frame count
// up front.
func Open(path string) (*FrameSource, error) {
	initFFMS()

	errInfo := C.create_error_info()
	defer C.free_error_info(errInfo)

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	indexer := C.FFMS_CreateIndexer(cPath, errInfo)
	if indexer == nil {
		return nil, errors.NewSourceUnavailableError(
			fmt.Sprintf("cannot index %s", path),
			fmt.Errorf("%s", C.GoString(C.get_error_message(errInfo))))
	}

	C.FFMS_TrackIndexSettings(indexer, -1, 1, 0)

	idx := C.FFMS_DoIndexing2(indexer, C.int(0), errInfo)
	if idx == nil {
		return nil, errors.NewSourceUnavailableError(
			fmt.Sprintf("cannot index %s", path),
			fmt.Errorf("%s", C.GoString(C.get_error_message(errInfo))))
	}

	trackNum := C.FFMS_GetFirstTrackOfType(idx, C.FFMS_TYPE_VIDEO, errInfo)
	if trackNum < 0 {
		C.FFMS_DestroyIndex(idx)
		return nil, errors.NewSourceUnavailableError(
			fmt.Sprintf("%s has no decodable video track", path),
			fmt.Errorf("%s", C.GoString(C.get_error_message(errInfo))))
	}

	vidSrc := C.FFMS_CreateVideoSource(cPath, trackNum, idx, 0, C.FFMS_SEEK_NORMAL, errInfo)
	if vidSrc == nil {
		C.FFMS_DestroyIndex(idx)
		return nil, errors.NewSourceUnavailableError(
			fmt.Sprintf("cannot open video track in %s", path),
			fmt.Errorf("%s", C.GoString(C.get_error_message(errInfo))))
	}

	// Normalize decoder output to packed 8-bit BGR, native resolution.
	bgr24 := C.FFMS_GetPixFmt(C.CString("bgr24"))
	targetFormats := [2]C.int{bgr24, -1}
	if C.FFMS_SetOutputFormatV2(vidSrc, &targetFormats[0], -1, -1, C.FFMS_RESIZER_BICUBIC, errInfo) != 0 {
		C.FFMS_DestroyVideoSource(vidSrc)
		C.FFMS_DestroyIndex(idx)
		return nil, errors.NewSourceUnavailableError(
			fmt.Sprintf("%s cannot be decoded to BGR8", path),
			fmt.Errorf("%s", C.GoString(C.get_error_message(errInfo))))
	}

	props := C.FFMS_GetVideoProperties(vidSrc)
	if props == nil {
		C.FFMS_DestroyVideoSource(vidSrc)
		C.FFMS_DestroyIndex(idx)
		return nil, errors.NewSourceUnavailableError(fmt.Sprintf("%s has no video properties", path), nil)
	}

	frame := C.FFMS_GetFrame(vidSrc, 0, errInfo)
	if frame == nil {
		C.FFMS_DestroyVideoSource(vidSrc)
		C.FFMS_DestroyIndex(idx)
		return nil, errors.NewSourceUnavailableError(
			fmt.Sprintf("cannot decode first frame of %s", path),
			fmt.Errorf("%s", C.GoString(C.get_error_message(errInfo))))
	}

	fps := 0.0
	if props.FPSDenominator != 0 {
		fps = float64(props.FPSNumerator) / float64(props.FPSDenominator)
	}

	return &FrameSource{
		idx:    idx,
		vidSrc: vidSrc,
		geometry: media.Geometry{
			Width:          int(frame.ScaledWidth),
			Height:         int(frame.ScaledHeight),
			FPS:            fps,
			FrameCountHint: uint64(props.NumFrames),
		},
	}, nil
}

// Geometry returns the source's width, height, fps, and frame count hint.
func (s *FrameSource) Geometry() media.Geometry {
	return s.geometry
}

// Next returns the next decoded frame in presentation order, or (zero,
// false) on EndOfStream. A mid-stream decode error is SourceDecode.
func (s *FrameSource) Next() (media.Frame, bool, error) {
	if s.next >= int(s.geometry.FrameCountHint) {
		return media.Frame{}, false, nil
	}

	errInfo := C.create_error_info()
	defer C.free_error_info(errInfo)

	cFrame := C.FFMS_GetFrame(s.vidSrc, C.int(s.next), errInfo)
	if cFrame == nil {
		return media.Frame{}, false, errors.NewSourceDecodeError(
			fmt.Sprintf("decode failed at frame %d", s.next),
			fmt.Errorf("%s", C.GoString(C.get_error_message(errInfo))))
	}

	width := s.geometry.Width
	height := s.geometry.Height
	stride := int(cFrame.Linesize[0])
	rowBytes := width * 3

	rawData := unsafe.Slice((*byte)(unsafe.Pointer(cFrame.Data[0])), stride*height)
	data := make([]byte, rowBytes*height)
	copyPackedRows(data, rawData, height, rowBytes, stride)

	s.next++
	return media.Frame{Width: width, Height: height, Data: data}, true, nil
}

// copyPackedRows copies a row-major plane from src (which may have
// per-row padding, i.e. stride > rowBytes) into a tightly packed dst.
func copyPackedRows(dst, src []byte, rows, rowBytes, stride int) {
	dstOff, srcOff := 0, 0
	for row := 0; row < rows; row++ {
		copy(dst[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])
		dstOff += rowBytes
		srcOff += stride
	}
}

// Close releases the FFMS2 video source and index.
func (s *FrameSource) Close() error {
	if s.vidSrc != nil {
		C.FFMS_DestroyVideoSource(s.vidSrc)
		s.vidSrc = nil
	}
	if s.idx != nil {
		C.FFMS_DestroyIndex(s.idx)
		s.idx = nil
	}
	return nil
}
