// Package gpu converts packed BGR8 frames into planar YUV 4:2:0 payloads
// on a GPU, via CGO bindings to the OpenCL C API. A Preprocessor owns its
// device context, command queue, compiled program, and kernel handles for
// its entire lifetime; per-call device buffers are scoped to Process.
package gpu

/*
#cgo linux LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>
*/
import "C"

import (
	_ "embed"
	"fmt"
	"unsafe"

	"github.com/five82/transcode/internal/errors"
	"github.com/five82/transcode/internal/media"
)

//go:embed kernels/preprocess.cl
var kernelSource string

// Preprocessor resizes and color-converts frames on a GPU command queue.
// Queue operations are in-order; Process is not safe to call concurrently
// from multiple goroutines against the same Preprocessor.
type Preprocessor struct {
	device  C.cl_device_id
	context C.cl_context
	queue   C.cl_command_queue
	program C.cl_program

	resizeKernel  C.cl_kernel
	convertKernel C.cl_kernel
}

// New acquires a GPU device (falling back to any compute device if no
// GPU-class device is present), builds a context, command queue, and the
// resize_bilinear / bgr_to_yuv420 kernel program. Any failure is GpuInit;
// a build failure includes the compiler log in the error message.
func New() (*Preprocessor, error) {
	var platform C.cl_platform_id
	if ret := C.clGetPlatformIDs(1, &platform, nil); ret != C.CL_SUCCESS {
		return nil, errors.NewGpuInitError(fmt.Sprintf("clGetPlatformIDs failed: %d", ret), nil)
	}

	var device C.cl_device_id
	ret := C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_GPU, 1, &device, nil)
	if ret != C.CL_SUCCESS {
		ret = C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, 1, &device, nil)
	}
	if ret != C.CL_SUCCESS {
		return nil, errors.NewGpuInitError(fmt.Sprintf("clGetDeviceIDs failed: %d", ret), nil)
	}

	var cErr C.cl_int
	context := C.clCreateContext(nil, 1, &device, nil, nil, &cErr)
	if cErr != C.CL_SUCCESS {
		return nil, errors.NewGpuInitError(fmt.Sprintf("clCreateContext failed: %d", cErr), nil)
	}

	queue := C.clCreateCommandQueue(context, device, 0, &cErr)
	if cErr != C.CL_SUCCESS {
		C.clReleaseContext(context)
		return nil, errors.NewGpuInitError(fmt.Sprintf("clCreateCommandQueue failed: %d", cErr), nil)
	}

	p := &Preprocessor{device: device, context: context, queue: queue}

	if err := p.buildProgram(); err != nil {
		p.Close()
		return nil, err
	}

	resizeName := C.CString("resize_bilinear")
	defer C.free(unsafe.Pointer(resizeName))
	p.resizeKernel = C.clCreateKernel(p.program, resizeName, &cErr)
	if cErr != C.CL_SUCCESS {
		p.Close()
		return nil, errors.NewGpuInitError(fmt.Sprintf("clCreateKernel(resize_bilinear) failed: %d", cErr), nil)
	}

	convertName := C.CString("bgr_to_yuv420")
	defer C.free(unsafe.Pointer(convertName))
	p.convertKernel = C.clCreateKernel(p.program, convertName, &cErr)
	if cErr != C.CL_SUCCESS {
		p.Close()
		return nil, errors.NewGpuInitError(fmt.Sprintf("clCreateKernel(bgr_to_yuv420) failed: %d", cErr), nil)
	}

	return p, nil
}

func (p *Preprocessor) buildProgram() error {
	cSource := C.CString(kernelSource)
	defer C.free(unsafe.Pointer(cSource))

	var cErr C.cl_int
	program := C.clCreateProgramWithSource(p.context, 1, &cSource, nil, &cErr)
	if cErr != C.CL_SUCCESS {
		return errors.NewGpuInitError(fmt.Sprintf("clCreateProgramWithSource failed: %d", cErr), nil)
	}

	ret := C.clBuildProgram(program, 1, &p.device, nil, nil, nil)
	if ret != C.CL_SUCCESS {
		var logSize C.size_t
		C.clGetProgramBuildInfo(program, p.device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &logSize)
		logBuf := make([]byte, int(logSize))
		if logSize > 0 {
			C.clGetProgramBuildInfo(program, p.device, C.CL_PROGRAM_BUILD_LOG, logSize,
				unsafe.Pointer(&logBuf[0]), nil)
		}
		C.clReleaseProgram(program)
		return errors.NewGpuInitError(fmt.Sprintf("kernel build failed: %s", string(logBuf)), nil)
	}

	p.program = program
	return nil
}

// Process resizes frame to targetW x targetH and converts it to BT.601
// studio-swing planar YUV 4:2:0. targetW and targetH must be even and
// positive; violation is InvalidGeometry. Any GPU failure after
// construction is GpuRuntime.
func (p *Preprocessor) Process(frame media.Frame, targetW, targetH int) (media.YuvPayload, error) {
	if err := validateTarget(targetW, targetH); err != nil {
		return media.YuvPayload{}, err
	}
	if err := frame.Validate(); err != nil {
		return media.YuvPayload{}, errors.NewInvalidGeometryError(err.Error())
	}

	inputSize := len(frame.Data)
	resizedSize := targetW * targetH * 3
	ySize := targetW * targetH
	uvSize := (targetW / 2) * (targetH / 2)

	var cErr C.cl_int
	inputBuf := C.clCreateBuffer(p.context, C.CL_MEM_READ_ONLY|C.CL_MEM_COPY_HOST_PTR,
		C.size_t(inputSize), unsafe.Pointer(&frame.Data[0]), &cErr)
	if cErr != C.CL_SUCCESS {
		return media.YuvPayload{}, errors.NewGpuRuntimeError(fmt.Sprintf("clCreateBuffer(input) failed: %d", cErr), nil)
	}
	defer C.clReleaseMemObject(inputBuf)

	resizedBuf := C.clCreateBuffer(p.context, C.CL_MEM_READ_WRITE, C.size_t(resizedSize), nil, &cErr)
	if cErr != C.CL_SUCCESS {
		return media.YuvPayload{}, errors.NewGpuRuntimeError(fmt.Sprintf("clCreateBuffer(resized) failed: %d", cErr), nil)
	}
	defer C.clReleaseMemObject(resizedBuf)

	yBuf := C.clCreateBuffer(p.context, C.CL_MEM_WRITE_ONLY, C.size_t(ySize), nil, &cErr)
	if cErr != C.CL_SUCCESS {
		return media.YuvPayload{}, errors.NewGpuRuntimeError(fmt.Sprintf("clCreateBuffer(y) failed: %d", cErr), nil)
	}
	defer C.clReleaseMemObject(yBuf)

	uBuf := C.clCreateBuffer(p.context, C.CL_MEM_WRITE_ONLY, C.size_t(uvSize), nil, &cErr)
	if cErr != C.CL_SUCCESS {
		return media.YuvPayload{}, errors.NewGpuRuntimeError(fmt.Sprintf("clCreateBuffer(u) failed: %d", cErr), nil)
	}
	defer C.clReleaseMemObject(uBuf)

	vBuf := C.clCreateBuffer(p.context, C.CL_MEM_WRITE_ONLY, C.size_t(uvSize), nil, &cErr)
	if cErr != C.CL_SUCCESS {
		return media.YuvPayload{}, errors.NewGpuRuntimeError(fmt.Sprintf("clCreateBuffer(v) failed: %d", cErr), nil)
	}
	defer C.clReleaseMemObject(vBuf)

	srcW := C.int(frame.Width)
	srcH := C.int(frame.Height)
	dstW := C.int(targetW)
	dstH := C.int(targetH)

	if err := setKernelArgs(p.resizeKernel,
		arg{unsafe.Pointer(&inputBuf), C.size_t(unsafe.Sizeof(inputBuf))},
		arg{unsafe.Pointer(&srcW), C.size_t(unsafe.Sizeof(srcW))},
		arg{unsafe.Pointer(&srcH), C.size_t(unsafe.Sizeof(srcH))},
		arg{unsafe.Pointer(&resizedBuf), C.size_t(unsafe.Sizeof(resizedBuf))},
		arg{unsafe.Pointer(&dstW), C.size_t(unsafe.Sizeof(dstW))},
		arg{unsafe.Pointer(&dstH), C.size_t(unsafe.Sizeof(dstH))},
	); err != nil {
		return media.YuvPayload{}, err
	}

	globalResize := [2]C.size_t{C.size_t(targetW), C.size_t(targetH)}
	if ret := C.clEnqueueNDRangeKernel(p.queue, p.resizeKernel, 2, nil, &globalResize[0], nil, 0, nil, nil); ret != C.CL_SUCCESS {
		return media.YuvPayload{}, errors.NewGpuRuntimeError(fmt.Sprintf("resize kernel launch failed: %d", ret), nil)
	}

	if err := setKernelArgs(p.convertKernel,
		arg{unsafe.Pointer(&resizedBuf), C.size_t(unsafe.Sizeof(resizedBuf))},
		arg{unsafe.Pointer(&dstW), C.size_t(unsafe.Sizeof(dstW))},
		arg{unsafe.Pointer(&dstH), C.size_t(unsafe.Sizeof(dstH))},
		arg{unsafe.Pointer(&yBuf), C.size_t(unsafe.Sizeof(yBuf))},
		arg{unsafe.Pointer(&uBuf), C.size_t(unsafe.Sizeof(uBuf))},
		arg{unsafe.Pointer(&vBuf), C.size_t(unsafe.Sizeof(vBuf))},
	); err != nil {
		return media.YuvPayload{}, err
	}

	globalConvert := [2]C.size_t{C.size_t(targetW), C.size_t(targetH)}
	if ret := C.clEnqueueNDRangeKernel(p.queue, p.convertKernel, 2, nil, &globalConvert[0], nil, 0, nil, nil); ret != C.CL_SUCCESS {
		return media.YuvPayload{}, errors.NewGpuRuntimeError(fmt.Sprintf("convert kernel launch failed: %d", ret), nil)
	}

	out := make([]byte, media.Size(targetW, targetH))
	if ret := C.clEnqueueReadBuffer(p.queue, yBuf, C.CL_TRUE, 0, C.size_t(ySize), unsafe.Pointer(&out[0]), 0, nil, nil); ret != C.CL_SUCCESS {
		return media.YuvPayload{}, errors.NewGpuRuntimeError(fmt.Sprintf("read y plane failed: %d", ret), nil)
	}
	if ret := C.clEnqueueReadBuffer(p.queue, uBuf, C.CL_TRUE, 0, C.size_t(uvSize), unsafe.Pointer(&out[ySize]), 0, nil, nil); ret != C.CL_SUCCESS {
		return media.YuvPayload{}, errors.NewGpuRuntimeError(fmt.Sprintf("read u plane failed: %d", ret), nil)
	}
	if ret := C.clEnqueueReadBuffer(p.queue, vBuf, C.CL_TRUE, 0, C.size_t(uvSize), unsafe.Pointer(&out[ySize+uvSize]), 0, nil, nil); ret != C.CL_SUCCESS {
		return media.YuvPayload{}, errors.NewGpuRuntimeError(fmt.Sprintf("read v plane failed: %d", ret), nil)
	}

	return media.YuvPayload{Width: targetW, Height: targetH, Data: out}, nil
}

// validateTarget checks that target dimensions are even and positive, as
// required by resize_bilinear / bgr_to_yuv420's chroma subsampling.
func validateTarget(targetW, targetH int) error {
	if targetW <= 0 || targetH <= 0 || targetW%2 != 0 || targetH%2 != 0 {
		return errors.NewInvalidGeometryError(
			fmt.Sprintf("target dimensions must be even and positive, got %dx%d", targetW, targetH))
	}
	return nil
}

type arg struct {
	ptr  unsafe.Pointer
	size C.size_t
}

func setKernelArgs(kernel C.cl_kernel, args ...arg) error {
	for i, a := range args {
		if ret := C.clSetKernelArg(kernel, C.cl_uint(i), a.size, a.ptr); ret != C.CL_SUCCESS {
			return errors.NewGpuRuntimeError(fmt.Sprintf("clSetKernelArg(%d) failed: %d", i, ret), nil)
		}
	}
	return nil
}

// Close releases the kernels, program, command queue, and context. Safe
// to call on a partially constructed Preprocessor.
func (p *Preprocessor) Close() error {
	if p.resizeKernel != nil {
		C.clReleaseKernel(p.resizeKernel)
		p.resizeKernel = nil
	}
	if p.convertKernel != nil {
		C.clReleaseKernel(p.convertKernel)
		p.convertKernel = nil
	}
	if p.program != nil {
		C.clReleaseProgram(p.program)
		p.program = nil
	}
	if p.queue != nil {
		C.clReleaseCommandQueue(p.queue)
		p.queue = nil
	}
	if p.context != nil {
		C.clReleaseContext(p.context)
		p.context = nil
	}
	return nil
}
