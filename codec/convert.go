package codec

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Kernel selects the resampling filter used by Converter.
type Kernel int

const (
	KernelBicubic Kernel = iota
	KernelBilinear
	KernelNearest
	KernelLanczos
)

func (k Kernel) String() string {
	switch k {
	case KernelBicubic:
		return "bicubic"
	case KernelBilinear:
		return "bilinear"
	case KernelNearest:
		return "nearest"
	case KernelLanczos:
		return "lanczos"
	default:
		return fmt.Sprintf("Kernel(%d)", int(k))
	}
}

// ParseKernel maps a scaler name to a Kernel. Empty selects bicubic.
func ParseKernel(s string) (Kernel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bicubic", "catmullrom":
		return KernelBicubic, nil
	case "bilinear":
		return KernelBilinear, nil
	case "nearest":
		return KernelNearest, nil
	case "lanczos":
		return KernelLanczos, nil
	default:
		return KernelBicubic, fmt.Errorf("unknown scaler %q", s)
	}
}

// scaleContext holds everything that depends on the source/target geometry.
type scaleContext struct {
	srcW, srcH int
	dstW, dstH int
	src        *image.RGBA
	dst        *image.RGBA
	scaler     draw.Scaler
}

func (sc *scaleContext) matches(srcW, srcH, dstW, dstH int) bool {
	return sc != nil && sc.srcW == srcW && sc.srcH == srcH && sc.dstW == dstW && sc.dstH == dstH
}

// Converter resamples RGB24 frames to a target size. Output buffers come from a
// pool; every frame returned by Convert must be handed back through Release once
// it has been rendered. A Converter is not safe for concurrent use.
type Converter struct {
	kernel Kernel
	ctx    *scaleContext
	pool   sync.Pool
}

// NewConverter returns a converter using kernel k.
func NewConverter(k Kernel) *Converter {
	return &Converter{kernel: k}
}

// Kernel reports the configured resampling filter.
func (c *Converter) Kernel() Kernel {
	return c.kernel
}

// Convert resamples src into a newly acquired w×h frame.
func (c *Converter) Convert(src *Frame, w, h int) (*Frame, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("bad target size %dx%d", w, h)
	}
	out := c.acquire(w, h)
	if src.Width == w && src.Height == h {
		copy(out.Data, src.Data[:Size(w, h)])
		return out, nil
	}

	sc := c.context(src.Width, src.Height, w, h)
	packRGBA(sc.src, src)
	if c.kernel == KernelLanczos {
		scaled := resize.Resize(uint(w), uint(h), sc.src, resize.Lanczos3)
		unpackImage(out, scaled)
		return out, nil
	}
	sc.scaler.Scale(sc.dst, sc.dst.Bounds(), sc.src, sc.src.Bounds(), draw.Src, nil)
	unpackRGBA(out, sc.dst)
	return out, nil
}

// Release returns f's buffer to the pool. f must not be used afterwards.
func (c *Converter) Release(f *Frame) {
	if f == nil || f.Data == nil {
		return
	}
	buf := f.Data[:0]
	f.Data = nil
	c.pool.Put(&buf)
}

func (c *Converter) acquire(w, h int) *Frame {
	need := Size(w, h)
	var data []byte
	if v, ok := c.pool.Get().(*[]byte); ok && cap(*v) >= need {
		data = (*v)[:need]
	} else {
		data = make([]byte, need)
	}
	return &Frame{Data: data, Width: w, Height: h}
}

func (c *Converter) context(srcW, srcH, dstW, dstH int) *scaleContext {
	if c.ctx.matches(srcW, srcH, dstW, dstH) {
		return c.ctx
	}
	sc := &scaleContext{
		srcW: srcW, srcH: srcH,
		dstW: dstW, dstH: dstH,
		src: image.NewRGBA(image.Rect(0, 0, srcW, srcH)),
		dst: image.NewRGBA(image.Rect(0, 0, dstW, dstH)),
	}
	switch c.kernel {
	case KernelBilinear:
		sc.scaler = draw.BiLinear.NewScaler(dstW, dstH, srcW, srcH)
	case KernelNearest:
		sc.scaler = draw.NearestNeighbor
	default:
		sc.scaler = draw.CatmullRom.NewScaler(dstW, dstH, srcW, srcH)
	}
	c.ctx = sc
	return sc
}

func packRGBA(dst *image.RGBA, src *Frame) {
	n := src.Width * src.Height
	for i := 0; i < n; i++ {
		dst.Pix[4*i] = src.Data[3*i]
		dst.Pix[4*i+1] = src.Data[3*i+1]
		dst.Pix[4*i+2] = src.Data[3*i+2]
		dst.Pix[4*i+3] = 0xff
	}
}

func unpackRGBA(dst *Frame, src *image.RGBA) {
	for y := 0; y < dst.Height; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < dst.Width; x++ {
			o := 3 * (x + y*dst.Width)
			dst.Data[o] = row[4*x]
			dst.Data[o+1] = row[4*x+1]
			dst.Data[o+2] = row[4*x+2]
		}
	}
}

func unpackImage(dst *Frame, img image.Image) {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		unpackRGBA(dst, rgba)
		return
	}
	b := img.Bounds()
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			o := 3 * (x + y*dst.Width)
			dst.Data[o] = uint8(r >> 8)
			dst.Data[o+1] = uint8(g >> 8)
			dst.Data[o+2] = uint8(bl >> 8)
		}
	}
}
