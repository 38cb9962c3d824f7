package hal

func rgb565(r, g, b uint8) uint16 {
	rr := uint16(r>>3) & 0x1F
	gg := uint16(g>>2) & 0x3F
	bb := uint16(b>>3) & 0x1F
	return (rr << 11) | (gg << 5) | bb
}

func rgb888From565(p uint16) (r, g, b uint8) {
	rr := (p >> 11) & 0x1F
	gg := (p >> 5) & 0x3F
	bb := p & 0x1F

	r = uint8((rr * 255) / 31)
	g = uint8((gg * 255) / 63)
	b = uint8((bb * 255) / 31)
	return r, g, b
}

// expandRGB565 converts little-endian RGB565 pixels into opaque RGBA.
func expandRGB565(dst, src []byte) {
	for i := 0; i+1 < len(src) && i*2+3 < len(dst); i += 2 {
		r, g, b := rgb888From565(uint16(src[i]) | uint16(src[i+1])<<8)
		j := i * 2
		dst[j+0] = r
		dst[j+1] = g
		dst[j+2] = b
		dst[j+3] = 0xFF
	}
}

// SetPixelRGB565 writes one pixel into a RGB565 framebuffer, ignoring
// coordinates outside it.
func SetPixelRGB565(fb Framebuffer, x, y int, r, g, b uint8) {
	buf := fb.Buffer()
	if buf == nil || fb.Format() != PixelFormatRGB565 {
		return
	}
	if x < 0 || y < 0 || x >= fb.Width() || y >= fb.Height() {
		return
	}
	off := y*fb.StrideBytes() + x*2
	if off+1 >= len(buf) {
		return
	}
	p := rgb565(r, g, b)
	buf[off] = byte(p)
	buf[off+1] = byte(p >> 8)
}

// FillRectRGB565 fills a clipped rectangle of a RGB565 framebuffer.
func FillRectRGB565(fb Framebuffer, x, y, w, h int, r, g, b uint8) {
	buf := fb.Buffer()
	if buf == nil || fb.Format() != PixelFormatRGB565 {
		return
	}
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, fb.Width()), min(y+h, fb.Height())
	if x0 >= x1 || y0 >= y1 {
		return
	}
	p := rgb565(r, g, b)
	lo, hi := byte(p), byte(p>>8)
	stride := fb.StrideBytes()
	for yy := y0; yy < y1; yy++ {
		row := buf[yy*stride:]
		for xx := x0; xx < x1; xx++ {
			row[xx*2] = lo
			row[xx*2+1] = hi
		}
	}
}
