package camera

import (
	"bytes"
	"fmt"
	"image"

	"golang.org/x/image/tiff"
)

// EncodeRaw stores a sensor mosaic as an uncompressed 16-bit grayscale TIFF.
// It carries no DNGVersion or CFA tags, so DNG readers reject it even when
// saved under a .dng name; DecodeRaw and any TIFF reader can open it.
func EncodeRaw(m *image.Gray16) ([]byte, error) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, m, &tiff.Options{Compression: tiff.Uncompressed}); err != nil {
		return nil, fmt.Errorf("tiff encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRaw reads back a mosaic written by EncodeRaw.
func DecodeRaw(data []byte) (*image.Gray16, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("tiff decode: %w", err)
	}
	g, ok := img.(*image.Gray16)
	if !ok {
		return nil, fmt.Errorf("tiff decode: want 16-bit gray mosaic, got %T", img)
	}
	return g, nil
}
