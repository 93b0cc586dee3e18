// Package qr renders KHQR payment strings as QR symbols.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/khqrpos/pos-gateway/internal/port/output"
)

const defaultSize = 256

// PNGRenderer implements the QRRenderer output port.
type PNGRenderer struct {
	size int
}

// NewPNGRenderer creates a renderer producing square PNGs of the default size
func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{size: defaultSize}
}

var _ output.QRRenderer = (*PNGRenderer)(nil)

// RenderPNG encodes the payload as a QR symbol
func (r *PNGRenderer) RenderPNG(payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, r.size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR: %w", err)
	}
	return png, nil
}
