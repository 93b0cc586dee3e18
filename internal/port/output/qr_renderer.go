package output

// QRRenderer is an output port for turning a KHQR payment string into a
// scannable image. The controller never inspects the bytes; it forwards
// them opaquely to the caller.
type QRRenderer interface {
	// RenderPNG encodes the payload as a QR symbol and returns PNG bytes
	RenderPNG(payload string) ([]byte, error)
}
