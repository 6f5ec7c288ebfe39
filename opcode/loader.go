package opcode

// FixedStrideLoader is a VertexLoader for vertex formats of a known size.
// Strides holds the number of bytes per vertex of each vertex format.
type FixedStrideLoader struct {
	Strides [8]int
}

// RunVertices skips over count vertices of format vat.
func (l *FixedStrideLoader) RunVertices(
	vat uint8,
	_ Primitive,
	count uint16,
	data []byte,
) int {
	n := l.Strides[vat&vatMask] * int(count)
	if len(data) < n {
		return -1
	}

	return n
}

// DiscardBackend drops every register load.
type DiscardBackend struct{}

// LoadCPReg does nothing.
func (DiscardBackend) LoadCPReg(uint8, uint32) {}

// LoadXFReg does nothing.
func (DiscardBackend) LoadXFReg(uint16, []uint32) {}

// LoadIndexedXF does nothing.
func (DiscardBackend) LoadIndexedXF(uint8, uint32) {}

// LoadBPReg does nothing.
func (DiscardBackend) LoadBPReg(uint32) {}

// InvalidateVertexCache does nothing.
func (DiscardBackend) InvalidateVertexCache() {}
