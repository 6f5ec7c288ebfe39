// Package memory provides the emulated guest memory that the command FIFO
// reads from and writes to.
package memory

// Memory is the part of the guest memory subsystem used by the FIFO. The
// gather pipe writes bursts into the FIFO window, the FIFO fetch stage reads
// them back and the decoder reads display lists.
type Memory interface {
	Read(address uint32, length uint32) ([]byte, error)
	Write(address uint32, data []byte) error

	// CopyFrom fills dst with the bytes that start at address.
	CopyFrom(dst []byte, address uint32) error
}
