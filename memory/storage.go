package memory

import (
	"errors"
	"sync"
)

// ErrOutOfRange is returned when an access touches bytes beyond the capacity
// of the storage.
var ErrOutOfRange = errors.New(
	"accessing physical address beyond the storage capacity")

// A Storage keeps the data of the guest system.
//
// The storage implementation manages the storage in units. The unit can is
// similar to the concept of page in mmemory management. For the units that
// it not touched by Read and Write function, no memory will be allocated.
//
// A Storage can be shared between the CPU and the GPU goroutines.
type Storage struct {
	lock     sync.RWMutex
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity
func NewStorage(capacity uint64) *Storage {
	storage := new(Storage)

	storage.unitSize = 4096
	storage.capacity = capacity
	storage.data = make(map[uint64][]byte)

	return storage
}

// Capacity returns the number of bytes that the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) checkRange(address, length uint64) error {
	if address+length > s.capacity {
		return ErrOutOfRange
	}

	return nil
}

// getStorageUnit retrieves a storage unit. If the unit has never been
// written, it returns nil and the unit reads as zeros.
func (s *Storage) getStorageUnit(address uint64) []byte {
	baseAddr, _ := s.parseAddress(address)
	return s.data[baseAddr]
}

// createOrGetStorageUnit retrieves a storage unit if the unit has been created
// before. Otherwise it initilizes a storage unit in the storage object
func (s *Storage) createOrGetStorageUnit(address uint64) []byte {
	baseAddr, _ := s.parseAddress(address)

	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

// Read returns a copy of length bytes starting at address.
func (s *Storage) Read(address uint32, length uint32) ([]byte, error) {
	if err := s.checkRange(uint64(address), uint64(length)); err != nil {
		return nil, err
	}

	res := make([]byte, length)

	err := s.CopyFrom(res, address)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// CopyFrom fills dst with the bytes starting at address.
func (s *Storage) CopyFrom(dst []byte, address uint32) error {
	addr := uint64(address)
	length := uint64(len(dst))

	if err := s.checkRange(addr, length); err != nil {
		return err
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	currAddr := addr
	dataOffset := uint64(0)

	for dataOffset < length {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenLeftInUnit := baseAddr + s.unitSize - currAddr
		lenToRead := length - dataOffset

		if lenToRead > lenLeftInUnit {
			lenToRead = lenLeftInUnit
		}

		unit := s.getStorageUnit(currAddr)
		if unit == nil {
			clear(dst[dataOffset : dataOffset+lenToRead])
		} else {
			copy(dst[dataOffset:dataOffset+lenToRead],
				unit[inUnitAddr:inUnitAddr+lenToRead])
		}

		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint32, data []byte) error {
	addr := uint64(address)

	if err := s.checkRange(addr, uint64(len(data))); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	currAddr := addr
	dataOffset := uint64(0)

	for dataOffset < uint64(len(data)) {
		unit := s.createOrGetStorageUnit(currAddr)

		_, inUnitAddr := s.parseAddress(currAddr)
		lenLeftInData := uint64(len(data)) - dataOffset
		lenLeftInUnit := s.unitSize - inUnitAddr
		lenToWrite := lenLeftInData

		if lenToWrite > lenLeftInUnit {
			lenToWrite = lenLeftInUnit
		}

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])
		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}
