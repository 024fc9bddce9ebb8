// Package mem implements SIRC's memory segments: fixed-size byte-addressable
// regions that can be mapped onto the bus, a label->segment table used by
// the assembler/linker/debugger to resolve symbolic addresses, and the
// byte-order translation between the bus's big-endian wire format and the
// little-endian format a program image is stored in on the host.
package mem

import (
	"fmt"

	"sirc/bits"
	"sirc/bus"
)

// Segment is a fixed-size, optionally read-only region of byte-addressable
// storage. Internally it always stores bytes in big-endian word order - the
// same order they cross the bus in - so Poll never has to convert; only
// LoadImage (loading a program built on a little-endian host) converts.
type Segment struct {
	Label    string
	Address  uint32
	Size     uint32
	Writable bool

	data []byte
}

// NewSegment allocates a zeroed segment of size bytes mapped at address.
func NewSegment(label string, address, size uint32, writable bool) *Segment {
	return &Segment{Label: label, Address: address, Size: size, Writable: writable, data: make([]byte, size)}
}

// Contains reports whether addr falls within this segment's half-open
// range [Address, Address+Size). spec.md §9 calls out that the reference
// implementation's segment lookup used an inclusive upper bound, allowing a
// one-byte overlap with the next segment; this implementation uses the
// half-open interval throughout.
func (s *Segment) Contains(addr uint32) bool {
	return addr >= s.Address && addr < s.Address+s.Size
}

// ReadByte reads one byte at the segment-relative offset.
func (s *Segment) ReadByte(offset uint32) (byte, error) {
	if offset >= uint32(len(s.data)) {
		return 0, fmt.Errorf("mem: offset %#x out of range for segment %q (size %#x)", offset, s.Label, s.Size)
	}
	return s.data[offset], nil
}

// WriteByte writes one byte at the segment-relative offset, regardless of
// Writable - callers that need to honor write protection check it
// themselves (Poll does; debug pokes intentionally bypass it).
func (s *Segment) WriteByte(offset uint32, v byte) error {
	if offset >= uint32(len(s.data)) {
		return fmt.Errorf("mem: offset %#x out of range for segment %q (size %#x)", offset, s.Label, s.Size)
	}
	s.data[offset] = v
	return nil
}

// ReadWordBE reads a big-endian word at the segment-relative byte offset.
func (s *Segment) ReadWordBE(offset uint32) (uint16, error) {
	hi, err := s.ReadByte(offset)
	if err != nil {
		return 0, err
	}
	lo, err := s.ReadByte(offset + 1)
	if err != nil {
		return 0, err
	}
	return bits.BytesToWordBE(hi, lo), nil
}

// WriteWordBE writes a big-endian word at the segment-relative byte offset.
func (s *Segment) WriteWordBE(offset uint32, w uint16) error {
	be := bits.WordToBytesBE(w)
	if err := s.WriteByte(offset, be[0]); err != nil {
		return err
	}
	return s.WriteByte(offset+1, be[1])
}

// LoadImage copies a little-endian program image (as produced by the
// linker and read back off disk on a little-endian host) into the segment,
// byte-swapping every word pair so the segment's internal storage stays
// big-endian like every other byte that crosses the bus.
func (s *Segment) LoadImage(image []byte) error {
	if len(image) > len(s.data) {
		return fmt.Errorf("mem: image (%d bytes) larger than segment %q (%d bytes)", len(image), s.Label, len(s.data))
	}
	n := len(image)
	for i := 0; i+1 < n; i += 2 {
		w := bits.BytesToWordLE(image[i], image[i+1])
		be := bits.WordToBytesBE(w)
		s.data[i], s.data[i+1] = be[0], be[1]
	}
	if n%2 == 1 {
		s.data[n-1] = image[n-1]
	}
	return nil
}

// Poll implements bus.Device. Writes to a non-writable segment are dropped
// and counted (see DroppedWrites), with no log line, rather than raising a
// bus error - spec.md §4.H treats a
// write to ROM as a silently-ignored program bug, not a fault condition.
func (s *Segment) Poll(in bus.Assertions) bus.Assertions {
	out := in
	out.DeviceWasActivated = false
	if in.Op == bus.NoOp || !s.Contains(in.Address) {
		return out
	}
	offset := in.Address - s.Address
	out.DeviceWasActivated = true

	switch in.Op {
	case bus.Read:
		w, err := s.ReadWordBE(offset)
		if err != nil {
			out.BusError = true
			return out
		}
		out.Data = w
	case bus.Write:
		if !s.Writable {
			droppedWritesTotal.add(s.Label)
			return out
		}
		if err := s.WriteWordBE(offset, in.Data); err != nil {
			out.BusError = true
		}
	}
	return out
}

// droppedWriteCounter is a tiny in-memory tally of writes dropped against
// read-only segments, exposed through DroppedWrites rather than spamming a
// log line on every rejected write in a tight loop.
type droppedWriteCounter struct {
	counts map[string]uint64
}

func (c *droppedWriteCounter) add(label string) {
	if c.counts == nil {
		c.counts = map[string]uint64{}
	}
	c.counts[label]++
}

// Count returns how many writes have been dropped against the named
// segment since the program started; the tally is never reset.
func (c *droppedWriteCounter) Count(label string) uint64 {
	return c.counts[label]
}

var droppedWritesTotal = &droppedWriteCounter{}

// DroppedWrites exposes the shared dropped-write tally for diagnostics.
func DroppedWrites(label string) uint64 {
	return droppedWritesTotal.Count(label)
}
