package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Pin a contiguous block of physical memory and translate
 *		between virtual pointers and the bus addresses DMA needs.
 *
 * Description:	Grounded directly on original_source/psk/psk31.c's
 *		make_pagemap()/make_physinfo()/cb_offset_to_phys() trio: an
 *		anonymous mmap, locked with mlock, is walked page by page through
 *		/proc/self/pagemap to recover each page's physical frame
 *		number, OR-ed with the 0x40000000 DMA-coherent alias bit
 *		the teacher's C uses, then the control-block-bearing prefix
 *		of that table is copied out and sorted for binary search.
 *		The mmap/mlock primitives come from golang.org/x/sys/unix,
 *		the same package the teacher reaches for in ptt.go's ioctl
 *		calls instead of cgo.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"unsafe"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

const (
	pageSize     = 4096
	pagemapPFNMask = (1 << 55) - 1
	pagemapPresentBit = uint64(1) << 63
)

// pageFrame records one pinned page's virtual base and resolved bus
// address (physical frame address, already OR-ed with the DMA alias bit).
type pageFrame struct {
	virt uintptr
	bus  uint32
}

// Arena is the pinned-page region backing every DMA control block and
// sample word the waveform compiler produces.
type Arena struct {
	log *log.Logger

	mem []byte // the raw mmap'd region, len == numPages*pageSize

	pages    []pageFrame // one entry per page, in virtual order
	cbFrames []pageFrame // prefix covering the CB-bearing pages, sorted by bus address

	numPagesCBs int
	cursor      uintptr // not updated anywhere; the waveform compiler tracks its own CBCursor
}

// NewArena allocates and pins numPages pages, of which numPagesCBs (a
// prefix) will hold DMA control blocks; the remainder holds sample/scratch
// words. Any failure is an Initialization failure per spec §7.
func NewArena(numPages, numPagesCBs int) (*Arena, error) {
	lg := newLogger(compArena)

	length := numPages * pageSize

	mem, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("psk31: failed to mmap %d pinned pages: %w", numPages, err)
	}

	if err := unix.Mlock(mem); err != nil {
		_ = unix.Munmap(mem)
		return nil, fmt.Errorf("psk31: failed to mlock pinned arena: %w", err)
	}

	a := &Arena{log: lg, mem: mem, numPagesCBs: numPagesCBs}

	if err := a.resolvePages(numPages); err != nil {
		a.Close()
		return nil, err
	}

	a.cbFrames = append([]pageFrame(nil), a.pages[:numPagesCBs]...)
	sort.Slice(a.cbFrames, func(i, j int) bool { return a.cbFrames[i].bus < a.cbFrames[j].bus })

	lg.Info("pinned arena ready", "pages", numPages, "cb_pages", numPagesCBs)

	return a, nil
}

// resolvePages walks /proc/self/pagemap once per page, touching each page
// first to force it to be backed, exactly as the teacher's C does with
// "page_map[i].virtaddr[0] = 0" before reading the pagemap entry.
func (a *Arena) resolvePages(numPages int) error {
	pm, err := os.Open("/proc/self/pagemap")
	if err != nil {
		return fmt.Errorf("psk31: failed to open /proc/self/pagemap: %w", err)
	}
	defer pm.Close()

	base := uintptr(unsafe.Pointer(&a.mem[0]))

	a.pages = make([]pageFrame, numPages)

	for i := 0; i < numPages; i++ {
		a.mem[i*pageSize] = 0 // fault the page in

		virt := base + uintptr(i*pageSize)
		entryOffset := int64(virt/pageSize) * 8

		var entry [8]byte
		if n, err := pm.ReadAt(entry[:], entryOffset); err != nil || n != 8 {
			return fmt.Errorf("psk31: failed to read pagemap entry for page %d: %w", i, err)
		}

		raw := binary.LittleEndian.Uint64(entry[:])
		if raw&pagemapPresentBit == 0 {
			return fmt.Errorf("psk31: page %d not present in pagemap (entry 0x%016x)", i, raw)
		}

		pfn := raw & pagemapPFNMask
		physAddr := uint32(pfn)*pageSize | 0x40000000

		a.pages[i] = pageFrame{virt: virt, bus: physAddr}
	}

	return nil
}

// VirtToBus resolves any virtual address inside the arena to its bus
// address in O(1): the page table is indexed directly by page number
// since pages are allocated and walked in virtual order.
func (a *Arena) VirtToBus(v uintptr) (uint32, error) {
	base := a.pages[0].virt
	if v < base || v >= base+uintptr(len(a.pages))*pageSize {
		return 0, fmt.Errorf("psk31: address 0x%x outside pinned arena", v)
	}

	idx := (v - base) / pageSize
	offset := uint32((v - base) % pageSize)

	return a.pages[idx].bus + offset, nil
}

// BusToVirt resolves a bus address, restricted to CB-bearing pages, back
// to a virtual pointer via binary search over the sorted prefix table
// (spec §4.2), mirroring cb_offset_to_virt in the original C.
func (a *Arena) BusToVirt(bus uint32) (uintptr, error) {
	n := len(a.cbFrames)
	idx := sort.Search(n, func(i int) bool { return a.cbFrames[i].bus > bus }) - 1

	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("psk31: bus address 0x%08x not within a CB page", bus)
	}

	frame := a.cbFrames[idx]
	if bus < frame.bus || bus >= frame.bus+pageSize {
		return 0, fmt.Errorf("psk31: bus address 0x%08x not within a CB page", bus)
	}

	return frame.virt + uintptr(bus-frame.bus), nil
}

// Base returns the virtual address of byte 0 of the arena, used by
// callers that need to compute offsets directly (the waveform compiler's
// bump allocator).
func (a *Arena) Base() uintptr {
	return a.pages[0].virt
}

// Bytes exposes the raw backing slice for in-place CB field writes.
func (a *Arena) Bytes() []byte {
	return a.mem
}

// ReclaimTail unmaps the CB-bearing pages after the one holding lastUsed,
// implementing the compiler's post-compile memory reclamation (spec
// §4.3 "Memory reclamation"): pages holding CBs that were never used
// are returned to the OS.
func (a *Arena) ReclaimTail(lastUsed uintptr) error {
	base := a.pages[0].virt
	lastPage := int((lastUsed - base) / pageSize)

	for i := lastPage + 1; i < a.numPagesCBs; i++ {
		off := i * pageSize
		if err := unix.Munmap(a.mem[off : off+pageSize]); err != nil {
			return fmt.Errorf("psk31: failed to unmap reclaimed page %d: %w", i, err)
		}
	}

	a.log.Debug("reclaimed unused CB pages", "from_page", lastPage+1, "to_page", a.numPagesCBs-1)

	return nil
}

// Close unlocks and unmaps the whole arena.
func (a *Arena) Close() error {
	if a.mem == nil {
		return nil
	}

	_ = unix.Munlock(a.mem)

	return unix.Munmap(a.mem)
}
