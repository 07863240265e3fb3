package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	The DMA control-block binary layout and the transfer-info
 *		bit fields the waveform compiler stamps into each CB.
 *
 * Description:	The CB field layout (info/src/dst/len/stride/next/pad/pad,
 *		32 bytes) comes from original_source/psk/psk31.c's `struct
 *		dma_cb`. The individual dmaTransferInfo bit positions (the
 *		PERMAP enumeration, SRC_INC/DEST_INC/SRC_DREQ/DEST_DREQ,
 *		WAIT_RESP) and the dmaStatus/dmaDebug register bit layouts
 *		are grounded on the google/periph bcm283x driver's dma.go,
 *		which documents the same BCM283x DMA controller the teacher
 *		never touches directly.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// cbSize is the fixed 32-byte, 32-byte-aligned DMA control block size
// (spec §6 "CB binary layout").
const cbSize = 32

// dmaTransferInfo bit fields (word 0 of a CB), per the BCM283x DMA
// controller's TI register layout.
const (
	tiInterruptEnable dmaTransferInfo = 1 << 0
	tiWaitResp        dmaTransferInfo = 1 << 3
	tiDstInc          dmaTransferInfo = 1 << 4
	tiDstDReq         dmaTransferInfo = 1 << 6
	tiSrcInc          dmaTransferInfo = 1 << 8
	tiSrcDReq         dmaTransferInfo = 1 << 10
	tiPermapShift                     = 16
	tiWaitCyclesShift                 = 21
	tiNoWideBursts    dmaTransferInfo = 1 << 26
)

type dmaTransferInfo uint32

// PERMAP values selecting which peripheral's DREQ paces a transfer.
const (
	permapNone dmaTransferInfo = 0
	permapPWM  dmaTransferInfo = 5 << tiPermapShift
	permapPCM  dmaTransferInfo = 2 << tiPermapShift
)

// dmaStatus (CS register) bits.
const (
	csReset                    uint32 = 1 << 31
	csWaitForOutstandingWrites uint32 = 1 << 28
	csPriorityShift                   = 16
	csEnd                      uint32 = 1 << 1
	csActive                   uint32 = 1 << 0
)

// controlBlock is the in-memory shape of one 32-byte DMA CB. It is never
// read/written as a Go struct directly (that would not guarantee the
// little-endian wire layout DMA expects); encode/decode helpers below
// translate to and from the arena's raw byte slice.
type controlBlock struct {
	info   uint32
	src    uint32
	dst    uint32
	length uint32
	stride uint32
	next   uint32
	pad0   uint32
	pad1   uint32
}

func (cb controlBlock) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], cb.info)
	binary.LittleEndian.PutUint32(dst[4:8], cb.src)
	binary.LittleEndian.PutUint32(dst[8:12], cb.dst)
	binary.LittleEndian.PutUint32(dst[12:16], cb.length)
	binary.LittleEndian.PutUint32(dst[16:20], cb.stride)
	binary.LittleEndian.PutUint32(dst[20:24], cb.next)
	binary.LittleEndian.PutUint32(dst[24:28], cb.pad0)
	binary.LittleEndian.PutUint32(dst[28:32], cb.pad1)
}

// writeCBNext rewrites only the `next` field of a CB in place as a single
// atomic 32-bit store. This is the splice invariant (spec §3 invariant
// (d), §4.4 step 4): the write must either be fully visible to DMA's own
// fetch of the same word or not at all, never torn.
func writeCBNext(arenaBytes []byte, cbOffset uintptr, next uint32) {
	word := (*uint32)(unsafe.Pointer(&arenaBytes[cbOffset+20]))
	atomic.StoreUint32(word, next)
}

func readCBNext(arenaBytes []byte, cbOffset uintptr) uint32 {
	word := (*uint32)(unsafe.Pointer(&arenaBytes[cbOffset+20]))
	return atomic.LoadUint32(word)
}
