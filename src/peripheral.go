package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Map the five fixed peripheral register windows (DMA, PWM,
 *		PCM, clock manager, GPIO) used by the signal engine, and
 *		expose each as a word-addressed view with release-store
 *		semantics with respect to later peripheral reads.
 *
 * Description:	Grounded on the teacher's raw /dev/mem mmap technique in
 *		map_peripheral() (original_source/psk/psk31.c) and on the
 *		bcm283x register layout documented in the periph.io
 *		bcm283x driver (host/bcm283x/{dma,gpio,pwm,pcm,clock}.go in
 *		the example pack) -- neither of which is in the teacher's
 *		own dependency tree, so the mapping technique here uses
 *		only golang.org/x/sys/unix, matching the teacher's own
 *		preference for plain syscalls over cgo in files like
 *		ptt.go's RTS/DTR ioctl helpers.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// Word offsets into each peripheral's register window (spec §6).
const (
	regDMA_CS        = 0x00 / 4
	regDMA_CONBLK_AD = 0x04 / 4
	regDMA_DEBUG     = 0x20 / 4

	regPWM_CTL   = 0x00 / 4
	regPWM_DMAC  = 0x08 / 4
	regPWM_RNG1  = 0x10 / 4
	regPWM_FIFO  = 0x18 / 4

	regPCM_CS_A   = 0x00 / 4
	regPCM_FIFO_A = 0x04 / 4
	regPCM_MODE_A = 0x08 / 4
	regPCM_TXC_A  = 0x10 / 4
	regPCM_DREQ_A = 0x14 / 4

	regCM_GP0CTL = 0x70 / 4
	regCM_GP0DIV = 0x74 / 4
	regPWMCLK_CNTL = 40
	regPWMCLK_DIV  = 41
	regPCMCLK_CNTL = 38
	regPCMCLK_DIV  = 39

	regGPIO_FSEL0 = 0x00 / 4
	regGPIO_SET0  = 0x1c / 4
	regGPIO_CLR0  = 0x28 / 4
	regGPIO_LEV0  = 0x34 / 4
)

// peripheralWindow is one mmap'd register bank, aliased as a slice of
// uint32 words. Loads/stores go through sync/atomic, which on every
// architecture Go supports for this SoC family emits the ordered
// load/store the hardware needs without a separate explicit barrier.
type peripheralWindow struct {
	name string
	raw  []byte
	w    []uint32
}

func mapPeripheral(memFd *os.File, name string, base uintptr, length int) (*peripheralWindow, error) {
	raw, err := unix.Mmap(int(memFd.Fd()), int64(base), length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("psk31: failed to map %s peripheral at 0x%08x: %w", name, base, err)
	}

	return &peripheralWindow{
		name: name,
		raw:  raw,
		w:    unsafe.Slice((*uint32)(unsafe.Pointer(&raw[0])), length/4),
	}, nil
}

func (p *peripheralWindow) load(offset int) uint32 {
	return atomic.LoadUint32(&p.w[offset])
}

func (p *peripheralWindow) store(offset int, v uint32) {
	atomic.StoreUint32(&p.w[offset], v)
}

func (p *peripheralWindow) close() error {
	if p == nil || p.raw == nil {
		return nil
	}

	return unix.Munmap(p.raw)
}

// PeripheralMap owns the five register windows. It is the sole owner of
// these windows; other components borrow (*PeripheralMap) but never map
// or unmap a window themselves.
type PeripheralMap struct {
	log *log.Logger

	memFd *os.File
	bases PeripheralBases

	DMA  *peripheralWindow
	PWM  *peripheralWindow
	PCM  *peripheralWindow
	CLK  *peripheralWindow
	GPIO *peripheralWindow
}

// OpenPeripheralMap opens /dev/mem once and maps all five windows at the
// given bases. Any failure here is an Initialization failure (spec §7):
// the caller should treat a non-nil error as fatal.
func OpenPeripheralMap(bases PeripheralBases) (*PeripheralMap, error) {
	lg := newLogger(compPeripheral)

	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("psk31: failed to open /dev/mem: %w", err)
	}

	pm := &PeripheralMap{log: lg, memFd: f, bases: bases}

	windows := []struct {
		dst    **peripheralWindow
		name   string
		base   uintptr
		length int
	}{
		{&pm.DMA, "dma", bases.DMA, bases.DMALen},
		{&pm.PWM, "pwm", bases.PWM, bases.PWMLen},
		{&pm.PCM, "pcm", bases.PCM, bases.PCMLen},
		{&pm.CLK, "clk", bases.CLK, bases.CLKLen},
		{&pm.GPIO, "gpio", bases.GPIO, bases.GPIOLen},
	}

	for _, w := range windows {
		mapped, mapErr := mapPeripheral(f, w.name, w.base, w.length)
		if mapErr != nil {
			pm.Close()
			return nil, mapErr
		}

		*w.dst = mapped
		lg.Debug("mapped peripheral window", "name", w.name, "base", fmt.Sprintf("0x%08x", w.base), "len", w.length)
	}

	return pm, nil
}

// Close unmaps every window and closes /dev/mem. Safe to call more than
// once and on a partially-initialized map.
func (pm *PeripheralMap) Close() error {
	var firstErr error

	for _, w := range []*peripheralWindow{pm.DMA, pm.PWM, pm.PCM, pm.CLK, pm.GPIO} {
		if err := w.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if pm.memFd != nil {
		if err := pm.memFd.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// GPIOSetMode sets one GPIO pin to GPIO_MODE_IN/OUT/ALTn (spec §6's
// GPIO_FSEL register, read-modify-write of the pin's 3-bit field).
func (pm *PeripheralMap) GPIOSetMode(pin, mode uint32) {
	reg := regGPIO_FSEL0 + int(pin/10)
	shift := (pin % 10) * 3

	fsel := pm.GPIO.load(reg)
	fsel &^= 7 << shift
	fsel |= mode << shift
	pm.GPIO.store(reg, fsel)
}

// GPIOSet drives a pin high (level=true) or low via the dedicated
// SET/CLR registers -- the same registers the DMA-driven CBs write to.
// The engine's startup does not call it.
func (pm *PeripheralMap) GPIOSet(pin uint32, level bool) {
	if level {
		pm.GPIO.store(regGPIO_SET0, 1<<pin)
	} else {
		pm.GPIO.store(regGPIO_CLR0, 1<<pin)
	}
}

// busAddr converts a peripheral's physical base address plus a register
// byte offset into the bus address DMA uses to reach it: the low 24 bits
// of the SoC's peripheral window, OR-ed onto the fixed 0x7e000000
// peripheral alias (spec §6).
func busAddr(physBase uintptr, regByteOffset uint32) uint32 {
	return (uint32(physBase)&0x00ffffff | 0x7e000000) + regByteOffset
}
