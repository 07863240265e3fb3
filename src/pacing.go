package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Program whichever peripheral (PWM or PCM) paces DMA via
 *		DREQ, and report its DMA-visible FIFO register as a bus
 *		address for the waveform compiler's delay CBs.
 *
 * Description:	Grounded on original_source/psk/psk31.c's init_hardware():
 *		same PWMCLK/PCMCLK password-gated 10MHz-from-PLLD setup,
 *		same PWM_RNG1/PCM_MODE_A sample-period register, same
 *		DREQ/FIFO-enable bit patterns. The FIFO threshold here uses
 *		the engine's configured constant of 15 words per the
 *		transmit contract rather than the original's empirically
 *		looser 64-word threshold (see DESIGN.md).
 *
 *------------------------------------------------------------------*/

import "time"

// PacingMode selects which peripheral's DREQ paces DMA.
type PacingMode int

const (
	PacingPWM PacingMode = iota
	PacingPCM
)

func (m PacingMode) String() string {
	if m == PacingPCM {
		return "pcm"
	}

	return "pwm"
}

const (
	pwmCtlClrf  = 1 << 6
	pwmCtlUsef1 = 1 << 5
	pwmCtlPwen1 = 1 << 0

	pwmDmacEnab    = 1 << 31
	pwmDmacThrshld = 15<<8 | 15<<0

	pcmCsEnable    = 1 << 0
	pcmCsClrFifos  = 1<<4 | 1<<3
	pcmCsDMAEnable = 1 << 9
	pcmCsTxEnable  = 1 << 2
)

// regstep mirrors the teacher-adjacent original's liberal use of udelay()
// between register writes, which some boards' clock domain crossing
// genuinely requires.
func regstep() { time.Sleep(10 * time.Microsecond) }

// Pacing owns the PWM or PCM register programming and exposes the bus
// address of the FIFO register DMA's delay CBs write into.
type Pacing struct {
	pm   *PeripheralMap
	mode PacingMode
}

func NewPacing(pm *PeripheralMap, mode PacingMode) *Pacing {
	return &Pacing{pm: pm, mode: mode}
}

// Init runs the peripheral-specific setup sequence (spec §4.4 "Pacing
// peripheral"): clear, source PLLD, divide to 10MHz, configure one
// sample per PULSE_WIDTH_INCR_US*10 ticks, enable DMA requests.
func (p *Pacing) Init() {
	switch p.mode {
	case PacingPWM:
		p.initPWM()
	case PacingPCM:
		p.initPCM()
	}
}

func (p *Pacing) initPWM() {
	pm := p.pm

	pm.PWM.store(regPWM_CTL, 0)
	regstep()
	pm.CLK.store(regPWMCLK_CNTL, cmPassword|cmSrcPLLD)
	regstep()
	pm.CLK.store(regPWMCLK_DIV, cmPassword|(50<<12))
	regstep()
	pm.CLK.store(regPWMCLK_CNTL, cmPassword|cmSrcPLLD|cmEnable)
	regstep()
	pm.PWM.store(regPWM_RNG1, pulseWidthIncrUS*10)
	regstep()
	pm.PWM.store(regPWM_DMAC, pwmDmacEnab|pwmDmacThrshld)
	regstep()
	pm.PWM.store(regPWM_CTL, pwmCtlClrf)
	regstep()
	pm.PWM.store(regPWM_CTL, pwmCtlUsef1|pwmCtlPwen1)
	regstep()
}

func (p *Pacing) initPCM() {
	pm := p.pm

	pm.PCM.store(regPCM_CS_A, pcmCsEnable)
	regstep()
	pm.CLK.store(regPCMCLK_CNTL, cmPassword|cmSrcPLLD)
	regstep()
	pm.CLK.store(regPCMCLK_DIV, cmPassword|(50<<12))
	regstep()
	pm.CLK.store(regPCMCLK_CNTL, cmPassword|cmSrcPLLD|cmEnable)
	regstep()
	pm.PCM.store(regPCM_TXC_A, 1<<30)
	regstep()
	pm.PCM.store(regPCM_MODE_A, (pulseWidthIncrUS*10-1)<<10)
	regstep()
	pm.PCM.store(regPCM_CS_A, pm.PCM.load(regPCM_CS_A)|pcmCsClrFifos)
	regstep()
	pm.PCM.store(regPCM_DREQ_A, 15<<24|15<<8)
	regstep()
	pm.PCM.store(regPCM_CS_A, pm.PCM.load(regPCM_CS_A)|pcmCsDMAEnable)
	regstep()
}

// EnableOutput performs the PCM-only post-DMA-start step (PWM has none):
// the original only sets PCM_CS_A's TXON bit after DMA is already primed.
func (p *Pacing) EnableOutput() {
	if p.mode == PacingPCM {
		p.pm.PCM.store(regPCM_CS_A, p.pm.PCM.load(regPCM_CS_A)|pcmCsTxEnable)
	}
}

// FIFOBusAddr returns the bus address of the register the waveform
// compiler's delay CBs must write to, and the PERMAP value identifying
// this peripheral's DREQ line.
func (p *Pacing) FIFOBusAddr(bases PeripheralBases) (uint32, dmaTransferInfo) {
	switch p.mode {
	case PacingPCM:
		return busAddr(bases.PCM, 0x04), permapPCM
	default:
		return busAddr(bases.PWM, 0x18), permapPWM
	}
}
