package psk31

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newFakePeripheralMapForPacing() *PeripheralMap {
	return &PeripheralMap{ //nolint:exhaustruct
		PWM: newFakeWindow(16),
		PCM: newFakeWindow(16),
		CLK: newFakeWindow(64),
	}
}

func TestPacingModeString(t *testing.T) {
	assert.Equal(t, "pwm", PacingPWM.String())
	assert.Equal(t, "pcm", PacingPCM.String())
}

func TestPacingInitPWMProgramsRngAndDmac(t *testing.T) {
	pm := newFakePeripheralMapForPacing()
	p := NewPacing(pm, PacingPWM)

	p.Init()

	assert.Equal(t, uint32(pulseWidthIncrUS*10), pm.PWM.load(regPWM_RNG1))
	assert.Equal(t, uint32(pwmDmacEnab|pwmDmacThrshld), pm.PWM.load(regPWM_DMAC))
	assert.Equal(t, uint32(pwmCtlUsef1|pwmCtlPwen1), pm.PWM.load(regPWM_CTL))
	// PCM window is untouched by PWM pacing mode.
	assert.Zero(t, pm.PCM.load(regPCM_CS_A))
}

func TestPacingInitPCMProgramsModeAndDreq(t *testing.T) {
	pm := newFakePeripheralMapForPacing()
	p := NewPacing(pm, PacingPCM)

	p.Init()

	assert.Equal(t, uint32((pulseWidthIncrUS*10-1)<<10), pm.PCM.load(regPCM_MODE_A))
	assert.Equal(t, uint32(15<<24|15<<8), pm.PCM.load(regPCM_DREQ_A))
	assert.NotZero(t, pm.PCM.load(regPCM_CS_A)&pcmCsDMAEnable)
}

func TestPacingEnableOutputOnlyAffectsPCM(t *testing.T) {
	pm := newFakePeripheralMapForPacing()

	pwmPacing := NewPacing(pm, PacingPWM)
	pwmPacing.EnableOutput()
	assert.Zero(t, pm.PCM.load(regPCM_CS_A))

	pcmPacing := NewPacing(pm, PacingPCM)
	pcmPacing.EnableOutput()
	assert.NotZero(t, pm.PCM.load(regPCM_CS_A)&pcmCsTxEnable)
}

func TestPacingFIFOBusAddr(t *testing.T) {
	bases := knownBases["bcm2835"]

	pwmAddr, pwmPermap := NewPacing(nil, PacingPWM).FIFOBusAddr(bases)
	assert.Equal(t, busAddr(bases.PWM, 0x18), pwmAddr)
	assert.Equal(t, permapPWM, pwmPermap)

	pcmAddr, pcmPermap := NewPacing(nil, PacingPCM).FIFOBusAddr(bases)
	assert.Equal(t, busAddr(bases.PCM, 0x04), pcmAddr)
	assert.Equal(t, permapPCM, pcmPermap)
}
