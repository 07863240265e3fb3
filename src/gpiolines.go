package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	Startup precheck that the three GPIO lines this
 *		transmitter drives are not already claimed by another
 *		process or exported via /sys/class/gpio.
 *
 * Description:	A raw /dev/mem mmap of the GPIO peripheral (peripheral.go)
 *		has no way to detect a line already owned by the kernel
 *		gpiod ABI or a sysfs export -- the mmap will simply succeed
 *		and the two writers will silently fight over the pin. This
 *		briefly requests each line through
 *		github.com/warthog618/go-gpiocdev's character-device ABI
 *		and releases it immediately, turning that failure mode into
 *		an Initialization failure (spec §7) instead of a confusing
 *		runtime glitch. Not grounded on the teacher (whose GPIO use
 *		is all sysfs/cgo in ptt.go/cm108.go); this is the one
 *		component built from scratch against the dependency's own
 *		documented API because nothing in the teacher's tree
 *		exercises it.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// CheckGPIOLinesAvailable requests and immediately releases each pin this
// transmitter will drive directly via mmap'd registers (spec "GPIO pin
// assignment (fixed)"): pin 4 (carrier), 17 (positive envelope), 18
// (negative envelope).
func CheckGPIOLinesAvailable(chipName string) error {
	lg := newLogger(compPeripheral)

	for _, pin := range []int{gpioFreqPin, gpioPosPin, gpioNegPin} {
		line, err := gpiocdev.RequestLine(chipName, pin, gpiocdev.AsOutput(0))
		if err != nil {
			return fmt.Errorf("psk31: GPIO line %d is unavailable (already claimed?): %w", pin, err)
		}

		if err := line.Close(); err != nil {
			return fmt.Errorf("psk31: failed to release GPIO line %d after precheck: %w", pin, err)
		}

		lg.Debug("GPIO line available", "pin", pin)
	}

	return nil
}
