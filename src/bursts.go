package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	The fixed burst templates framing a transmission (spec
 *		§4.5 "Bursts").
 *
 * Description:	Grounded on original_source/psk/psk31.c's
 *		starting_burst/ending_burst/fill_burst/idle_burst.
 *
 *------------------------------------------------------------------*/

var (
	startingBurst = Burst{Length: 20, Bits: 0}
	endingBurst   = Burst{Length: 20, Bits: 0x000fffff}
	fillBurst     = Burst{Length: 1, Bits: 0}
	idleBurst     = Burst{Length: 1, Bits: 1}
)
