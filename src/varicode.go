package psk31

/*------------------------------------------------------------------
 *
 * Purpose:	The fixed 256-entry Varicode table: every byte's
 *		self-synchronizing variable-length codeword.
 *
 * Description:	Reproduced in semantics (not in comments/layout) from
 *		original_source/psk/psk31.c's static varicode_table[]; each
 *		entry is the character's code, which starts and ends with a
 *		1-bit and never holds two consecutive zero bits, followed by
 *		the two zero bits of the inter-character gap, so the gap is
 *		sent as part of every codeword and stays self-synchronizing
 *		per the PSK31 convention (spec §4.5, GLOSSARY).
 *
 *------------------------------------------------------------------*/

import "fmt"

// Burst is a {length, bits} pair shifted out LSB first (spec §3
// "Modulation state").
type Burst struct {
	Length int
	Bits   uint32
}

var varicodeTable = [256]Burst{
	{12, 0x0355},
	{12, 0x036d},
	{12, 0x02dd},
	{12, 0x03bb},
	{12, 0x035d},
	{12, 0x03eb},
	{12, 0x03dd},
	{12, 0x02fd},
	{12, 0x03fd},
	{10, 0x00f7},
	{7, 0x0017},
	{12, 0x03db},
	{12, 0x02ed},
	{7, 0x001f},
	{12, 0x02bb},
	{12, 0x0357},
	{12, 0x03bd},
	{12, 0x02bd},
	{12, 0x02d7},
	{12, 0x03d7},
	{12, 0x036b},
	{12, 0x035b},
	{12, 0x02db},
	{12, 0x03ab},
	{12, 0x037b},
	{12, 0x02fb},
	{12, 0x03b7},
	{12, 0x02ab},
	{12, 0x02eb},
	{12, 0x0377},
	{12, 0x037d},
	{12, 0x03fb},
	{3, 0x0001},
	{11, 0x01ff},
	{11, 0x01f5},
	{11, 0x015f},
	{11, 0x01b7},
	{12, 0x02ad},
	{12, 0x0375},
	{11, 0x01fd},
	{10, 0x00df},
	{10, 0x00ef},
	{11, 0x01ed},
	{11, 0x01f7},
	{9, 0x0057},
	{8, 0x002b},
	{9, 0x0075},
	{11, 0x01eb},
	{10, 0x00ed},
	{10, 0x00bd},
	{10, 0x00b7},
	{10, 0x00ff},
	{11, 0x01dd},
	{11, 0x01b5},
	{11, 0x01ad},
	{11, 0x016b},
	{11, 0x01ab},
	{11, 0x01db},
	{10, 0x00af},
	{11, 0x017b},
	{11, 0x016f},
	{9, 0x0055},
	{11, 0x01d7},
	{12, 0x03d5},
	{12, 0x02f5},
	{9, 0x005f},
	{10, 0x00d7},
	{10, 0x00b5},
	{10, 0x00ad},
	{9, 0x0077},
	{10, 0x00db},
	{10, 0x00bf},
	{11, 0x0155},
	{9, 0x007f},
	{11, 0x017f},
	{11, 0x017d},
	{10, 0x00eb},
	{10, 0x00dd},
	{10, 0x00bb},
	{10, 0x00d5},
	{10, 0x00ab},
	{11, 0x0177},
	{10, 0x00f5},
	{9, 0x007b},
	{9, 0x005b},
	{11, 0x01d5},
	{11, 0x015b},
	{11, 0x0175},
	{11, 0x015d},
	{11, 0x01bd},
	{12, 0x02d5},
	{11, 0x01df},
	{11, 0x01ef},
	{11, 0x01bf},
	{12, 0x03f5},
	{11, 0x016d},
	{12, 0x03ed},
	{6, 0x000d},
	{9, 0x007d},
	{8, 0x003d},
	{8, 0x002d},
	{4, 0x0003},
	{8, 0x002f},
	{9, 0x006d},
	{8, 0x0035},
	{6, 0x000b},
	{11, 0x01af},
	{10, 0x00fd},
	{7, 0x001b},
	{8, 0x0037},
	{6, 0x000f},
	{5, 0x0007},
	{8, 0x003f},
	{11, 0x01fb},
	{7, 0x0015},
	{7, 0x001d},
	{5, 0x0005},
	{8, 0x003b},
	{9, 0x006f},
	{9, 0x006b},
	{10, 0x00fb},
	{9, 0x005d},
	{11, 0x0157},
	{12, 0x03b5},
	{11, 0x01bb},
	{12, 0x02b5},
	{12, 0x03ad},
	{12, 0x02b7},
	{12, 0x02f7},
	{12, 0x03f7},
	{12, 0x02af},
	{12, 0x03af},
	{12, 0x036f},
	{12, 0x02ef},
	{12, 0x03ef},
	{12, 0x035f},
	{12, 0x02df},
	{12, 0x03df},
	{12, 0x02bf},
	{12, 0x03bf},
	{12, 0x037f},
	{12, 0x02ff},
	{12, 0x03ff},
	{13, 0x0555},
	{13, 0x0755},
	{13, 0x06d5},
	{13, 0x05d5},
	{13, 0x07d5},
	{13, 0x06b5},
	{13, 0x05b5},
	{13, 0x07b5},
	{13, 0x0575},
	{13, 0x0775},
	{13, 0x06f5},
	{13, 0x05f5},
	{13, 0x07f5},
	{13, 0x06ad},
	{13, 0x05ad},
	{13, 0x07ad},
	{13, 0x056d},
	{13, 0x076d},
	{13, 0x06ed},
	{13, 0x05ed},
	{13, 0x07ed},
	{13, 0x055d},
	{13, 0x075d},
	{13, 0x06dd},
	{13, 0x05dd},
	{13, 0x07dd},
	{13, 0x06bd},
	{13, 0x05bd},
	{13, 0x07bd},
	{13, 0x057d},
	{13, 0x077d},
	{13, 0x06fd},
	{13, 0x05fd},
	{13, 0x07fd},
	{13, 0x06ab},
	{13, 0x05ab},
	{13, 0x07ab},
	{13, 0x056b},
	{13, 0x076b},
	{13, 0x06eb},
	{13, 0x05eb},
	{13, 0x07eb},
	{13, 0x055b},
	{13, 0x075b},
	{13, 0x06db},
	{13, 0x05db},
	{13, 0x07db},
	{13, 0x06bb},
	{13, 0x05bb},
	{13, 0x07bb},
	{13, 0x057b},
	{13, 0x077b},
	{13, 0x06fb},
	{13, 0x05fb},
	{13, 0x07fb},
	{13, 0x0557},
	{13, 0x0757},
	{13, 0x06d7},
	{13, 0x05d7},
	{13, 0x07d7},
	{13, 0x06b7},
	{13, 0x05b7},
	{13, 0x07b7},
	{13, 0x0577},
	{13, 0x0777},
	{13, 0x06f7},
	{13, 0x05f7},
	{13, 0x07f7},
	{13, 0x06af},
	{13, 0x05af},
	{13, 0x07af},
	{13, 0x056f},
	{13, 0x076f},
	{13, 0x06ef},
	{13, 0x05ef},
	{13, 0x07ef},
	{13, 0x055f},
	{13, 0x075f},
	{13, 0x06df},
	{13, 0x05df},
	{13, 0x07df},
	{13, 0x06bf},
	{13, 0x05bf},
	{13, 0x07bf},
	{13, 0x057f},
	{13, 0x077f},
	{13, 0x06ff},
	{13, 0x05ff},
	{13, 0x07ff},
	{14, 0x0d55},
	{14, 0x0b55},
	{14, 0x0f55},
	{14, 0x0ad5},
	{14, 0x0ed5},
	{14, 0x0dd5},
	{14, 0x0bd5},
	{14, 0x0fd5},
	{14, 0x0ab5},
	{14, 0x0eb5},
	{14, 0x0db5},
	{14, 0x0bb5},
	{14, 0x0fb5},
	{14, 0x0d75},
	{14, 0x0b75},
	{14, 0x0f75},
	{14, 0x0af5},
	{14, 0x0ef5},
	{14, 0x0df5},
	{14, 0x0bf5},
	{14, 0x0ff5},
	{14, 0x0aad},
	{14, 0x0ead},
	{14, 0x0dad},
}

// EncodeVaricode returns the codeword for one byte (spec §4.5).
func EncodeVaricode(b byte) Burst {
	return varicodeTable[b]
}

// DecodeVaricode is the inverse of EncodeVaricode, used only by tests
// (property P3): given a {length, bits} codeword, returns the byte it
// encodes and whether a match was found.
func DecodeVaricode(burst Burst) (byte, bool) {
	for i, entry := range varicodeTable {
		if entry.Length == burst.Length && entry.Bits == burst.Bits {
			return byte(i), true
		}
	}

	return 0, false
}

// validateNoConsecutiveZeros checks the self-synchronization property of
// one stored codeword: its last two bits (LSB first) are the zero bits of
// the inter-character gap, and no two adjacent bits before them are both
// zero. Used by the property tests.
func validateNoConsecutiveZeros(b Burst) error {
	if b.Length < 3 || b.Bits>>(b.Length-2) != 0 {
		return fmt.Errorf("psk31: codeword %v does not end in the two-zero gap", b)
	}

	prevZero := false
	for i := 0; i < b.Length-2; i++ {
		bit := (b.Bits >> i) & 1
		if bit == 0 {
			if prevZero {
				return fmt.Errorf("psk31: codeword %v has two consecutive zero bits at position %d", b, i)
			}
			prevZero = true
		} else {
			prevZero = false
		}
	}

	return nil
}
