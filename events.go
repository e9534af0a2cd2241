package lst

// LstEvent enumerates the event classes found in the binary section of an
// LST file. An event word is one of: a timer tick, a synchronisation
// marker, or an ADC hit carrying a variable length payload. Words with bit
// 30 set that are neither timer ticks nor synchronisation markers are not
// events at all (see InspectEvent).
type LstEvent int

const (
	TIMER LstEvent = iota
	SYNCHRON
	ADC
)

// InspectEvent classifies a 32-bit little-endian event word.
// The order of the tests matters; the three high-bit classes are mutually
// exclusive in well formed streams, and testing for SYNCHRON before the
// hit fallthrough protects 0xFFFFFFFF from being misread as a hit.
// Words flagged as not-an-event (bit 30) return ok = false.
// For ADC events, has_dummy reports whether bit 31 is set, meaning a 16-bit
// dummy word was inserted after the event word for alignment.
func InspectEvent(word uint32) (event LstEvent, has_dummy bool, ok bool) {
	if word>>16&0xFFFF == 0x4000 {
		return TIMER, false, true
	} else if word == 0xFFFFFFFF {
		return SYNCHRON, false, true
	} else if word>>30&1 == 1 {
		// not an event
		return 0, false, false
	}

	has_dummy = word>>31&1 == 1

	return ADC, has_dummy, true
}

// AdcNum expands the low 16 bits of a hit word into the list of ADC flags
// that declared a payload slot.
// The expansion is in ascending bit order (least significant first); the
// 16-bit payload values that follow the hit word are positionally aligned
// to this order.
func AdcNum(word uint32) []uint32 {
	// we know there can be at most 16 values
	adcnum := make([]uint32, 0, 16)

	for bits := 0; bits < 16; bits++ {
		if word>>bits&1 == 1 {
			adcnum = append(adcnum, uint32(1)<<bits)
		}
	}

	return adcnum
}
