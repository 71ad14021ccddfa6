package movdemux

// readFullBoxHeader reads the 1-byte version + 3-byte flags header
// that prefixes every ISO-BMFF FullBox payload (stsz, stco, stsc,
// stts, stss, mvhd, mdhd, hdlr, ...).
//
// Grounded on the teacher's Mp4FullBox.DecodeHeader (core/box.go:433-442),
// which instead reads a combined 32-bit word and masks version out of
// its top byte; this reads version and flags as the two separate
// fields the ISO-BMFF grammar actually defines.
func readFullBoxHeader(r *reader) (version uint8, flags uint32, err error) {
	version, err = r.u8()
	if err != nil {
		return 0, 0, err
	}
	flags, err = r.u24()
	if err != nil {
		return 0, 0, err
	}
	return version, flags, nil
}
