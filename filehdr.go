package movdemux

import "github.com/sirupsen/logrus"

// decodeFtyp decodes a File Type Box into the major/minor brand
// fields plus the list of compatible brands, per spec.md §4.D's ftyp
// bullet.
//
// Grounded on the teacher's Mp4FileTypeBox.DecodeHeader
// (core/box.go:513-540), including its "decode ftyp box" Infof line.
func decodeFtyp(log *logrus.Logger, b *box) (*FileType, error) {
	log.Infof("decode ftyp box, payload_len=%d", len(b.Payload))
	r := newReader(b.Payload)
	major, err := r.fourcc()
	if err != nil {
		return nil, err
	}
	minor, err := r.u32()
	if err != nil {
		return nil, err
	}

	ft := &FileType{MajorBrand: major, MinorVersion: minor}
	for r.remaining() >= 4 {
		brand, err := r.fourcc()
		if err != nil {
			break
		}
		ft.CompatibleBrands = append(ft.CompatibleBrands, brand)
	}
	log.Tracef("ftyp decoded: major=%s minor=%d compatible=%v", ft.MajorBrand, ft.MinorVersion, ft.CompatibleBrands)
	return ft, nil
}

// decodeMvhd decodes a Movie Header Box into its global time scale
// and duration, handling both the 32-bit (version 0) and 64-bit
// (version 1) forms, per spec.md §4.D's mvhd bullet. Only the two
// fields the rest of the demuxer needs are extracted; rate, matrix
// and the remaining fixed layout are skipped.
//
// Grounded on the teacher's Mp4MovieHeaderBox.DecodeHeader
// (core/box.go:599-665).
func decodeMvhd(log *logrus.Logger, b *box) (*MovieHeader, error) {
	log.Infof("decode mvhd box, payload_len=%d", len(b.Payload))
	r := newReader(b.Payload)
	version, _, err := readFullBoxHeader(r)
	if err != nil {
		return nil, err
	}

	var timeScale uint32
	var duration uint64

	if version == 1 {
		if err := r.skip(8 + 8); err != nil { // creation_time, modification_time
			return nil, err
		}
		if timeScale, err = r.u32(); err != nil {
			return nil, err
		}
		if duration, err = r.u64(); err != nil {
			return nil, err
		}
	} else {
		if err := r.skip(4 + 4); err != nil { // creation_time, modification_time
			return nil, err
		}
		if timeScale, err = r.u32(); err != nil {
			return nil, err
		}
		dur32, err := r.u32()
		if err != nil {
			return nil, err
		}
		duration = uint64(dur32)
	}

	log.Tracef("mvhd decoded: version=%d time_scale=%d duration=%d", version, timeScale, duration)
	return &MovieHeader{TimeScale: timeScale, Duration: duration}, nil
}
