package waveform

import (
	"io"

	"github.com/astrogo/fitsio"
)

// WriteFITS writes samples as a one dimensional 16-bit image, with metadata
// appended to the primary header
func WriteFITS(w io.Writer, metadata []fitsio.Card, dn []uint16) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(16, []int{len(dn)})
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}
	// 12-bit counts fit int16 without BZERO
	ints := make([]int16, len(dn))
	for i, v := range dn {
		ints[i] = int16(v)
	}
	err = im.Write(ints)
	if err != nil {
		return err
	}
	return fits.Write(im)
}

// ReadFITS reads back an image written by WriteFITS
func ReadFITS(r io.Reader) ([]uint16, error) {
	fits, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer fits.Close()
	im, ok := fits.HDU(0).(fitsio.Image)
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	axes := im.Header().Axes()
	if len(axes) == 0 || axes[0] == 0 {
		return []uint16{}, nil
	}
	// Read fills the slice in place; it must already hold the image
	ints := make([]int16, axes[0])
	if err := im.Read(&ints); err != nil {
		return nil, err
	}
	out := make([]uint16, len(ints))
	for i, v := range ints {
		out[i] = uint16(v)
	}
	return out, nil
}
