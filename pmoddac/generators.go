package pmoddac

import (
	"context"

	"github.com/nasa-jpl/pmoddac/ad5628"
	"github.com/nasa-jpl/pmoddac/mailbox"
)

// Fixed writes a single value to ch.  The only error is ctx's.
func (d *Device) Fixed(ctx context.Context, ch ad5628.Channel, value uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.send(ad5628.Update(ch, value))
	return nil
}

// Triangle sweeps ch from 0 to full scale and back, cycles times.  A cycle is
// 2*ad5628.Steps frames, full scale appearing twice at the turn.  If delay is
// nonzero, the device waits delay microseconds after every frame.
//
// cycles == 0 sweeps until ctx is done.  ctx is checked before every frame;
// the error returned is ctx's, or nil once the last cycle is sent.
func (d *Device) Triangle(ctx context.Context, ch ad5628.Channel, cycles uint8, delay uint16) error {
	forever := cycles == 0
	for n := 0; forever || n < int(cycles); n++ {
		for s := 0; s < ad5628.Steps; s++ {
			if err := d.triangleStep(ctx, ch, uint16(s), delay); err != nil {
				return err
			}
		}
		for s := ad5628.MaxDN; s >= 0; s-- {
			if err := d.triangleStep(ctx, ch, uint16(s), delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Device) triangleStep(ctx context.Context, ch ad5628.Channel, s uint16, delay uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.send(ad5628.Update(ch, s))
	if delay > 0 {
		d.delay.Delay(delay)
	}
	return nil
}

// Arbitrary plays slots 0..length-1 of the waveform buffer to ch, wrapping,
// until ctx is done.  Each slot holds two samples, the high half is sent
// first.  There is no pacing between samples.  Arbitrary always returns ctx's
// error.  A Device without a waveform buffer plays nothing, like length 0.
func (d *Device) Arbitrary(ctx context.Context, ch ad5628.Channel, length int) error {
	if d.src == nil {
		length = 0
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := 0; i < length; i++ {
			hi, lo := mailbox.SplitSlot(d.src.Slot(i))
			if err := ctx.Err(); err != nil {
				return err
			}
			d.send(ad5628.Update(ch, hi))
			if err := ctx.Err(); err != nil {
				return err
			}
			d.send(ad5628.Update(ch, lo))
		}
	}
}
