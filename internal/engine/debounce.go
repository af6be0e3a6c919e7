package engine

import "time"

// Stopper cancels a scheduled callback.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it via realAfterFunc.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Debounce is a one-shot, re-armable countdown. Every Arm and Cancel bumps a
// generation number; a callback carrying an older generation is stale and Expire
// refuses it. Debounce has no lock of its own: the owner serialises all calls.
type Debounce struct {
	afterFunc AfterFunc
	gen       uint64
	timer     Stopper
	armed     bool
}

// NewDebounce creates a Debounce scheduling with afterFunc (time.AfterFunc when nil).
func NewDebounce(afterFunc AfterFunc) *Debounce {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &Debounce{afterFunc: afterFunc}
}

// Arm starts a countdown of d, superseding any running one. fire receives the
// generation it was armed with.
func (d *Debounce) Arm(dur time.Duration, fire func(gen uint64)) uint64 {
	d.stop()
	d.gen++
	gen := d.gen
	d.armed = true
	d.timer = d.afterFunc(dur, func() { fire(gen) })
	return gen
}

// Cancel stops the running countdown. Calling it with nothing armed is a no-op.
func (d *Debounce) Cancel() {
	if !d.armed {
		return
	}
	d.stop()
	d.gen++
	d.armed = false
}

// Expire consumes a natural expiry. It reports false when gen has been superseded
// or cancelled.
func (d *Debounce) Expire(gen uint64) bool {
	if !d.armed || gen != d.gen {
		return false
	}
	d.armed = false
	d.timer = nil
	return true
}

// Armed reports whether a countdown is running.
func (d *Debounce) Armed() bool { return d.armed }

func (d *Debounce) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
