package inputsrc

import "context"

// Fake is a Source double for tests: the test pushes reports onto its
// channels directly instead of a real device producing them.
type Fake struct {
	keyboard chan KeyboardReport
	mouse    chan MouseReport

	grabbed bool
	grabs   int
	ungrabs int
}

// NewFake builds a Fake with reasonably buffered channels so a test
// can push several reports before anything drains them.
func NewFake() *Fake {
	return &Fake{
		keyboard: make(chan KeyboardReport, 16),
		mouse:    make(chan MouseReport, 16),
	}
}

func (f *Fake) KeyboardReports(ctx context.Context) <-chan KeyboardReport { return f.keyboard }
func (f *Fake) MouseReports(ctx context.Context) <-chan MouseReport      { return f.mouse }

func (f *Fake) Grab() error {
	f.grabbed = true
	f.grabs++
	return nil
}

func (f *Fake) Ungrab() error {
	f.grabbed = false
	f.ungrabs++
	return nil
}

// PushKeyboard and PushMouse simulate one input event arriving from
// the OS.
func (f *Fake) PushKeyboard(r KeyboardReport) { f.keyboard <- r }
func (f *Fake) PushMouse(r MouseReport)       { f.mouse <- r }

// Close ends both streams; a test goroutine ranging over either
// channel observes it closed and returns.
func (f *Fake) Close() {
	close(f.keyboard)
	close(f.mouse)
}

// Grabbed, GrabCount and UngrabCount let tests assert the grab/ungrab
// discipline the supervisor is expected to follow.
func (f *Fake) Grabbed() bool   { return f.grabbed }
func (f *Fake) GrabCount() int  { return f.grabs }
func (f *Fake) UngrabCount() int { return f.ungrabs }
