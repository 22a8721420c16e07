package state

import (
	"clapbattle/internal/clap"
	"clapbattle/internal/domain"
)

// sessionObserver forwards progress of one battle listening window while
// its token is current.
type sessionObserver struct {
	m     *Manager
	token uint64
}

func (o *sessionObserver) sink() EventSink {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	if o.m.session != o.token {
		return nil
	}
	return o.m.sink
}

func (o *sessionObserver) Countdown(label domain.Label, n int) {
	if sink := o.sink(); sink != nil {
		sink.Countdown(label, n)
	}
}

func (o *sessionObserver) Meter(r clap.Reading) {
	if sink := o.sink(); sink != nil {
		sink.Meter(r)
	}
}

func (o *sessionObserver) TimeLeft(label domain.Label, seconds int) {
	if sink := o.sink(); sink != nil {
		sink.TimeLeft(label, seconds)
	}
}

func (o *sessionObserver) Completed(score domain.ClapScore) {
	o.m.completeClap(o.token, score)
}

// soundcheckObserver forwards soundcheck progress.
type soundcheckObserver struct {
	m     *Manager
	token uint64
}

func (o *soundcheckObserver) sink() EventSink {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	if o.m.soundcheck != o.token {
		return nil
	}
	return o.m.sink
}

func (o *soundcheckObserver) Countdown(label domain.Label, n int) {
	if sink := o.sink(); sink != nil {
		sink.Countdown(label, n)
	}
}

func (o *soundcheckObserver) Meter(r clap.Reading) {
	if sink := o.sink(); sink != nil {
		sink.Meter(r)
	}
}

func (o *soundcheckObserver) TimeLeft(label domain.Label, seconds int) {
	if sink := o.sink(); sink != nil {
		sink.TimeLeft(label, seconds)
	}
}

func (o *soundcheckObserver) Completed(score domain.ClapScore) {
	if sink := o.sink(); sink != nil {
		sink.SoundcheckDone(score)
	}
}

type nopSink struct{}

func (nopSink) PhaseChanged(Snapshot)           {}
func (nopSink) Countdown(domain.Label, int)     {}
func (nopSink) Meter(clap.Reading)              {}
func (nopSink) TimeLeft(domain.Label, int)      {}
func (nopSink) Scored(domain.ClapScore)         {}
func (nopSink) Announced(string)                {}
func (nopSink) SoundcheckDone(domain.ClapScore) {}
