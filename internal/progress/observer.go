package progress

import (
	"sync/atomic"
)

// Observer receives worker notifications. Tick fires once per finished item,
// Done once per run that completed. Implementations must be safe for
// concurrent use because the audio worker ticks from several goroutines.
type Observer interface {
	Tick()
	Done()
}

// Starter is implemented by observers that want the batch size before the
// first tick.
type Starter interface {
	Start(total int)
}

// StartOf calls Start on o when it implements Starter.
func StartOf(o Observer, total int) {
	if s, ok := o.(Starter); ok {
		s.Start(total)
	}
}

// LoginObserver receives the terminal outcome of a login check.
type LoginObserver interface {
	LoggedIn(credential string)
	LoginFailed()
}

// Nop returns an Observer that ignores every notification.
func Nop() Observer { return Funcs{} }

// Funcs adapts optional callbacks to Observer.
type Funcs struct {
	OnTick func()
	OnDone func()
}

// Tick calls OnTick when set.
func (f Funcs) Tick() {
	if f.OnTick != nil {
		f.OnTick()
	}
}

// Done calls OnDone when set.
func (f Funcs) Done() {
	if f.OnDone != nil {
		f.OnDone()
	}
}

// LoginFuncs adapts optional callbacks to LoginObserver.
type LoginFuncs struct {
	OnLoggedIn    func(credential string)
	OnLoginFailed func()
}

// LoggedIn calls OnLoggedIn when set.
func (f LoginFuncs) LoggedIn(credential string) {
	if f.OnLoggedIn != nil {
		f.OnLoggedIn(credential)
	}
}

// LoginFailed calls OnLoginFailed when set.
func (f LoginFuncs) LoginFailed() {
	if f.OnLoginFailed != nil {
		f.OnLoginFailed()
	}
}

type multi []Observer

// Multi fans notifications out to every non-nil observer in order.
func Multi(observers ...Observer) Observer {
	out := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multi) Start(total int) {
	for _, o := range m {
		StartOf(o, total)
	}
}

func (m multi) Tick() {
	for _, o := range m {
		o.Tick()
	}
}

func (m multi) Done() {
	for _, o := range m {
		o.Done()
	}
}

// Counter counts notifications. The zero value is ready to use.
type Counter struct {
	ticks atomic.Int64
	dones atomic.Int64
}

// Tick increments the tick count.
func (c *Counter) Tick() { c.ticks.Add(1) }

// Done increments the done count.
func (c *Counter) Done() { c.dones.Add(1) }

// Ticks returns the number of ticks seen.
func (c *Counter) Ticks() int64 { return c.ticks.Load() }

// Dones returns the number of done notifications seen.
func (c *Counter) Dones() int64 { return c.dones.Load() }
