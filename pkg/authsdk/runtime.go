package authsdk

import "time"

// Surfaces the client navigates to on its own.
const (
	LoginSurface   = "/login"
	LandingSurface = "/dashboard"
)

// Navigator performs client navigation. Targets are either a surface path or
// an absolute URL (for identity provider redirects).
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) { f(target) }

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}

// Timer is a cancellable scheduled task.
type Timer interface {
	// Stop cancels the task, reporting whether it was still pending.
	Stop() bool
}

// Scheduler runs f once after d. Tests substitute a manual implementation.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler schedules on the runtime timer.
type SystemScheduler struct{}

func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
