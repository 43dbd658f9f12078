package authsdk

import (
	"context"
	"time"
)

// Inactivity expiry. The UI must call ResetInactivityTimer on user activity
// (input, navigation); the Manager only owns the timer.

// ArmInactivityTimer schedules an automatic logout after d without activity.
// Any pending timer is cancelled first. It has no effect while the active
// credential is remembered or when no credential is held, but d is kept and
// applied to credentials set later. d <= 0 disables the timer.
func (m *Manager) ArmInactivityTimer(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.idle = d
	m.armLocked()
}

// ResetInactivityTimer cancels the pending timer and schedules a new one with
// the duration given to ArmInactivityTimer.
func (m *Manager) ResetInactivityTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.armLocked()
}

// InactivityDeadline returns when the pending timer fires.
func (m *Manager) InactivityDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer == nil {
		return time.Time{}, false
	}
	return m.deadline, true
}

// armLocked replaces the pending timer. Caller holds m.mu.
func (m *Manager) armLocked() {
	m.cancelTimerLocked()

	if m.idle <= 0 || m.cred == nil || m.cred.Remember {
		return
	}

	m.timerSeq++
	seq, gen := m.timerSeq, m.gen
	m.deadline = time.Now().Add(m.idle)
	m.timer = m.sched.AfterFunc(m.idle, func() { m.onIdle(seq, gen) })
}

// cancelTimerLocked stops the pending timer, if any. Caller holds m.mu.
func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.deadline = time.Time{}
}

func (m *Manager) onIdle(seq, gen uint64) {
	m.mu.Lock()
	// A timer that was replaced, or armed for an older credential, is stale.
	// Checked and cleared under one lock.
	if seq != m.timerSeq || gen != m.gen || m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.clearLocked(StateExpired)
	m.mu.Unlock()

	if err := m.finishExpiry(context.Background(), "inactivity"); err != nil {
		m.logger.Error("failed to clear session after inactivity", "error", err)
	}
}
