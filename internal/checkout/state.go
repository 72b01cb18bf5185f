package checkout

import (
	"errors"
	"net/url"
	"sync"
)

// Flags mirror the success/cancel query parameters the payment provider
// appends to its return URLs. Both default to false.
type Flags struct {
	Success bool
	Cancel  bool
}

// ParseFlags reads the flags from URL query values. Anything but the literal
// "true" is treated as false.
func ParseFlags(values url.Values) Flags {
	return Flags{
		Success: values.Get("success") == "true",
		Cancel:  values.Get("cancel") == "true",
	}
}

// Values encodes the flags with clear-on-default semantics: false values are
// omitted entirely so a reset flag disappears from the URL.
func (f Flags) Values() url.Values {
	values := url.Values{}
	if f.Success {
		values.Set("success", "true")
	}
	if f.Cancel {
		values.Set("cancel", "true")
	}
	return values
}

// Set reports whether either flag is raised.
func (f Flags) Set() bool {
	return f.Success || f.Cancel
}

// Phase is the position of one checkout flow in its lifecycle.
type Phase int

const (
	// PhaseIdle means no purchase is in flight.
	PhaseIdle Phase = iota
	// PhasePurchasing means a hosted session is being created right now.
	PhasePurchasing
	// PhaseAwaitingRedirect means a hosted session exists and the buyer is
	// off at the payment page.
	PhaseAwaitingRedirect
	// PhaseReconciling means a redirect came back and its effects are being
	// applied.
	PhaseReconciling
)

// ErrPurchaseInFlight rejects a second purchase while one is pending.
var ErrPurchaseInFlight = errors.New("a purchase is already in flight")

// Machine serializes one owner's checkout flow so session creation and
// reconciliation each run at most once at a time. Only active work blocks:
// a buyer who abandons the payment page (awaiting-redirect with no flags
// ever coming back) may always start a fresh purchase. Observing flags a
// second time is harmless: the first reconcile reset them, so the machine
// is idle and the flags gone.
type Machine struct {
	mu    sync.Mutex
	phase Phase
}

// BeginPurchase claims the purchase slot. A session still being created or
// a redirect being reconciled refuses the duplicate submission; an
// abandoned awaiting-redirect flow is superseded, never blocked on.
func (m *Machine) BeginPurchase() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhasePurchasing || m.phase == PhaseReconciling {
		return ErrPurchaseInFlight
	}
	m.phase = PhasePurchasing
	return nil
}

// AwaitRedirect records that the session was handed to the buyer; the flow
// is now dormant until a redirect reconciles or a new purchase supersedes.
func (m *Machine) AwaitRedirect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = PhaseAwaitingRedirect
}

// BeginReconcile claims the reconciliation slot. It returns false when a
// reconcile is already running, making the operation run-at-most-once.
// Entering from idle is allowed: the redirect may land on a process that
// never saw the purchase.
func (m *Machine) BeginReconcile() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseReconciling {
		return false
	}
	m.phase = PhaseReconciling
	return true
}

// Finish returns the machine to idle.
func (m *Machine) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = PhaseIdle
}

// Dormant reports whether the machine blocks nothing: idle, or parked at
// the payment page where only the redirect (or a superseding purchase)
// moves it along.
func (m *Machine) Dormant() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == PhaseIdle || m.phase == PhaseAwaitingRedirect
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}
