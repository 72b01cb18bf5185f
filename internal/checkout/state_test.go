package checkout

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlagsDefaultFalse(t *testing.T) {
	flags := ParseFlags(url.Values{})
	require.False(t, flags.Success)
	require.False(t, flags.Cancel)
	require.False(t, flags.Set())
}

func TestFlagsParse(t *testing.T) {
	flags := ParseFlags(url.Values{"success": {"true"}})
	require.True(t, flags.Success)
	require.False(t, flags.Cancel)

	flags = ParseFlags(url.Values{"cancel": {"true"}, "success": {"1"}})
	require.False(t, flags.Success, "only the literal true raises a flag")
	require.True(t, flags.Cancel)
}

func TestFlagsClearOnDefault(t *testing.T) {
	require.Equal(t, "", Flags{}.Values().Encode(), "reset flags vanish from the URL")
	require.Equal(t, "success=true", Flags{Success: true}.Values().Encode())
	require.Equal(t, "cancel=true", Flags{Cancel: true}.Values().Encode())
}

func TestMachinePurchaseInFlight(t *testing.T) {
	var m Machine
	require.NoError(t, m.BeginPurchase())
	require.ErrorIs(t, m.BeginPurchase(), ErrPurchaseInFlight, "session creation blocks a duplicate submission")

	m.Finish()
	require.NoError(t, m.BeginPurchase())
}

func TestMachineAbandonedFlowSuperseded(t *testing.T) {
	var m Machine
	require.NoError(t, m.BeginPurchase())
	m.AwaitRedirect()
	require.True(t, m.Dormant())

	// The buyer backed out of the payment page and no flags ever came back.
	// Starting over must not be refused.
	require.NoError(t, m.BeginPurchase())
	require.Equal(t, PhasePurchasing, m.Phase())
	require.False(t, m.Dormant())
}

func TestMachineReconcileBlocksPurchase(t *testing.T) {
	var m Machine
	require.True(t, m.BeginReconcile())
	require.ErrorIs(t, m.BeginPurchase(), ErrPurchaseInFlight)
	m.Finish()
	require.NoError(t, m.BeginPurchase())
}

func TestMachineReconcileRunsOnce(t *testing.T) {
	var m Machine
	require.NoError(t, m.BeginPurchase())
	require.True(t, m.BeginReconcile())
	require.False(t, m.BeginReconcile(), "second concurrent reconcile is refused")
	m.Finish()

	// A fresh process never saw the purchase but still reconciles.
	var fresh Machine
	require.True(t, fresh.BeginReconcile())
}
