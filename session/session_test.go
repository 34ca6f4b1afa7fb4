package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/agentcrypt/eventbus"
	"github.com/sage-x-project/agentcrypt/identity"
)

func newTestPair(t *testing.T) (*identity.IdentityKeyPair, *identity.IdentityKeyPair) {
	t.Helper()
	a, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)
	b, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)
	return a, b
}

func TestComputeID_Commutative(t *testing.T) {
	a, b := newTestPair(t)
	require.Equal(t, ComputeID(a.VerifyKey, b.VerifyKey), ComputeID(b.VerifyKey, a.VerifyKey))
}

func TestEstablish_BothSidesAgreeOnSharedSecret(t *testing.T) {
	a, b := newTestPair(t)
	bus := eventbus.New()
	storeA := NewStore(Config{}, bus)
	storeB := NewStore(Config{}, bus)
	defer storeA.Close()
	defer storeB.Close()

	sessA, err := Establish(storeA, a, "did:key:zB", b.VerifyKey)
	require.NoError(t, err)
	sessB, err := Establish(storeB, b, "did:key:zA", a.VerifyKey)
	require.NoError(t, err)

	require.Equal(t, sessA.ID(), sessB.ID())
	require.Equal(t, sessA.SharedSecret(), sessB.SharedSecret())
}

func TestEstablish_ReusesExistingSession(t *testing.T) {
	a, b := newTestPair(t)
	bus := eventbus.New()
	store := NewStore(Config{}, bus)
	defer store.Close()

	first, err := Establish(store, a, "did:key:zB", b.VerifyKey)
	require.NoError(t, err)
	second, err := Establish(store, a, "did:key:zB", b.VerifyKey)
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, store.Count())
}

func TestEstablish_EmitsSessionCreated(t *testing.T) {
	a, b := newTestPair(t)
	bus := eventbus.New()
	store := NewStore(Config{}, bus)
	defer store.Close()

	var got eventbus.Event
	bus.Subscribe(eventbus.SessionCreated, func(e eventbus.Event) { got = e })

	sess, err := Establish(store, a, "did:key:zB", b.VerifyKey)
	require.NoError(t, err)
	require.Equal(t, sess.ID(), got.SessionID)
}

func TestNextNonceCounter_Monotonic(t *testing.T) {
	a, b := newTestPair(t)
	bus := eventbus.New()
	store := NewStore(Config{}, bus)
	defer store.Close()

	sess, err := Establish(store, a, "did:key:zB", b.VerifyKey)
	require.NoError(t, err)

	var prev uint32
	for i := 0; i < 10; i++ {
		n := sess.NextNonceCounter()
		require.Greater(t, n, prev)
		prev = n
	}
}

func TestStore_CapacityEviction(t *testing.T) {
	bus := eventbus.New()
	store := NewStore(Config{MaxSessions: 2}, bus)
	defer store.Close()

	a, _ := identity.GenerateIdentityKeyPair()
	b, _ := identity.GenerateIdentityKeyPair()
	c, _ := identity.GenerateIdentityKeyPair()
	d, _ := identity.GenerateIdentityKeyPair()

	s1, err := Establish(store, a, "b", b.VerifyKey)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = Establish(store, c, "d", d.VerifyKey)
	require.NoError(t, err)
	require.Equal(t, 2, store.Count())

	e, _ := identity.GenerateIdentityKeyPair()
	_, err = Establish(store, a, "e", e.VerifyKey)
	require.NoError(t, err)

	require.LessOrEqual(t, store.Count(), 2)
	_, stillThere := store.Get(s1.ID())
	require.False(t, stillThere)
}

func TestStore_GetExpiresIdleSession(t *testing.T) {
	bus := eventbus.New()
	store := NewStore(Config{SessionTimeout: time.Millisecond}, bus)
	defer store.Close()

	a, b := newTestPair(t)
	sess, err := Establish(store, a, "did:key:zB", b.VerifyKey)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, ok := store.Get(sess.ID())
	require.False(t, ok)
}
