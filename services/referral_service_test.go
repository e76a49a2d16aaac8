package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddReferral(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.register(t, "A", "")
	r := l.register(t, "R", "")

	acct, tier, err := l.AddReferral(ctx, a.ID, "R")
	require.NoError(t, err)
	assert.Nil(t, tier)
	assert.Equal(t, []string{"R"}, acct.Referrals)
	assertBalance(t, 10, acct)

	referred := l.reload(t, r.ID)
	require.NotNil(t, referred.Referrer)
	assert.Equal(t, "A", *referred.Referrer)

	_, _, err = l.AddReferral(ctx, a.ID, "R")
	assert.ErrorIs(t, err, ErrDuplicateReferral)
	assert.Len(t, l.reload(t, a.ID).Referrals, 1)
}

func TestAddReferral_Errors(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.register(t, "A", "")

	tests := []struct {
		name     string
		username string
		err      error
	}{
		{"empty", "  ", ErrMissingField},
		{"self", "A", ErrSelfReferral},
		{"unknown", "ghost", ErrReferralNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := l.AddReferral(ctx, a.ID, tt.username)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, _, err := l.AddReferral(ctx, 404, "A")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assertBalance(t, 0, l.reload(t, a.ID))
}

func TestAddReferral_OverwritesReferrer(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	l.register(t, "first", "")
	b := l.register(t, "second", "")
	r := l.register(t, "R", "first")

	_, _, err := l.AddReferral(ctx, b.ID, "R")
	require.NoError(t, err)
	assert.Equal(t, "second", *l.reload(t, r.ID).Referrer)
}

func TestAddReferral_TierPaysOnceAtExactThreshold(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.register(t, "A", "")
	for i := 1; i <= 11; i++ {
		l.register(t, fmt.Sprintf("r%02d", i), "")
	}

	for i := 1; i <= 9; i++ {
		_, tier, err := l.AddReferral(ctx, a.ID, fmt.Sprintf("r%02d", i))
		require.NoError(t, err)
		assert.Nil(t, tier)
	}

	acct, tier, err := l.AddReferral(ctx, a.ID, "r10")
	require.NoError(t, err)
	require.NotNil(t, tier)
	assert.Equal(t, 10, tier.Count)
	assertBalance(t, 10*10+100, acct)
	assert.Equal(t, []int{10}, acct.PaidTiers)

	acct, tier, err = l.AddReferral(ctx, a.ID, "r11")
	require.NoError(t, err)
	assert.Nil(t, tier)
	assertBalance(t, 11*10+100, acct)
}

func TestRegister_ReferralsCountTowardTiers(t *testing.T) {
	l := newTestLedger(t)
	v := l.register(t, "V", "")
	for i := 1; i <= 10; i++ {
		l.register(t, fmt.Sprintf("u%02d", i), "V")
	}

	got := l.reload(t, v.ID)
	assert.Equal(t, 10, got.ReferralCount())
	assertBalance(t, 200, got)
	assert.True(t, got.TierPaid(10))
}

func TestTierReachedAndNextMilestone(t *testing.T) {
	l := newTestLedger(t)

	assert.Nil(t, l.TierReached(9))
	require.NotNil(t, l.TierReached(100))
	assert.True(t, l.TierReached(100).Bonus.Equal(dec(1500)))

	a := l.register(t, "A", "")
	next := l.NextMilestone(a)
	require.NotNil(t, next)
	assert.Equal(t, 10, next.Count)

	l.makeEligible(t, a.ID)
	next = l.NextMilestone(l.reload(t, a.ID))
	require.NotNil(t, next)
	assert.Equal(t, 20, next.Count)

	a.Referrals = make([]string, 100)
	assert.Nil(t, l.NextMilestone(a))
}
