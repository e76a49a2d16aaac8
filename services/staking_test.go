package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staking-ledger/models"
)

func TestStakingStatus(t *testing.T) {
	l := newTestLedger(t)
	now := l.clock.Now()
	a := &models.Account{Balance: dec(0), DepositAmount: dec(500)}

	st := l.StakingStatus(a, now)
	assert.Equal(t, models.StakingInactive, st.State)
	assert.Equal(t, "Need 10 referrals", st.Reason)

	for i := 0; i < 10; i++ {
		a.Referrals = append(a.Referrals, fmt.Sprintf("r%d", i))
	}
	a.DepositAmount = dec(99)
	st = l.StakingStatus(a, now)
	assert.Equal(t, models.StakingInactive, st.State)
	assert.Equal(t, "Deposit $100 to activate", st.Reason)

	a.DepositAmount = dec(100)
	st = l.StakingStatus(a, now)
	assert.Equal(t, models.StakingEligible, st.State)

	last := now.Add(-time.Hour)
	a.LastStakingReward = &last
	st = l.StakingStatus(a, now)
	assert.Equal(t, models.StakingActive, st.State)
	require.NotNil(t, st.NextRewardAt)
	assert.True(t, last.Add(24*time.Hour).Equal(*st.NextRewardAt))
}

func TestAccrueStaking_InactivePaysNothing(t *testing.T) {
	l := newTestLedger(t)
	a := l.register(t, "alice", "")
	l.fund(t, a.ID, 500)

	res, err := l.AccrueStaking(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Equal(t, models.StakingInactive, res.Status.State)
	assertBalance(t, 500, l.reload(t, a.ID))
}

func TestAccrueStaking_Lifecycle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.register(t, "alice", "")
	l.fund(t, a.ID, 100)
	l.makeEligible(t, a.ID)

	// Eligible -> Active on the first tick, paying exactly one reward
	res, err := l.AccrueStaking(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, models.StakingActive, res.Status.State)
	got := l.reload(t, a.ID)
	assertBalance(t, 101, got)
	require.NotNil(t, got.LastStakingReward)
	assert.True(t, l.clock.Now().Equal(*got.LastStakingReward))

	// same instant and just under a day: nothing
	for _, d := range []time.Duration{0, 23*time.Hour + 59*time.Minute} {
		l.clock.Advance(d)
		res, err = l.AccrueStaking(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, res.Paid)
	}
	assertBalance(t, 101, l.reload(t, a.ID))

	l.clock.Advance(time.Minute)
	res, err = l.AccrueStaking(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assertBalance(t, 102, l.reload(t, a.ID))

	// several days missed still pay one reward per tick
	l.clock.Advance(72 * time.Hour)
	res, err = l.AccrueStaking(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	got = l.reload(t, a.ID)
	assertBalance(t, 103, got)
	assert.True(t, l.clock.Now().Add(24*time.Hour).Equal(*res.Status.NextRewardAt))
}

func TestAccrueStaking_ViaRealReferrals(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.register(t, "A", "")
	for i := 1; i <= 11; i++ {
		l.register(t, fmt.Sprintf("r%02d", i), "")
		_, _, err := l.AddReferral(ctx, a.ID, fmt.Sprintf("r%02d", i))
		require.NoError(t, err)
	}
	l.fund(t, a.ID, 100)

	// 11 referrals at 10 each, the 10-tier bonus once, the deposit
	assertBalance(t, 110+100+100, l.reload(t, a.ID))

	res, err := l.AccrueStaking(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assertBalance(t, 311, l.reload(t, a.ID))
}

func TestAccrueStaking_UnknownAccount(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.AccrueStaking(context.Background(), 404)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
