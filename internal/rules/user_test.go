package rules

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketkeeper/internal/manifold"
)

type fakeUsers struct {
	stats map[string]*manifold.UserStats
}

func (f *fakeUsers) UserStats(ctx context.Context, username string) (*manifold.UserStats, error) {
	if s, ok := f.stats[username]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no user %s", username)
}

func userEnv() *Env {
	return &Env{Users: &fakeUsers{stats: map[string]*manifold.UserStats{
		"alice": {
			Profit:        map[manifold.Timeframe]float64{manifold.AllTime: 1234.5, manifold.Monthly: -20},
			CreatedVolume: map[manifold.Timeframe]float64{manifold.AllTime: 9000},
		},
	}}}
}

func TestResolveToUserProfit(t *testing.T) {
	env := userEnv()

	got, err := (&ResolveToUserProfit{userRef{User: "alice"}}).Eval(context.Background(), env)
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, got.Num(), 1e-12)

	got, err = (&ResolveToUserProfit{userRef{User: "alice", Field: manifold.Monthly}}).Eval(context.Background(), env)
	require.NoError(t, err)
	assert.InDelta(t, -20, got.Num(), 1e-12)

	_, err = (&ResolveToUserProfit{userRef{User: "nobody"}}).Eval(context.Background(), env)
	assert.Error(t, err)
	_, err = (&ResolveToUserProfit{userRef{User: "alice"}}).Eval(context.Background(), &Env{})
	assert.Error(t, err)
}

func TestResolveToUserCreatedVolume(t *testing.T) {
	got, err := (&ResolveToUserCreatedVolume{userRef{User: "alice"}}).Eval(context.Background(), userEnv())
	require.NoError(t, err)
	assert.InDelta(t, 9000, got.Num(), 1e-12)
}
