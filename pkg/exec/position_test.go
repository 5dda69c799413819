package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairarb-go/pkg/market"
	"pairarb-go/pkg/types"
)

func testInst() *market.Instrument {
	return &market.Instrument{
		Symbol:     "ag2603",
		TickSize:   1.0,
		Multiplier: 1.0,
	}
}

func fill(side types.Side, price float64, qty int64, hit types.HitType) *Fill {
	return &Fill{Side: side, Price: price, Qty: qty, Hit: hit}
}

// net == long - short and at most one side held, for any fill sequence
func TestPositionSidesExclusive(t *testing.T) {
	inst := testInst()
	s := &PositionState{}

	seq := []*Fill{
		fill(types.Buy, 100, 10, types.HitStandard),
		fill(types.Sell, 101, 4, types.HitStandard),
		fill(types.Sell, 102, 10, types.HitStandard), // crosses through flat into short
		fill(types.Buy, 99, 2, types.HitStandard),
		fill(types.Sell, 103, 5, types.HitCross),
	}
	for _, f := range seq {
		s.ApplyFill(f, inst)
		assert.Equal(t, s.Long-s.Short, s.Net())
		assert.True(t, s.Long == 0 || s.Short == 0,
			"long=%d short=%d held simultaneously", s.Long, s.Short)
	}
	// 10 - 4 - 10 + 2 - 5 = -7
	assert.Equal(t, int64(-7), s.Net())
}

func TestAveragePriceConsistency(t *testing.T) {
	inst := testInst()
	s := &PositionState{}

	s.ApplyFill(fill(types.Buy, 100, 10, types.HitStandard), inst)
	s.ApplyFill(fill(types.Buy, 106, 5, types.HitStandard), inst)

	require.Equal(t, int64(15), s.Long)
	// (100*10 + 106*5) / 15 = 102
	assert.InDelta(t, 102.0, s.AvgLong, 1e-9)

	// closing does not move the entry average
	s.ApplyFill(fill(types.Sell, 110, 5, types.HitStandard), inst)
	assert.Equal(t, int64(10), s.Long)
	assert.InDelta(t, 102.0, s.AvgLong, 1e-9)
}

func TestRealisedPNLCloseThenOpen(t *testing.T) {
	inst := testInst()
	s := &PositionState{}

	s.ApplyFill(fill(types.Buy, 100, 10, types.HitStandard), inst)
	// sell 15: close 10 at +5 each, open short 5 at 105
	r := s.ApplyFill(fill(types.Sell, 105, 15, types.HitStandard), inst)

	assert.InDelta(t, 50.0, r, 1e-9)
	assert.InDelta(t, 50.0, s.RealisedPNL, 1e-9)
	assert.Equal(t, int64(0), s.Long)
	assert.Equal(t, int64(5), s.Short)
	assert.InDelta(t, 105.0, s.AvgShort, 1e-9)
	assert.InDelta(t, 0.0, s.AvgLong, 1e-9)

	// close the short at 103: +2 per lot
	r = s.ApplyFill(fill(types.Buy, 103, 5, types.HitStandard), inst)
	assert.InDelta(t, 10.0, r, 1e-9)
	assert.InDelta(t, 60.0, s.RealisedPNL, 1e-9)
	assert.Equal(t, int64(0), s.Net())
}

func TestRealisedPNLWithMultiplier(t *testing.T) {
	inst := testInst()
	inst.Multiplier = 15 // ag: 15 kg per lot
	s := &PositionState{}

	s.ApplyFill(fill(types.Buy, 7700, 2, types.HitStandard), inst)
	r := s.ApplyFill(fill(types.Sell, 7703, 2, types.HitStandard), inst)
	assert.InDelta(t, 3*2*15.0, r, 1e-9)
}

func TestNetposSplitByHitType(t *testing.T) {
	inst := testInst()
	s := &PositionState{}

	s.ApplyFill(fill(types.Buy, 100, 10, types.HitStandard), inst)
	s.ApplyFill(fill(types.Buy, 100, 3, types.HitImprove), inst)
	s.ApplyFill(fill(types.Sell, 50, 13, types.HitCross), inst)

	assert.Equal(t, int64(13), s.NetposPass)
	assert.Equal(t, int64(-13), s.NetposAgg)
	assert.Equal(t, int32(1), s.ImproveCount)
	assert.Equal(t, int32(1), s.CrossCount)
}

func TestUnrealisedMarkAgainstTouch(t *testing.T) {
	inst := testInst()
	s := &PositionState{}

	s.ApplyFill(fill(types.Buy, 100, 10, types.HitStandard), inst)

	// long marks against the bid
	inst.BidPx[0] = 103
	inst.AskPx[0] = 104
	s.CalculatePNL(inst)
	assert.InDelta(t, 30.0, s.UnrealisedPNL, 1e-9)
	assert.InDelta(t, 30.0, s.NetPNL, 1e-9)

	// drawdown tracks off the high-water mark
	inst.BidPx[0] = 101
	s.CalculatePNL(inst)
	assert.InDelta(t, 10.0, s.NetPNL, 1e-9)
	assert.InDelta(t, 30.0, s.MaxPNL, 1e-9)
	assert.InDelta(t, -20.0, s.Drawdown, 1e-9)
}

func TestTransactionCosts(t *testing.T) {
	inst := testInst()
	inst.CostRate = 0.0001
	inst.CostFlat = 1.5
	s := &PositionState{}

	s.ApplyFill(fill(types.Buy, 1000, 10, types.HitStandard), inst)
	// 1000*10*1*0.0001 + 10*1.5 = 1 + 15
	assert.InDelta(t, 16.0, s.TransTotal, 1e-9)

	s.ApplyFill(fill(types.Sell, 1000, 10, types.HitStandard), inst)
	assert.InDelta(t, 32.0, s.TransTotal, 1e-9)
	// flat round trip at the same price: gross 0, net = -costs
	assert.InDelta(t, -32.0, s.NetPNL, 1e-9)
}

// cash conservation: realised pnl is reconstructable from the fill log alone
func TestCashConservation(t *testing.T) {
	inst := testInst()
	s := &PositionState{}

	fills := []*Fill{
		fill(types.Buy, 100, 5, types.HitStandard),
		fill(types.Buy, 102, 5, types.HitStandard),
		fill(types.Sell, 105, 8, types.HitStandard),
		fill(types.Sell, 99, 4, types.HitStandard),
		fill(types.Buy, 98, 2, types.HitStandard),
	}
	total := 0.0
	for _, f := range fills {
		total += s.ApplyFill(f, inst)
	}
	assert.InDelta(t, total, s.RealisedPNL, 1e-9)

	// replay through an independent state gives the same number
	s2 := &PositionState{}
	replay := 0.0
	for _, f := range fills {
		replay += s2.ApplyFill(f, inst)
	}
	assert.InDelta(t, total, replay, 1e-9)
}
