package pair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairarb-go/pkg/exec"
	"pairarb-go/pkg/shm"
	"pairarb-go/pkg/types"
)

// 止损触发：一个事件内转平仓，撤被动单、两腿对手价平掉残余，
// 全平转 STOPPED，冷却期满自动恢复 RUNNING。
func TestStopLossSquareoffAndResume(t *testing.T) {
	c, now := newTestPair()
	c.Start()
	require.True(t, c.Activate())
	c.Thr1.StopLoss = 50

	tick(c, c.Leg2.Inst, 50, 51)
	tick(c, c.Leg1.Inst, 100, 101)

	// 已对冲的配对持仓：腿1多 10，腿2空 10
	c.Leg1.Pos.ApplyFill(&exec.Fill{Side: types.Buy, Price: 100, Qty: 10, Hit: types.HitStandard}, c.Leg1.Inst)
	c.Leg2.Pos.ApplyFill(&exec.Fill{Side: types.Sell, Price: 50, Qty: 10, Hit: types.HitCross}, c.Leg2.Inst)
	require.Equal(t, int64(0), c.NetExposure())

	// 腿1跌 10 个 tick：浮亏 -100 穿透止损线
	tick(c, c.Leg1.Inst, 90, 91)
	require.Equal(t, types.StateSquaringOff, c.State())

	sell1 := c.Leg1.Table.Asks[90.0]
	require.NotNil(t, sell1, "leg1 long must be sold at the bid")
	assert.Equal(t, int64(10), sell1.Qty)
	assert.Equal(t, types.HitCross, sell1.Hit)

	buy2 := c.Leg2.Table.Bids[51.0]
	require.NotNil(t, buy2, "leg2 short must be bought back at the ask")
	assert.Equal(t, int64(10), buy2.Qty)

	// 两腿平仓成交后到 STOPPED
	c.OnResponse(rsp(sell1.ID, shm.RespNewConfirm, 10, 90))
	c.OnResponse(rsp(sell1.ID, shm.RespTradeConfirm, 10, 90))
	assert.Equal(t, types.StateSquaringOff, c.State(), "leg2 still open")

	c.OnResponse(rsp(buy2.ID, shm.RespNewConfirm, 10, 51))
	c.OnResponse(rsp(buy2.ID, shm.RespTradeConfirm, 10, 51))
	assert.Equal(t, types.StateStopped, c.State())
	assert.Equal(t, int64(0), c.Leg1.Pos.NetposPass+c.Leg1.Pos.NetposAgg)
	assert.Equal(t, int64(0), c.Leg2.Pos.NetposAgg)

	// 冷却期内不动
	*now += 60_000
	tick(c, c.Leg1.Inst, 90, 91)
	assert.Equal(t, types.StateStopped, c.State())

	// 冷却期满恢复 RUNNING，且已实现亏损不再立刻触发止损
	*now += 900_000
	tick(c, c.Leg1.Inst, 90, 91)
	assert.Equal(t, types.StateRunning, c.State())
	tick(c, c.Leg1.Inst, 90, 91)
	assert.Equal(t, types.StateRunning, c.State(), "rebased pnl must not re-trip")
}

// 指令平仓先撤被动挂单，再平残余
func TestCommandedSquareoffCancelsQuotesFirst(t *testing.T) {
	c, _ := newTestPair()
	c.Start()
	require.True(t, c.Activate())
	warmPair(c)

	tick(c, c.Leg1.Inst, 47.5, 48.5)
	quote := c.Leg1.Table.Bids[47.5]
	require.NotNil(t, quote)
	c.OnResponse(rsp(quote.ID, shm.RespNewConfirm, 10, 47.5))

	c.Squareoff("operator")
	assert.Equal(t, types.StateSquaringOff, c.State())
	assert.Equal(t, types.StatusCancelPending, quote.Status)

	// 没仓位：挂单撤完即 STOPPED
	c.OnResponse(rsp(quote.ID, shm.RespCancelConfirm, 10, 0))
	assert.Equal(t, types.StateStopped, c.State())
}

// 指令平仓不带自动恢复
func TestCommandedSquareoffDoesNotResume(t *testing.T) {
	c, now := newTestPair()
	c.Start()
	tick(c, c.Leg2.Inst, 50, 51)
	tick(c, c.Leg1.Inst, 100, 101)

	c.Squareoff("operator")
	assert.Equal(t, types.StateStopped, c.State(), "flat book squares off immediately")

	*now += 10_000_000
	tick(c, c.Leg1.Inst, 100, 101)
	assert.Equal(t, types.StateStopped, c.State())
}

// 在途平仓单先抵扣，不重复下单
func TestFlattenDoesNotDuplicate(t *testing.T) {
	c, _ := newTestPair()
	c.Start()
	tick(c, c.Leg2.Inst, 50, 51)
	tick(c, c.Leg1.Inst, 100, 101)
	c.Leg1.Pos.ApplyFill(&exec.Fill{Side: types.Buy, Price: 100, Qty: 10, Hit: types.HitStandard}, c.Leg1.Inst)

	c.Squareoff("operator")
	require.Equal(t, 1, c.Leg1.Table.Len())

	// 后续行情不再追加平仓单
	tick(c, c.Leg1.Inst, 100, 101)
	tick(c, c.Leg1.Inst, 99, 100)
	assert.Equal(t, 1, c.Leg1.Table.Len())
}
