package pair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairarb-go/pkg/exec"
	"pairarb-go/pkg/shm"
	"pairarb-go/pkg/types"
)

// hedgeFixture 两腿盘口就位、敞口 +10 的活跃策略
func hedgeFixture(t *testing.T) (*Controller, *int64) {
	t.Helper()
	c, now := newTestPair()
	c.Start()
	require.True(t, c.Activate())
	c.Leg1.Pos.NetposPass = 10
	tick(c, c.Leg1.Inst, 100, 101)
	return c, now
}

// cycleCancel 模拟未成交的追单：撤掉在途主动单并回撤单确认，
// 回报处理里会立刻按阶梯重报。
func cycleCancel(t *testing.T, c *Controller) {
	t.Helper()
	tick(c, c.Leg2.Inst, 50, 51)
	var pending []*exec.Order
	c.Leg2.Table.Each(func(ord *exec.Order) {
		if ord.Status == types.StatusCancelPending {
			pending = append(pending, ord)
		}
	})
	require.Len(t, pending, 1)
	c.OnResponse(rsp(pending[0].ID, shm.RespCancelConfirm, pending[0].OpenQty, 0))
}

func confirmAsk(t *testing.T, c *Controller, px float64) *exec.Order {
	t.Helper()
	ord := c.Leg2.Table.Asks[px]
	require.NotNil(t, ord, "expected hedge order at %v", px)
	c.OnResponse(rsp(ord.ID, shm.RespNewConfirm, ord.OpenQty, px))
	return ord
}

// 追单阶梯：50、49、48、45（slop 5），第五次追不上转平仓
func TestHedgeLadderEscalation(t *testing.T) {
	c, now := hedgeFixture(t)

	tick(c, c.Leg2.Inst, 50, 51)
	confirmAsk(t, c, 50.0)
	assert.Equal(t, int64(0), c.NetExposure())

	*now += 100
	cycleCancel(t, c)
	confirmAsk(t, c, 49.0)

	*now += 100
	cycleCancel(t, c)
	confirmAsk(t, c, 48.0)

	*now += 100
	cycleCancel(t, c)
	confirmAsk(t, c, 45.0)

	*now += 100
	cycleCancel(t, c)
	assert.Equal(t, types.StateSquaringOff, c.State(), "exhausted ladder must square off")

	// 平仓流程直接对腿1多头残余下对手价卖单
	sell := c.Leg1.Table.Asks[100.0]
	require.NotNil(t, sell)
	assert.Equal(t, types.Sell, sell.Side)
	assert.Equal(t, int64(10), sell.Qty)
	assert.Equal(t, types.HitCross, sell.Hit)
}

// 窗口过期后重新从对手价开始
func TestHedgeWindowExpiryResetsLadder(t *testing.T) {
	c, now := hedgeFixture(t)

	tick(c, c.Leg2.Inst, 50, 51)
	confirmAsk(t, c, 50.0)

	*now += 100
	cycleCancel(t, c)
	confirmAsk(t, c, 49.0)

	// 超出 500ms 窗口，fresh 重报对手价
	*now += 600
	cycleCancel(t, c)
	ord := c.Leg2.Table.Asks[50.0]
	require.NotNil(t, ord, "fresh send must go back to the touch")
	assert.Equal(t, 1, c.aggRepeat)
}

// 成交把阶梯打回起点
func TestTradeConfirmResetsLadder(t *testing.T) {
	c, now := hedgeFixture(t)

	tick(c, c.Leg2.Inst, 50, 51)
	confirmAsk(t, c, 50.0)

	*now += 100
	cycleCancel(t, c)
	ord := confirmAsk(t, c, 49.0)
	require.Equal(t, 2, c.aggRepeat)

	c.OnResponse(rsp(ord.ID, shm.RespTradeConfirm, 4, 49))
	assert.Equal(t, 1, c.aggRepeat)
	assert.Equal(t, int64(-4), c.Leg2.Pos.NetposAgg)
	assert.Equal(t, int64(0), c.NetExposure(), "partial fill still netted by the resting remainder")
}

// 敞口换方向：买侧对冲打卖一
func TestHedgeSideFlip(t *testing.T) {
	c, _ := newTestPair()
	c.Start()
	require.True(t, c.Activate())
	c.Leg1.Pos.NetposPass = -10
	tick(c, c.Leg1.Inst, 100, 101)

	tick(c, c.Leg2.Inst, 50, 51)
	ord := c.Leg2.Table.Bids[51.0]
	require.NotNil(t, ord, "buy hedge must lift the ask")
	assert.Equal(t, types.Buy, ord.Side)
	assert.Equal(t, int64(10), ord.Qty)
}

// 单次对冲量受 max_hedge_qty 限制
func TestHedgeQtyCapped(t *testing.T) {
	c, _ := newTestPair()
	c.Start()
	require.True(t, c.Activate())
	c.Thr2.MaxHedgeQty = 3
	c.Leg1.Pos.NetposPass = 10
	tick(c, c.Leg1.Inst, 100, 101)

	tick(c, c.Leg2.Inst, 50, 51)
	ord := c.Leg2.Table.Asks[50.0]
	require.NotNil(t, ord)
	assert.Equal(t, int64(3), ord.Qty)
}

// 在途主动单封顶后不再追加
func TestHedgeRespectsMaxOSOrder(t *testing.T) {
	c, _ := newTestPair()
	c.Start()
	require.True(t, c.Activate())
	c.Thr2.MaxOSOrder = 0
	c.Leg1.Pos.NetposPass = 10
	tick(c, c.Leg1.Inst, 100, 101)

	tick(c, c.Leg2.Inst, 50, 51)
	assert.Equal(t, 0, c.Leg2.Table.Len())
}
