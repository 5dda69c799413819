package pair

import (
	"github.com/sirupsen/logrus"

	"pairarb-go/pkg/types"
)

// hedge 主动腿对冲。敞口非零就追，500ms 窗口内按阶梯让价：
// 首发打对手价，重报依次让 1、2 个 tick，第三次让 slop 个 tick，
// 再追不上直接转平仓。
func (c *Controller) hedge() {
	exp := c.exposure()
	if exp == 0 {
		return
	}
	if !c.Leg2.Inst.HasValidBook() {
		return
	}
	if exp > 0 {
		c.hedgeSide(types.Sell, exp)
	} else {
		c.hedgeSide(types.Buy, -exp)
	}
}

func (c *Controller) hedgeSide(side types.Side, qty int64) {
	thr := c.Thr2

	if side == types.Sell && int(c.sellAggOrders) >= thr.MaxOSOrder {
		return
	}
	if side == types.Buy && int(c.buyAggOrders) >= thr.MaxOSOrder {
		return
	}
	if thr.MaxHedgeQty > 0 && qty > thr.MaxHedgeQty {
		qty = thr.MaxHedgeQty
	}
	if qty <= 0 {
		return
	}

	inst := c.Leg2.Inst
	tick := inst.TickSize
	touch := inst.BidPx[0]
	if side == types.Buy {
		touch = inst.AskPx[0]
	}

	now := c.NowMS()
	fresh := c.lastAggSide != side || now-c.lastAggMS > thr.AggWindowMs

	var px float64
	if fresh {
		// 方向翻转或窗口过期，阶梯从头来
		c.aggRepeat = 1
		px = touch
	} else {
		if c.aggRepeat > thr.MaxAggRepeat {
			c.Log.WithFields(logrus.Fields{"side": side.String(), "repeat": c.aggRepeat}).
				Warn("hedge ladder exhausted")
			c.squareoffLocked("hedge_exhausted", false)
			return
		}
		give := float64(c.aggRepeat)
		if c.aggRepeat == thr.MaxAggRepeat {
			give = float64(thr.Slop)
		}
		if side == types.Sell {
			px = touch - tick*give
		} else {
			px = touch + tick*give
		}
	}

	px = inst.RoundToTick(px)
	if px <= 0 {
		return
	}

	if _, ok := c.Leg2.SendOrder(side, px, qty, 0, types.HitCross, types.RoleAggHedge); !ok {
		return
	}

	if !fresh {
		c.aggRepeat++
	}
	c.lastAggSide = side
	c.lastAggMS = now
	if side == types.Buy {
		c.buyAggOrders++
	} else {
		c.sellAggOrders++
	}

	c.Log.WithFields(logrus.Fields{
		"side": side.String(), "price": px, "qty": qty, "repeat": c.aggRepeat,
	}).Info("aggressive hedge sent")
}
