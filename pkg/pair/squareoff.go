package pair

import (
	"pairarb-go/pkg/exec"
	"pairarb-go/pkg/types"
)

// squareoffLocked 进入平仓流程。resume 为真表示止损触发，
// 冷却期后可自动恢复；否则平完即终态。
func (c *Controller) squareoffLocked(reason string, resume bool) {
	if c.state == types.StateSquaringOff || c.state == types.StateStopped {
		return
	}
	if resume {
		c.stopLossResume = true
		c.stopLossAtMS = c.NowMS()
		c.Leg1.Pos.OnStopLoss = true
		c.Leg2.Pos.OnStopLoss = true
		c.Leg1.Pos.StopLossTS = uint64(c.stopLossAtMS)
		c.Leg2.Pos.StopLossTS = uint64(c.stopLossAtMS)
	}
	c.Log.WithField("reason", reason).Warn("squareoff initiated")
	c.setState(types.StateSquaringOff)
	c.driveSquareoff()
}

// driveSquareoff 每个行情/回报事件推进一步：
// 先撤全部被动挂单，再用主动单平掉两腿残余，全平转 STOPPED。
func (c *Controller) driveSquareoff() {
	waiting := c.cancelPassive(c.Leg1)
	waiting = c.cancelPassive(c.Leg2) || waiting
	if waiting {
		return
	}

	c.flattenLeg(c.Leg1)
	c.flattenLeg(c.Leg2)

	if legResidual(c.Leg1) == 0 && legResidual(c.Leg2) == 0 &&
		!c.Leg1.HasWorkingOrders() && !c.Leg2.HasWorkingOrders() {
		c.setState(types.StateStopped)
		c.Log.Info("squareoff complete, flat")
	}
}

// cancelPassive 撤掉一条腿的非平仓挂单，返回是否仍在等撤单回报
func (c *Controller) cancelPassive(leg *exec.Leg) bool {
	waiting := false
	leg.Table.Each(func(ord *exec.Order) {
		if ord.Hit.Aggressive() {
			return
		}
		leg.CancelOrder(ord.ID)
		waiting = true
	})
	return waiting
}

// legResidual 腿的总净仓（被动 + 主动口径合计，含昨仓）
func legResidual(leg *exec.Leg) int64 {
	return leg.Pos.NetposPass + leg.Pos.NetposAgg
}

// flattenLeg 对残余仓位发对手价平仓单。已在途的平仓量先抵扣。
func (c *Controller) flattenLeg(leg *exec.Leg) {
	residual := legResidual(leg)

	var pending int64
	leg.Table.Each(func(ord *exec.Order) {
		if !ord.Hit.Aggressive() {
			return
		}
		if ord.Side == types.Buy {
			pending += ord.OpenQty
		} else {
			pending -= ord.OpenQty
		}
	})

	need := -residual - pending
	if need == 0 {
		return
	}
	if !leg.Inst.HasValidBook() {
		return
	}

	if need > 0 {
		leg.SendOrder(types.Buy, leg.Inst.AskPx[0], need, 0, types.HitCross, types.RoleAggHedge)
	} else {
		leg.SendOrder(types.Sell, leg.Inst.BidPx[0], -need, 0, types.HitCross, types.RoleAggHedge)
	}
}
