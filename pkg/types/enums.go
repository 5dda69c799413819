package types

// Side 买卖方向
type Side int32

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "?"
}

// Opposite 返回反方向
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderStatus 本地订单生命周期状态
type OrderStatus int32

const (
	StatusNew           OrderStatus = 0 // 已发送，等待确认
	StatusNewConfirm    OrderStatus = 1
	StatusNewReject     OrderStatus = 2
	StatusModifyPending OrderStatus = 3
	StatusModifyConfirm OrderStatus = 4
	StatusModifyReject  OrderStatus = 5
	StatusCancelPending OrderStatus = 6
	StatusCancelConfirm OrderStatus = 7
	StatusCancelReject  OrderStatus = 8
	StatusTraded        OrderStatus = 9
)

func (st OrderStatus) String() string {
	switch st {
	case StatusNew:
		return "NEW"
	case StatusNewConfirm:
		return "NEW_CONFIRM"
	case StatusNewReject:
		return "NEW_REJECT"
	case StatusModifyPending:
		return "MODIFY_PENDING"
	case StatusModifyConfirm:
		return "MODIFY_CONFIRM"
	case StatusModifyReject:
		return "MODIFY_REJECT"
	case StatusCancelPending:
		return "CANCEL_PENDING"
	case StatusCancelConfirm:
		return "CANCEL_CONFIRM"
	case StatusCancelReject:
		return "CANCEL_REJECT"
	case StatusTraded:
		return "TRADED"
	}
	return "?"
}

// Terminal 返回该状态是否终态（订单可以从订单表移除）
func (st OrderStatus) Terminal() bool {
	switch st {
	case StatusNewReject, StatusCancelConfirm, StatusTraded:
		return true
	}
	return false
}

// HitType 订单打法：被动挂单 / 改善一跳 / 主动穿越
type HitType int32

const (
	HitStandard HitType = 0 // 被动，排队
	HitImprove  HitType = 1 // 改善一跳
	HitCross    HitType = 2 // 主动穿越（对冲）
	HitDetect   HitType = 3
	HitMatch    HitType = 4
)

func (h HitType) String() string {
	switch h {
	case HitStandard:
		return "STANDARD"
	case HitImprove:
		return "IMPROVE"
	case HitCross:
		return "CROSS"
	case HitDetect:
		return "DETECT"
	case HitMatch:
		return "MATCH"
	}
	return "?"
}

// Aggressive 返回是否计入主动腿持仓（netpos_agg）
func (h HitType) Aggressive() bool {
	return h == HitCross || h == HitMatch
}

// Passive 返回是否计入被动腿持仓（netpos_pass）
func (h HitType) Passive() bool {
	return h == HitStandard || h == HitImprove
}

// OrderRole 订单在策略中的角色
type OrderRole int32

const (
	RoleQuote        OrderRole = 0 // 被动报价
	RolePassiveHedge OrderRole = 1
	RoleAggHedge     OrderRole = 2 // 主动对冲
)

func (r OrderRole) String() string {
	switch r {
	case RoleQuote:
		return "QUOTE"
	case RolePassiveHedge:
		return "PASSIVE-HEDGE"
	case RoleAggHedge:
		return "AGGRESSIVE-HEDGE"
	}
	return "?"
}

// StratState 策略控制器状态机
type StratState int32

const (
	StateInit StratState = iota
	StateRunning
	StateActive
	StateDeactivating
	StateSquaringOff
	StateStopped
)

func (s StratState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateActive:
		return "ACTIVE"
	case StateDeactivating:
		return "DEACTIVATING"
	case StateSquaringOff:
		return "SQUARING_OFF"
	case StateStopped:
		return "STOPPED"
	}
	return "?"
}
