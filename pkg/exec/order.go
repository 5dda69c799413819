package exec

import (
	"pairarb-go/pkg/types"
)

// Order 本地订单簿条目
type Order struct {
	ID    uint32
	Side  types.Side
	Price float64
	Qty   int64
	Hit   types.HitType
	Role  types.OrderRole

	OpenQty int64
	DoneQty int64
	CxlQty  int64
	Status  types.OrderStatus
	Level   int32 // 下单时参考的行情档位

	// 改单回退用
	NewPrice   float64
	NewQty     int64
	OldPrice   float64
	OldQty     int64
	ModifyWait bool

	QuantAhead float64 // 下单时该价位前方的排队量估计
	SentAt     uint64  // ns
}

// NewOrder 按 NEW 状态构造
func NewOrder(id uint32, side types.Side, price float64, qty int64,
	hit types.HitType, role types.OrderRole) *Order {
	return &Order{
		ID:      id,
		Side:    side,
		Price:   price,
		Qty:     qty,
		OpenQty: qty,
		Hit:     hit,
		Role:    role,
		Status:  types.StatusNew,
	}
}

// OrderTable 订单三索引：orderID、买价、卖价。
// 同一价位同一方向最多一张挂单。
type OrderTable struct {
	Orders map[uint32]*Order
	Bids   map[float64]*Order
	Asks   map[float64]*Order
}

func NewOrderTable() *OrderTable {
	return &OrderTable{
		Orders: make(map[uint32]*Order),
		Bids:   make(map[float64]*Order),
		Asks:   make(map[float64]*Order),
	}
}

// Get 按 orderID 查找
func (t *OrderTable) Get(id uint32) *Order {
	return t.Orders[id]
}

// AtPrice 按价格和方向查找
func (t *OrderTable) AtPrice(side types.Side, price float64) *Order {
	if side == types.Buy {
		return t.Bids[price]
	}
	return t.Asks[price]
}

// Insert 插入订单并建价格索引
func (t *OrderTable) Insert(ord *Order) {
	t.Orders[ord.ID] = ord
	if ord.Side == types.Buy {
		t.Bids[ord.Price] = ord
	} else {
		t.Asks[ord.Price] = ord
	}
}

// Remove 从全部索引移除。改单在途时新价格的乐观条目一并清理。
func (t *OrderTable) Remove(id uint32) *Order {
	ord, ok := t.Orders[id]
	if !ok {
		return nil
	}
	if ord.Side == types.Buy {
		if t.Bids[ord.Price] == ord {
			delete(t.Bids, ord.Price)
		}
		if ord.ModifyWait && t.Bids[ord.NewPrice] == ord {
			delete(t.Bids, ord.NewPrice)
		}
	} else {
		if t.Asks[ord.Price] == ord {
			delete(t.Asks, ord.Price)
		}
		if ord.ModifyWait && t.Asks[ord.NewPrice] == ord {
			delete(t.Asks, ord.NewPrice)
		}
	}
	delete(t.Orders, id)
	return ord
}

// Len 在途订单数
func (t *OrderTable) Len() int {
	return len(t.Orders)
}

// Each 遍历全部订单。回调里允许 Remove。
func (t *OrderTable) Each(fn func(*Order)) {
	ids := make([]uint32, 0, len(t.Orders))
	for id := range t.Orders {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if ord, ok := t.Orders[id]; ok {
			fn(ord)
		}
	}
}

// WorstBid 返回价格最低的买单（多档报价替换最差单用）
func (t *OrderTable) WorstBid() *Order {
	var worst *Order
	for _, ord := range t.Bids {
		if worst == nil || ord.Price < worst.Price {
			worst = ord
		}
	}
	return worst
}

// WorstAsk 返回价格最高的卖单
func (t *OrderTable) WorstAsk() *Order {
	var worst *Order
	for _, ord := range t.Asks {
		if worst == nil || ord.Price > worst.Price {
			worst = ord
		}
	}
	return worst
}
