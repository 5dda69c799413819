package market

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pairarb-go/pkg/shm"
)

func newTestInstrument() *Instrument {
	return &Instrument{
		Symbol:     "ag2603",
		TickSize:   1.0,
		LotSize:    1,
		Multiplier: 15,
	}
}

func setBook(inst *Instrument, bid, ask float64, qty float64) {
	inst.BidPx[0] = bid
	inst.AskPx[0] = ask
	inst.BidQty[0] = qty
	inst.AskQty[0] = qty
	inst.ValidBids = 1
	inst.ValidAsks = 1
}

func TestUpdateFromMD(t *testing.T) {
	inst := newTestInstrument()

	var md shm.MarketUpdate
	md.Header.ExchTimestamp = 111
	md.Data.ValidBids = 2
	md.Data.ValidAsks = 1
	md.Data.Bids[0] = shm.BookLevel{Price: 7720, Qty: 12, Orders: 3}
	md.Data.Bids[1] = shm.BookLevel{Price: 7719, Qty: 40, Orders: 9}
	md.Data.Asks[0] = shm.BookLevel{Price: 7721, Qty: 5, Orders: 1}
	md.Data.LastTradePrice = 7720
	md.Data.LastTradeQty = 2
	md.Data.Volume = 100

	inst.UpdateFromMD(&md)

	assert.Equal(t, int32(2), inst.ValidBids)
	assert.Equal(t, 7720.0, inst.BidPx[0])
	assert.Equal(t, 40.0, inst.BidQty[1])
	assert.Equal(t, int32(3), inst.BidOrders[0])
	assert.Equal(t, 7721.0, inst.AskPx[0])
	assert.Equal(t, uint64(100), inst.Volume)
	assert.True(t, inst.HasValidBook())
}

func TestPrices(t *testing.T) {
	inst := newTestInstrument()
	setBook(inst, 100, 102, 10)

	assert.Equal(t, 101.0, inst.MidPrice())
	assert.Equal(t, 2.0, inst.Spread())
	// equal sizes: MSW == mid
	assert.Equal(t, 101.0, inst.MSWPrice())

	inst.AskQty[0] = 30 // heavier ask pushes MSW toward bid
	assert.InDelta(t, 100.5, inst.MSWPrice(), 1e-9)
}

func TestRoundToTick(t *testing.T) {
	inst := newTestInstrument()
	inst.TickSize = 0.5
	assert.Equal(t, 100.5, inst.RoundToTick(100.49))
	assert.Equal(t, 100.0, inst.RoundToTick(100.2))
}

func TestImprovePrices(t *testing.T) {
	inst := newTestInstrument()

	// one-tick market: no room to improve
	setBook(inst, 100, 101, 10)
	assert.Equal(t, 100.0, inst.ImproveBid())
	assert.Equal(t, 101.0, inst.ImproveAsk())

	// gapped market: jump the queue by one tick
	setBook(inst, 100, 103, 10)
	assert.Equal(t, 101.0, inst.ImproveBid())
	assert.Equal(t, 102.0, inst.ImproveAsk())
}

func TestHasValidBook(t *testing.T) {
	inst := newTestInstrument()
	assert.False(t, inst.HasValidBook())
	setBook(inst, 100, 101, 10)
	assert.True(t, inst.HasValidBook())
	inst.BidPx[0] = 0
	assert.False(t, inst.HasValidBook())
}
