package pair

import "pairarb-go/pkg/types"

// Thresholds 四个动态阈值，随被动腿持仓线性平移：
// 越持多越难加多、越容易减多，空头对称。
type Thresholds struct {
	BidPlace  float64
	BidRemove float64
	AskPlace  float64
	AskRemove float64
}

// ComputeThresholds 按 netpos_pass 对 begin/long/short 基准做线性插值。
// maxPos == 0 时退化为 begin 基准。
func ComputeThresholds(thr *types.ThresholdSet, netPass int64) Thresholds {
	out := Thresholds{
		BidPlace:  thr.BidPlaceBegin,
		BidRemove: thr.BidRemoveBegin,
		AskPlace:  thr.AskPlaceBegin,
		AskRemove: thr.AskRemoveBegin,
	}
	maxPos := float64(thr.MaxPos)
	if maxPos == 0 || netPass == 0 {
		return out
	}
	n := float64(netPass) / maxPos

	longPlaceDiff := thr.BidPlaceLong - thr.BidPlaceBegin
	shortPlaceDiff := thr.BidPlaceBegin - thr.BidPlaceShort
	longRemoveDiff := thr.BidRemoveLong - thr.BidRemoveBegin
	shortRemoveDiff := thr.BidRemoveBegin - thr.BidRemoveShort

	askLongPlaceDiff := thr.AskPlaceLong - thr.AskPlaceBegin
	askShortPlaceDiff := thr.AskPlaceBegin - thr.AskPlaceShort
	askLongRemoveDiff := thr.AskRemoveLong - thr.AskRemoveBegin
	askShortRemoveDiff := thr.AskRemoveBegin - thr.AskRemoveShort

	if netPass > 0 {
		out.BidPlace = thr.BidPlaceBegin + longPlaceDiff*n
		out.BidRemove = thr.BidRemoveBegin + longRemoveDiff*n
		out.AskPlace = thr.AskPlaceBegin - askShortPlaceDiff*n
		out.AskRemove = thr.AskRemoveBegin - askShortRemoveDiff*n
	} else {
		out.BidPlace = thr.BidPlaceBegin + shortPlaceDiff*n
		out.BidRemove = thr.BidRemoveBegin + shortRemoveDiff*n
		out.AskPlace = thr.AskPlaceBegin - askLongPlaceDiff*n
		out.AskRemove = thr.AskRemoveBegin - askLongRemoveDiff*n
	}
	return out
}
