// layoutcheck 打印共享内存 wire 结构的大小和字段偏移，
// 和 C++ 网关头文件比对用。ABI 改动先跑这个再动代码。
package main

import (
	"fmt"
	"unsafe"

	"pairarb-go/pkg/shm"
)

func main() {
	var (
		md   shm.MarketUpdate
		req  shm.OrderRequest
		resp shm.OrderResponse
	)

	fmt.Println("== sizes ==")
	fmt.Printf("BookLevel      %3d\n", unsafe.Sizeof(shm.BookLevel{}))
	fmt.Printf("MDHeader       %3d\n", unsafe.Sizeof(shm.MDHeader{}))
	fmt.Printf("MDData         %3d\n", unsafe.Sizeof(shm.MDData{}))
	fmt.Printf("MarketUpdate   %3d  (slot %d)\n", unsafe.Sizeof(md), shm.MDElemSize)
	fmt.Printf("ContractDesc   %3d\n", unsafe.Sizeof(shm.ContractDesc{}))
	fmt.Printf("OrderRequest   %3d  (slot %d)\n", unsafe.Sizeof(req), shm.ReqElemSize)
	fmt.Printf("OrderResponse  %3d  (slot %d)\n", unsafe.Sizeof(resp), shm.RespElemSize)

	fmt.Println("\n== MDHeader ==")
	fmt.Printf("ExchTimestamp  %3d\n", unsafe.Offsetof(md.Header.ExchTimestamp))
	fmt.Printf("LocalTimestamp %3d\n", unsafe.Offsetof(md.Header.LocalTimestamp))
	fmt.Printf("SeqNo          %3d\n", unsafe.Offsetof(md.Header.SeqNo))
	fmt.Printf("Symbol         %3d\n", unsafe.Offsetof(md.Header.Symbol))
	fmt.Printf("Token          %3d\n", unsafe.Offsetof(md.Header.Token))

	fmt.Println("\n== MDData ==")
	fmt.Printf("Bids           %3d\n", unsafe.Offsetof(md.Data.Bids))
	fmt.Printf("Asks           %3d\n", unsafe.Offsetof(md.Data.Asks))
	fmt.Printf("LastTradePrice %3d\n", unsafe.Offsetof(md.Data.LastTradePrice))
	fmt.Printf("ValidBids      %3d\n", unsafe.Offsetof(md.Data.ValidBids))
	fmt.Printf("Turnover       %3d\n", unsafe.Offsetof(md.Data.Turnover))
	fmt.Printf("Volume         %3d\n", unsafe.Offsetof(md.Data.Volume))

	fmt.Println("\n== OrderRequest ==")
	fmt.Printf("Contract       %3d\n", unsafe.Offsetof(req.Contract))
	fmt.Printf("ReqType        %3d\n", unsafe.Offsetof(req.ReqType))
	fmt.Printf("Side           %3d\n", unsafe.Offsetof(req.Side))
	fmt.Printf("OrderID        %3d\n", unsafe.Offsetof(req.OrderID))
	fmt.Printf("Token          %3d\n", unsafe.Offsetof(req.Token))
	fmt.Printf("Qty            %3d\n", unsafe.Offsetof(req.Qty))
	fmt.Printf("Price          %3d\n", unsafe.Offsetof(req.Price))
	fmt.Printf("AccountID      %3d\n", unsafe.Offsetof(req.AccountID))
	fmt.Printf("StrategyID     %3d\n", unsafe.Offsetof(req.StrategyID))

	fmt.Println("\n== OrderResponse ==")
	fmt.Printf("RespType       %3d\n", unsafe.Offsetof(resp.RespType))
	fmt.Printf("OrderID        %3d\n", unsafe.Offsetof(resp.OrderID))
	fmt.Printf("Qty            %3d\n", unsafe.Offsetof(resp.Qty))
	fmt.Printf("Price          %3d\n", unsafe.Offsetof(resp.Price))
	fmt.Printf("Symbol         %3d\n", unsafe.Offsetof(resp.Symbol))
	fmt.Printf("StrategyID     %3d\n", unsafe.Offsetof(resp.StrategyID))
}
