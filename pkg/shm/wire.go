package shm

// 与 C++ 网关共享的队列记录布局。字段顺序、填充与对齐全部冻结，
// 任何改动必须和网关头文件同步（见 cmd/layoutcheck）。
// 目标 ABI: GCC x86-64。

// BookLevels 行情档位数
const BookLevels = 5

const (
	SymbolLen    = 24
	ExpiryLen    = 12
	AccountLen   = 16
	ProductLen   = 15
	ExchOrderLen = 24
)

// RequestType 请求类别
type RequestType int32

const (
	ReqNewOrder    RequestType = 0
	ReqModifyOrder RequestType = 1
	ReqCancelOrder RequestType = 2
	ReqInquiry     RequestType = 3
)

// OrderType 价格类型
type OrderType int32

const (
	OrderLimit  OrderType = 0
	OrderMarket OrderType = 1
)

// OrderDuration 有效期，单字节上线
type OrderDuration byte

const (
	DurationDay OrderDuration = 0
	DurationIOC OrderDuration = 1
	DurationFOK OrderDuration = 2
	DurationFAK OrderDuration = 4
)

// 方向字节
const (
	SideBuy  byte = 'B'
	SideSell byte = 'S'
)

// ResponseType 回报类别
type ResponseType int32

const (
	RespNewConfirm    ResponseType = 0
	RespNewReject     ResponseType = 1
	RespModifyConfirm ResponseType = 2
	RespModifyReject  ResponseType = 3
	RespCancelConfirm ResponseType = 4
	RespCancelReject  ResponseType = 5
	RespTradeConfirm  ResponseType = 6
	RespORSReject     ResponseType = 7
	RespRMSReject     ResponseType = 8
)

// BookLevel 行情单档。C++ 侧 16 字节。
type BookLevel struct {
	Price  float64
	Qty    uint32
	Orders uint32
}

// MDHeader 行情记录头部，64 字节
type MDHeader struct {
	ExchTimestamp  uint64 // offset 0, 交易所时间戳 ns
	LocalTimestamp uint64 // offset 8, 网关落地时间戳 ns
	SeqNo          uint64 // offset 16
	Symbol         [SymbolLen]byte
	Token          uint32 // offset 48
	ExchangeCode   uint8  // offset 52
	_pad0          [11]byte
}

// MDData 行情记录数据部分，200 字节
type MDData struct {
	Bids           [BookLevels]BookLevel // offset 0
	Asks           [BookLevels]BookLevel // offset 80
	LastTradePrice float64               // offset 160
	LastTradeQty   uint32                // offset 168
	ValidBids      uint32                // offset 172, 本次有效买档数
	ValidAsks      uint32                // offset 176
	_pad0          [4]byte
	Turnover       float64 // offset 184, 累计成交额
	Volume         uint64  // offset 192, 累计成交量
}

// MarketUpdate 完整行情记录，264 字节
type MarketUpdate struct {
	Header MDHeader
	Data   MDData
}

// ContractDesc 合约描述，64 字节
type ContractDesc struct {
	Symbol [SymbolLen]byte
	Expiry [ExpiryLen]byte // offset 24, YYYYMMDD
	_pad0  [4]byte
	Strike float64 // offset 40, 期权用，期货为 0
	OptTyp [2]byte // offset 48, "CE"/"PE"，期货为空
	_pad1  [14]byte
}

// OrderRequest 请求记录，192 字节。C++ 侧带 aligned(64)，
// 使 QueueElem<OrderRequest> 膨胀到 256（见 ReqElemSize）。
type OrderRequest struct {
	Contract     ContractDesc  // offset 0
	ReqType      RequestType   // offset 64
	OrdType      OrderType     // offset 68
	Duration     OrderDuration // offset 72
	PriceType    byte          // offset 73
	Side         byte          // offset 74, 'B'/'S'
	_pad0        [1]byte
	OrderID      uint32 // offset 76
	Token        uint32 // offset 80
	Qty          int32  // offset 84
	QtyFilled    int32  // offset 88, 改单时已成交量
	_pad1        [4]byte
	Price        float64 // offset 96
	Timestamp    uint64  // offset 104
	AccountID    [AccountLen]byte
	ExchangeCode byte // offset 128
	Product      [ProductLen]byte
	StrategyID   int32 // offset 144
	_pad2        [44]byte
}

// OrderResponse 回报记录，160 字节
type OrderResponse struct {
	RespType     ResponseType // offset 0
	ErrorCode    int32        // offset 4
	OrderID      uint32       // offset 8
	Qty          int32        // offset 12, TRADE 为成交量，其余为剩余量
	Price        float64      // offset 16
	Timestamp    uint64       // offset 24
	Side         byte         // offset 32
	OpenClose    byte         // offset 33, 'O'/'C'
	ExchangeCode byte         // offset 34
	_pad0        [5]byte
	Symbol       [SymbolLen]byte    // offset 40
	AccountID    [AccountLen]byte   // offset 64
	ExchOrderID  [ExchOrderLen]byte // offset 80
	ExchTradeID  [ExchOrderLen]byte // offset 104
	Product      [ProductLen]byte   // offset 128
	_pad1        [1]byte
	StrategyID   int32 // offset 144
	_pad2        [12]byte
}

// 槽位大小 = sizeof(T) + 8 字节 seq；OrderRequest 因 aligned(64) 上取到 256
const (
	MDElemSize   = 272
	ReqElemSize  = 256
	RespElemSize = 168
)

// PutString 把 s 拷入定长字节区，超长截断，余量清零
func PutString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// CString 按 C 字符串语义截到第一个 NUL
func CString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
