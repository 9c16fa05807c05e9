package binance

import "encoding/json"

// combinedMessage is the envelope of the combined-stream endpoint
// (/stream?streams=...). Data stays raw until the stream suffix routes it.
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// depthPayload is the futures partial book depth payload
// (<symbol>@depth20@100ms). Levels are [price, qty] string pairs,
// best-first. FinalID ("u") is the exchange update id used for staleness
// gating downstream.
type depthPayload struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"` // ms
	Symbol    string     `json:"s"`
	FirstID   uint64     `json:"U"`
	FinalID   uint64     `json:"u"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

// aggTradePayload is the aggregated trade payload (<symbol>@aggTrade).
// BuyerIsMaker true means the aggressor sold into the bid.
type aggTradePayload struct {
	EventType    string `json:"e"`
	AggTradeID   uint64 `json:"a"`
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"` // ms
	BuyerIsMaker bool   `json:"m"`
}

// tickerPayload is the 24hr rolling ticker payload (<symbol>@ticker).
// Only the last price feeds the engine.
type tickerPayload struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"` // ms
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
}
