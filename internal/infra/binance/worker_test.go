package binance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/internal/domain"
	"tradepulse/internal/event"
)

const depthFrame = `{
  "stream": "ltcusdt@depth20@100ms",
  "data": {
    "e": "depthUpdate", "E": 1757000000000, "s": "LTCUSDT",
    "U": 100, "u": 105,
    "b": [["104.50", "12.5"], ["104.40", "3.0"]],
    "a": [["104.60", "8.0"], ["104.70", "1.25"]]
  }
}`

const aggTradeFrame = `{
  "stream": "ltcusdt@aggTrade",
  "data": {
    "e": "aggTrade", "a": 77, "s": "LTCUSDT",
    "p": "104.55", "q": "2.5", "T": 1757000000123, "m": false
  }
}`

const tickerFrame = `{
  "stream": "ltcusdt@ticker",
  "data": {"e": "24hrTicker", "E": 1757000000456, "s": "LTCUSDT", "c": "104.58"}
}`

func newTestWorker(size int) (*Worker, chan event.Event) {
	inbox := make(chan event.Event, size)
	w := NewWorker("wss://fstream.binance.com/stream", "LTCUSDT", inbox)
	return w, inbox
}

func recvEvent(t *testing.T, inbox <-chan event.Event) event.Event {
	t.Helper()
	select {
	case ev := <-inbox:
		return ev
	default:
		t.Fatal("no event normalized")
		return nil
	}
}

func TestWorker_NormalizesDepth(t *testing.T) {
	w, inbox := newTestWorker(4)
	w.handleMessage([]byte(depthFrame))

	ev, ok := recvEvent(t, inbox).(*event.BookUpdate)
	if !ok {
		t.Fatalf("event type = %T, want *event.BookUpdate", ev)
	}
	if ev.Sequence != 105 {
		t.Errorf("sequence = %d, want final update id 105", ev.Sequence)
	}
	if len(ev.Bids) != 2 || len(ev.Asks) != 2 {
		t.Fatalf("levels = %d/%d, want 2/2", len(ev.Bids), len(ev.Asks))
	}
	if !ev.Bids[0].Price.Equal(decimal.NewFromFloat(104.50)) {
		t.Errorf("best bid = %s, want 104.50", ev.Bids[0].Price)
	}
	if !ev.Asks[1].Qty.Equal(decimal.NewFromFloat(1.25)) {
		t.Errorf("ask qty = %s, want 1.25", ev.Asks[1].Qty)
	}
	if ev.Ts != time.UnixMilli(1757000000000).UTC() {
		t.Errorf("ts = %v", ev.Ts)
	}
}

func TestWorker_NormalizesAggTrade(t *testing.T) {
	w, inbox := newTestWorker(4)
	w.handleMessage([]byte(aggTradeFrame))

	ev, ok := recvEvent(t, inbox).(*event.Trade)
	if !ok {
		t.Fatalf("event type = %T, want *event.Trade", ev)
	}
	if ev.ID != 77 {
		t.Errorf("trade id = %d, want 77", ev.ID)
	}
	if ev.Aggressor != domain.SideBuy {
		t.Errorf("aggressor = %s, want BUY when buyer is taker", ev.Aggressor)
	}
	if !ev.Price.Equal(decimal.NewFromFloat(104.55)) {
		t.Errorf("price = %s, want 104.55", ev.Price)
	}
}

func TestWorker_SellAggressorWhenBuyerIsMaker(t *testing.T) {
	w, inbox := newTestWorker(4)
	frame := `{"stream":"ltcusdt@aggTrade","data":{"e":"aggTrade","a":78,"p":"104.55","q":"1","T":1757000000123,"m":true}}`
	w.handleMessage([]byte(frame))

	ev := recvEvent(t, inbox).(*event.Trade)
	if ev.Aggressor != domain.SideSell {
		t.Errorf("aggressor = %s, want SELL when buyer is maker", ev.Aggressor)
	}
}

func TestWorker_NormalizesTicker(t *testing.T) {
	w, inbox := newTestWorker(4)
	w.handleMessage([]byte(tickerFrame))

	ev, ok := recvEvent(t, inbox).(*event.Ticker)
	if !ok {
		t.Fatalf("event type = %T, want *event.Ticker", ev)
	}
	if !ev.LastPrice.Equal(decimal.NewFromFloat(104.58)) {
		t.Errorf("last price = %s, want 104.58", ev.LastPrice)
	}
}

func TestWorker_DropsWhenInboxFull(t *testing.T) {
	w, inbox := newTestWorker(1)
	w.handleMessage([]byte(tickerFrame))
	w.handleMessage([]byte(tickerFrame))

	if w.dropped != 1 {
		t.Errorf("dropped = %d, want 1", w.dropped)
	}
	if len(inbox) != 1 {
		t.Errorf("inbox len = %d, want 1", len(inbox))
	}
}

func TestWorker_IgnoresMalformedFrames(t *testing.T) {
	w, inbox := newTestWorker(4)
	w.handleMessage([]byte(`not json`))
	w.handleMessage([]byte(`{"stream":"ltcusdt@depth20@100ms","data":{"u":1,"b":[["bad"]],"a":[]}}`))

	if len(inbox) != 0 {
		t.Errorf("inbox len = %d, want 0 for malformed frames", len(inbox))
	}
}

func TestWorker_StreamURL(t *testing.T) {
	w, _ := newTestWorker(1)
	got := w.streamURL()
	want := "wss://fstream.binance.com/stream?streams=ltcusdt@depth20@100ms/ltcusdt@aggTrade/ltcusdt@ticker"
	if got != want {
		t.Errorf("streamURL = %q, want %q", got, want)
	}
}
