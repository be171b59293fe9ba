package okx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Channel names on the OKX v5 websocket.
const (
	ChannelTickers = "tickers"
	ChannelAccount = "account"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Target currency of a market order size.
const (
	TgtQuote = "quote_ccy"
	TgtBase  = "base_ccy"
)

const (
	posSideNet  = "net"
	ordMarket   = "market"
	clOrdPrefix = "snip"
)

// Arg addresses a subscription.
type Arg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId,omitempty"`
	Ccy     string `json:"ccy,omitempty"`
}

// OrderRequest is a market order to encode.
type OrderRequest struct {
	InstID string
	Side   Side
	Size   decimal.Decimal
	// PosSide defaults to "net".
	PosSide string
	// TgtCcy defaults to quote_ccy for buys and base_ccy for sells.
	TgtCcy string
}

// Encoded is a ready-to-send frame plus its correlation ids.
type Encoded struct {
	Payload []byte
	ReqID   string
	ClOrdID string
	TdMode  string
}

// Kind classifies an inbound frame.
type Kind int

const (
	KindUnknown Kind = iota
	KindPong
	KindEvent
	KindOrderAck
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindPong:
		return "pong"
	case KindEvent:
		return "event"
	case KindOrderAck:
		return "order_ack"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Event is a system reply: login, subscribe, error, notice.
type Event struct {
	Event  string
	Code   string
	Msg    string
	ConnID string
	Arg    *Arg
}

// OrderResult is one entry of an order acknowledgement.
type OrderResult struct {
	ClOrdID string `json:"clOrdId"`
	OrdID   string `json:"ordId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

// OrderAck is the reply to an op:"order" request.
type OrderAck struct {
	ID      string
	Code    string
	Msg     string
	Results []OrderResult
}

// Accepted reports whether the exchange accepted every order in the ack.
func (a *OrderAck) Accepted() bool {
	if a.Code != "0" {
		return false
	}
	for _, r := range a.Results {
		if r.SCode != "0" {
			return false
		}
	}
	return true
}

// Push is subscription data for a channel.
type Push struct {
	Arg  Arg
	Data json.RawMessage
}

// Envelope is the decoded form of an inbound frame; exactly one of
// Event, Ack or Push is set for the matching Kind.
type Envelope struct {
	Kind  Kind
	Event *Event
	Ack   *OrderAck
	Push  *Push
}

// DecodeError wraps a frame that could not be parsed.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120]
	}
	return fmt.Sprintf("decode frame %q: %v", raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Codec builds outbound messages and classifies inbound ones. Its order
// counter is the only mutable state and is safe for concurrent use.
type Codec struct {
	counter atomic.Uint64
	now     func() time.Time
	newID   func() string
}

// NewCodec returns a codec using wall-clock time and random request ids.
func NewCodec() *Codec {
	return &Codec{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

type wireRequest struct {
	ID   string `json:"id,omitempty"`
	Op   string `json:"op"`
	Args []any  `json:"args"`
}

type loginArg struct {
	APIKey     string `json:"apiKey"`
	Passphrase string `json:"passphrase"`
	Timestamp  string `json:"timestamp"`
	Sign       string `json:"sign"`
}

type orderArg struct {
	ClOrdID string `json:"clOrdId"`
	Side    Side   `json:"side"`
	PosSide string `json:"posSide"`
	InstID  string `json:"instId"`
	TdMode  string `json:"tdMode"`
	OrdType string `json:"ordType"`
	Sz      string `json:"sz"`
	TgtCcy  string `json:"tgtCcy,omitempty"`
}

// EncodeLogin builds the login op for the given credentials and timestamp.
func EncodeLogin(creds Credentials, timestamp string) ([]byte, error) {
	return json.Marshal(wireRequest{
		Op: "login",
		Args: []any{loginArg{
			APIKey:     creds.APIKey,
			Passphrase: creds.Passphrase,
			Timestamp:  timestamp,
			Sign:       Sign(creds.SecretKey, timestamp),
		}},
	})
}

// EncodeSubscribe builds a subscribe op with one or more args.
func EncodeSubscribe(args ...Arg) ([]byte, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("subscribe: no args")
	}
	list := make([]any, len(args))
	for i, a := range args {
		list[i] = a
	}
	return json.Marshal(wireRequest{Op: "subscribe", Args: list})
}

// TickerArgs builds one tickers subscription per instrument.
func TickerArgs(instIDs []string) []Arg {
	out := make([]Arg, 0, len(instIDs))
	for _, id := range instIDs {
		out = append(out, Arg{Channel: ChannelTickers, InstID: id})
	}
	return out
}

// TdMode is "cross" for swaps and "cash" for spot.
func TdMode(instID string) string {
	if strings.Contains(instID, "SWAP") {
		return "cross"
	}
	return "cash"
}

// nextClOrdID is "snip" + hex(unix seconds % 10000) + decimal counter.
func (c *Codec) nextClOrdID() string {
	n := c.counter.Add(1)
	return clOrdPrefix + strconv.FormatInt(c.now().Unix()%10000, 16) + strconv.FormatUint(n, 10)
}

// EncodeOrder builds a market order op.
func (c *Codec) EncodeOrder(req OrderRequest) (Encoded, error) {
	if req.InstID == "" {
		return Encoded{}, fmt.Errorf("order: empty instId")
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return Encoded{}, fmt.Errorf("order: invalid side %q", req.Side)
	}
	if !req.Size.IsPositive() {
		return Encoded{}, fmt.Errorf("order %s %s: size must be positive, got %s", req.Side, req.InstID, req.Size)
	}

	posSide := req.PosSide
	if posSide == "" {
		posSide = posSideNet
	}
	tgt := req.TgtCcy
	if tgt == "" {
		tgt = TgtBase
		if req.Side == SideBuy {
			tgt = TgtQuote
		}
	}

	enc := Encoded{
		ReqID:   c.newID(),
		ClOrdID: c.nextClOrdID(),
		TdMode:  TdMode(req.InstID),
	}
	arg := orderArg{
		ClOrdID: enc.ClOrdID,
		Side:    req.Side,
		PosSide: posSide,
		InstID:  req.InstID,
		TdMode:  enc.TdMode,
		OrdType: ordMarket,
		Sz:      req.Size.String(),
	}
	// tgtCcy only applies to spot market orders.
	if enc.TdMode == "cash" {
		arg.TgtCcy = tgt
	}

	payload, err := json.Marshal(wireRequest{ID: enc.ReqID, Op: "order", Args: []any{arg}})
	if err != nil {
		return Encoded{}, err
	}
	enc.Payload = payload
	return enc, nil
}

type wireMessage struct {
	ID     string          `json:"id"`
	Op     string          `json:"op"`
	Event  string          `json:"event"`
	Code   string          `json:"code"`
	Msg    string          `json:"msg"`
	ConnID string          `json:"connId"`
	Arg    *Arg            `json:"arg"`
	Data   json.RawMessage `json:"data"`
}

var pong = []byte("pong")

// Decode classifies one inbound frame.
func Decode(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, pong) {
		return Envelope{Kind: KindPong}, nil
	}

	var msg wireMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return Envelope{}, &DecodeError{Raw: raw, Err: err}
	}

	switch {
	case msg.Event != "":
		return Envelope{Kind: KindEvent, Event: &Event{
			Event:  msg.Event,
			Code:   msg.Code,
			Msg:    msg.Msg,
			ConnID: msg.ConnID,
			Arg:    msg.Arg,
		}}, nil
	case msg.Op == "order" || msg.Op == "batch-orders":
		ack := &OrderAck{ID: msg.ID, Code: msg.Code, Msg: msg.Msg}
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &ack.Results); err != nil {
				return Envelope{}, &DecodeError{Raw: raw, Err: fmt.Errorf("order ack data: %w", err)}
			}
		}
		return Envelope{Kind: KindOrderAck, Ack: ack}, nil
	case msg.Arg != nil && len(msg.Data) > 0:
		return Envelope{Kind: KindData, Push: &Push{Arg: *msg.Arg, Data: msg.Data}}, nil
	default:
		return Envelope{Kind: KindUnknown}, nil
	}
}
