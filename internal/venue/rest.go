package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/aelhadee/247trader-V2-sub000/internal/resilience"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

const defaultCallTimeout = 10 * time.Second

// RESTConfig holds venue API connection settings.
type RESTConfig struct {
	BaseURL     string        `json:"baseUrl"`
	Key         string        `json:"key"`
	Secret      string        `json:"secret"`
	CallTimeout time.Duration `json:"callTimeout"`
}

// REST talks to the venue's HTTP API. All calls are expected to be
// wrapped by Guarded; REST itself only signs, sends and classifies.
type REST struct {
	cfg    RESTConfig
	client *http.Client
}

// NewREST creates a venue REST client.
func NewREST(cfg RESTConfig, client *http.Client) *REST {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &REST{cfg: cfg, client: client}
}

type quotePayload struct {
	Symbol  string `json:"symbol"`
	Bid     string `json:"bid"`
	Ask     string `json:"ask"`
	BidSize string `json:"bidSize"`
	AskSize string `json:"askSize"`
	Time    int64  `json:"time"`
}

func (r *REST) GetQuote(ctx context.Context, symbol string) (schema.Quote, error) {
	var payload quotePayload
	err := r.do(ctx, http.MethodGet, "/v1/quote?symbol="+url.QueryEscape(symbol), nil, &payload)
	if err != nil {
		return schema.Quote{}, err
	}
	bid, err := decimal.NewFromString(payload.Bid)
	if err != nil {
		return schema.Quote{}, errors.Wrap(err, "parse bid")
	}
	ask, err := decimal.NewFromString(payload.Ask)
	if err != nil {
		return schema.Quote{}, errors.Wrap(err, "parse ask")
	}
	bidSize, _ := decimal.NewFromString(payload.BidSize)
	askSize, _ := decimal.NewFromString(payload.AskSize)
	return schema.Quote{
		Symbol:    payload.Symbol,
		Bid:       bid,
		Ask:       ask,
		BidSize:   bidSize,
		AskSize:   askSize,
		Timestamp: time.UnixMilli(payload.Time).UTC(),
	}, nil
}

type balancePayload struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Hold      string `json:"hold"`
}

func (r *REST) GetAccounts(ctx context.Context) ([]schema.Balance, error) {
	var payload struct {
		Accounts []balancePayload `json:"accounts"`
	}
	if err := r.do(ctx, http.MethodGet, "/v1/accounts", nil, &payload); err != nil {
		return nil, err
	}
	out := make([]schema.Balance, 0, len(payload.Accounts))
	for _, acct := range payload.Accounts {
		available, _ := decimal.NewFromString(acct.Available)
		hold, _ := decimal.NewFromString(acct.Hold)
		out = append(out, schema.Balance{
			Currency:  acct.Currency,
			Available: available,
			Hold:      hold,
		})
	}
	return out, nil
}

func (r *REST) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResponse, error) {
	body := map[string]string{
		"client_id": req.ClientID,
		"symbol":    req.Symbol,
		"side":      req.Side.String(),
		"type":      string(req.Type),
	}
	if req.Notional.Sign() > 0 {
		body["notional"] = req.Notional.String()
	}
	if req.BaseSize.Sign() > 0 {
		body["size"] = req.BaseSize.String()
	}
	var payload struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
		Reason  string `json:"reason"`
	}
	if err := r.do(ctx, http.MethodPost, "/v1/orders", body, &payload); err != nil {
		return PlaceOrderResponse{}, err
	}
	return PlaceOrderResponse{
		ExchangeID: payload.OrderID,
		Accepted:   payload.Status == "accepted" || payload.Status == "open",
		Reason:     payload.Reason,
	}, nil
}

func (r *REST) CancelOrder(ctx context.Context, exchangeID string) error {
	return r.do(ctx, http.MethodDelete, "/v1/orders/"+url.PathEscape(exchangeID), nil, nil)
}

type fillPayload struct {
	TradeID  string `json:"tradeId"`
	ClientID string `json:"clientId"`
	OrderID  string `json:"orderId"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Size     string `json:"size"`
	Price    string `json:"price"`
	Fee      string `json:"fee"`
	Time     int64  `json:"time"`
}

func (r *REST) ListFills(ctx context.Context, since time.Time) ([]schema.Fill, error) {
	var payload struct {
		Fills []fillPayload `json:"fills"`
	}
	path := "/v1/fills?since=" + strconv.FormatInt(since.UnixMilli(), 10)
	if err := r.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	out := make([]schema.Fill, 0, len(payload.Fills))
	for _, f := range payload.Fills {
		size, _ := decimal.NewFromString(f.Size)
		price, _ := decimal.NewFromString(f.Price)
		fee, _ := decimal.NewFromString(f.Fee)
		side := schema.SideBuy
		if f.Side == "sell" {
			side = schema.SideSell
		}
		out = append(out, schema.Fill{
			TradeID:         f.TradeID,
			OrderClientID:   f.ClientID,
			OrderExchangeID: f.OrderID,
			Symbol:          f.Symbol,
			Side:            side,
			Size:            size,
			Price:           price,
			Fee:             fee,
			Timestamp:       time.UnixMilli(f.Time).UTC(),
		})
	}
	return out, nil
}

func (r *REST) GetProductMeta(ctx context.Context, symbol string) (schema.ProductMeta, error) {
	var payload struct {
		Symbol        string `json:"symbol"`
		MinNotional   string `json:"minNotional"`
		SizeIncrement string `json:"sizeIncrement"`
		Status        string `json:"status"`
	}
	err := r.do(ctx, http.MethodGet, "/v1/products/"+url.PathEscape(symbol), nil, &payload)
	if err != nil {
		return schema.ProductMeta{}, err
	}
	minNotional, _ := decimal.NewFromString(payload.MinNotional)
	increment, _ := decimal.NewFromString(payload.SizeIncrement)
	return schema.ProductMeta{
		Symbol:        payload.Symbol,
		MinNotional:   minNotional,
		SizeIncrement: increment,
		Status:        payload.Status,
	}, nil
}

func (r *REST) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = sonic.ConfigFastest.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	r.sign(req, method, path, payload)

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrap(resilience.ErrTransport, err.Error())
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (r *REST) sign(req *http.Request, method, path string, body []byte) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(r.cfg.Secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	req.Header.Set("X-API-Key", r.cfg.Key)
	req.Header.Set("X-API-Timestamp", ts)
	req.Header.Set("X-API-Signature", hex.EncodeToString(mac.Sum(nil)))
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return resilience.ErrRateLimited
	case resp.StatusCode >= 500:
		return errors.Wrap(resilience.ErrServer, fmt.Sprintf("status %d", resp.StatusCode))
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("venue request failed: status=%d body=%s", resp.StatusCode, data)
	}
}
