package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/quantfold/strategy-engine/internal/errors"
	"github.com/quantfold/strategy-engine/pkg/data"
	"github.com/quantfold/strategy-engine/pkg/types"
)

// BybitConfig holds credentials and environment selection for the
// Bybit-backed gateway.
type BybitConfig struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool   // demo trading environment (paper trading upstream)
	Category  string // "spot", "linear", "inverse"
	Interval  string // kline interval in Bybit notation, e.g. "60"
}

// BybitGateway submits orders to Bybit and serves OHLCV windows from
// its kline endpoint, so one client covers both collaborator contracts.
type BybitGateway struct {
	client   *bybit_api.Client
	category string
	interval string
}

func NewBybitGateway(cfg BybitConfig) *BybitGateway {
	var baseURL string
	switch {
	case cfg.Demo:
		baseURL = "https://api-demo.bybit.com"
	case cfg.Testnet:
		baseURL = bybit_api.TESTNET
	default:
		baseURL = bybit_api.MAINNET
	}

	if cfg.Category == "" {
		cfg.Category = "spot"
	}
	if cfg.Interval == "" {
		cfg.Interval = "60"
	}

	return &BybitGateway{
		client:   bybit_api.NewBybitHttpClient(cfg.APIKey, cfg.APISecret, bybit_api.WithBaseURL(baseURL)),
		category: cfg.Category,
		interval: cfg.Interval,
	}
}

// Submit places a market order. Bybit acknowledges asynchronously, so a
// successful placement comes back PENDING and the engine confirms the
// fill through CheckOrder.
func (g *BybitGateway) Submit(ctx context.Context, order types.OrderRequest) (types.OrderResult, error) {
	var side string
	switch order.Action {
	case types.ActionBuy:
		side = "Buy"
	case types.ActionSell:
		side = "Sell"
	default:
		return types.OrderResult{}, errors.NewContractError("gateway", "Submit",
			fmt.Sprintf("action %s must be resolved to BUY or SELL before submission", order.Action))
	}

	params := map[string]interface{}{
		"category":    g.category,
		"symbol":      order.Instrument,
		"side":        side,
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(order.Quantity, 'f', -1, 64),
		"orderLinkId": order.ClientOrderID,
	}
	if order.LimitPrice != nil {
		params["orderType"] = "Limit"
		params["price"] = strconv.FormatFloat(*order.LimitPrice, 'f', -1, 64)
		params["timeInForce"] = "GTC"
	}

	resp, err := g.client.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return types.OrderResult{}, errors.NewGatewayError("gateway", "Submit", err)
	}
	if resp == nil {
		return types.OrderResult{}, errors.New(errors.ErrorCategoryGateway, "gateway", "Submit", "empty response")
	}
	if resp.RetCode != 0 {
		return types.OrderResult{
			Status: types.OrderRejected,
			Reason: fmt.Sprintf("%s (code %d)", resp.RetMsg, resp.RetCode),
		}, nil
	}

	return types.OrderResult{Status: types.OrderPending}, nil
}

// CheckOrder resolves a pending order by client order id.
func (g *BybitGateway) CheckOrder(ctx context.Context, instrument, clientOrderID string) (types.OrderResult, error) {
	params := map[string]interface{}{
		"category":    g.category,
		"symbol":      instrument,
		"orderLinkId": clientOrderID,
	}

	resp, err := g.client.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	if err != nil {
		return types.OrderResult{}, errors.NewGatewayError("gateway", "CheckOrder", err)
	}
	if resp == nil {
		return types.OrderResult{}, errors.New(errors.ErrorCategoryGateway, "gateway", "CheckOrder", "empty response")
	}
	if resp.RetCode != 0 {
		return types.OrderResult{}, errors.New(errors.ErrorCategoryGateway, "gateway", "CheckOrder",
			fmt.Sprintf("%s (code %d)", resp.RetMsg, resp.RetCode))
	}

	result, err := orderResultFromHistory(resp.Result)
	if err != nil {
		return types.OrderResult{}, errors.NewGatewayError("gateway", "CheckOrder", err)
	}
	return result, nil
}

// orderResultFromHistory maps an order-history payload onto the
// tri-state result. An empty list means the order has not settled yet.
func orderResultFromHistory(payload interface{}) (types.OrderResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return types.OrderResult{}, err
	}
	var history struct {
		List []struct {
			OrderStatus  string `json:"orderStatus"`
			AvgPrice     string `json:"avgPrice"`
			CumExecQty   string `json:"cumExecQty"`
			RejectReason string `json:"rejectReason"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &history); err != nil {
		return types.OrderResult{}, err
	}
	if len(history.List) == 0 {
		return types.OrderResult{Status: types.OrderPending}, nil
	}

	entry := history.List[0]
	switch entry.OrderStatus {
	case "Filled", "PartiallyFilledCanceled":
		return types.OrderResult{
			Status:       types.OrderAccepted,
			FillPrice:    parseFloat(entry.AvgPrice),
			FillQuantity: parseFloat(entry.CumExecQty),
		}, nil
	case "Cancelled", "Rejected", "Deactivated":
		return types.OrderResult{
			Status: types.OrderRejected,
			Reason: entry.RejectReason,
		}, nil
	}
	return types.OrderResult{Status: types.OrderPending}, nil
}

// GetWindow serves the trailing lookback bars for the instrument from
// the kline endpoint, oldest first.
func (g *BybitGateway) GetWindow(ctx context.Context, instrument string, lookback int) ([]types.OHLCV, error) {
	params := map[string]interface{}{
		"category": g.category,
		"symbol":   instrument,
		"interval": g.interval,
		"limit":    lookback,
	}

	resp, err := g.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, errors.NewGatewayError("gateway", "GetWindow", err)
	}
	if resp == nil {
		return nil, errors.New(errors.ErrorCategoryGateway, "gateway", "GetWindow", "empty response")
	}
	if resp.RetCode != 0 {
		return nil, errors.New(errors.ErrorCategoryGateway, "gateway", "GetWindow",
			fmt.Sprintf("%s (code %d)", resp.RetMsg, resp.RetCode))
	}
	return barsFromKlines(resp.Result, instrument, lookback)
}

// barsFromKlines decodes a kline payload into oldest-first bars.
func barsFromKlines(payload interface{}, instrument string, lookback int) ([]types.OHLCV, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var klines struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(raw, &klines); err != nil {
		return nil, err
	}
	if len(klines.List) < lookback {
		return nil, fmt.Errorf("%w: %s has %d bars, need %d", data.ErrInsufficientHistory, instrument, len(klines.List), lookback)
	}

	// Bybit returns newest first: [startTime, open, high, low, close, volume, turnover]
	bars := make([]types.OHLCV, 0, len(klines.List))
	for i := len(klines.List) - 1; i >= 0; i-- {
		item := klines.List[i]
		if len(item) < 6 {
			continue
		}
		ms, _ := strconv.ParseInt(item[0], 10, 64)
		bars = append(bars, types.OHLCV{
			Timestamp: time.UnixMilli(ms),
			Open:      parseFloat(item[1]),
			High:      parseFloat(item[2]),
			Low:       parseFloat(item[3]),
			Close:     parseFloat(item[4]),
			Volume:    parseFloat(item[5]),
		})
	}
	return bars, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
