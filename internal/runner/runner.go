package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/strategy-engine/internal/errors"
	"github.com/quantfold/strategy-engine/internal/gateway"
	"github.com/quantfold/strategy-engine/internal/indicators"
	"github.com/quantfold/strategy-engine/internal/ledger"
	"github.com/quantfold/strategy-engine/internal/logger"
	"github.com/quantfold/strategy-engine/internal/monitoring"
	"github.com/quantfold/strategy-engine/internal/risk"
	"github.com/quantfold/strategy-engine/internal/sizing"
	"github.com/quantfold/strategy-engine/internal/strategy"
	"github.com/quantfold/strategy-engine/pkg/data"
	"github.com/quantfold/strategy-engine/pkg/types"
)

// Config holds the evaluation-loop parameters.
type Config struct {
	Lookback            int           // bars fetched per instrument per tick
	Equity              float64       // account equity used for sizing
	Parallelism         int           // concurrent instrument evaluations
	ATRPeriod           int           // ATR period used for sizing
	DedupeBars          int           // signal cooldown in ticks; 0 disables
	SubmitTimeout       time.Duration // per-order gateway deadline
	Interval            time.Duration // bar interval, for window gap checks
	VolatilityLookback  int           // bars for the dampening estimate; 0 disables
	VolatilityThreshold float64       // annualized vol above which sizing shrinks
	BarsPerYear         float64
}

func DefaultConfig() Config {
	return Config{
		Lookback:      250,
		Equity:        10000,
		Parallelism:   4,
		ATRPeriod:     14,
		DedupeBars:    5,
		SubmitTimeout: 10 * time.Second,
		Interval:      time.Hour,
		BarsPerYear:   365 * 24,
	}
}

// TickReport summarizes one full evaluation pass across instruments.
type TickReport struct {
	Signals          []types.Signal
	Diagnostics      []strategy.Diagnostic
	EntriesSubmitted int
	ExitsSubmitted   int
	Drops            int
	Rejections       int
	Errors           []error
}

// pendingOrder tracks an order the gateway acknowledged but has not yet
// resolved, so the next tick can finish its position transition.
type pendingOrder struct {
	clientOrderID string
	instrument    string
	strategyID    string
	reservationID string
	exit          bool
}

// Runner drives the per-tick pipeline: resolve in-flight orders, fetch
// windows, run every strategy, evaluate exits before entries, size the
// surviving signals and push admitted orders through the gateway.
// Instruments are evaluated concurrently; all shared state behind the
// runner is mutex-guarded or owned by a collaborator that locks itself.
type Runner struct {
	cfg        Config
	source     data.MarketDataSource
	strategies []strategy.Strategy
	sizer      *sizing.Sizer
	riskMgr    *risk.Manager
	book       *ledger.Ledger
	gate       *ledger.Gate
	gw         gateway.OrderGateway
	log        *logger.Logger
	health     *monitoring.HealthChecker

	mu       sync.Mutex
	caches   map[string]*indicators.Cache
	pending  map[string]pendingOrder // keyed by client order id
	lastSeen map[string]int          // signal hash -> tick index
	tick     int
}

func New(cfg Config, source data.MarketDataSource, strategies []strategy.Strategy,
	sizer *sizing.Sizer, riskMgr *risk.Manager, book *ledger.Ledger, gate *ledger.Gate,
	gw gateway.OrderGateway, log *logger.Logger, health *monitoring.HealthChecker) *Runner {

	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		strategies: strategies,
		sizer:      sizer,
		riskMgr:    riskMgr,
		book:       book,
		gate:       gate,
		gw:         gw,
		log:        log,
		health:     health,
		caches:     make(map[string]*indicators.Cache),
		pending:    make(map[string]pendingOrder),
		lastSeen:   make(map[string]int),
	}
}

// Run evaluates every interval until the context is cancelled.
func (r *Runner) Run(ctx context.Context, instruments []string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := r.EvaluateTick(ctx, instruments)
		if err != nil {
			return err
		}
		for _, evalErr := range report.Errors {
			r.log.LogError("tick", evalErr)
		}
		if r.health != nil {
			r.health.RecordTick()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// EvaluateTick runs one full pass. It returns an error only when the
// context is cancelled; everything else lands in the report.
func (r *Runner) EvaluateTick(ctx context.Context, instruments []string) (*TickReport, error) {
	r.mu.Lock()
	r.tick++
	r.mu.Unlock()

	report := &TickReport{}
	var reportMu sync.Mutex

	r.resolvePending(ctx, report, &reportMu)

	sem := make(chan struct{}, r.cfg.Parallelism)
	var wg sync.WaitGroup
	for _, instrument := range instruments {
		select {
		case <-ctx.Done():
			wg.Wait()
			return report, ctx.Err()
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(instrument string) {
			defer wg.Done()
			defer func() { <-sem }()
			r.evaluateInstrument(ctx, instrument, report, &reportMu)
		}(instrument)
	}
	wg.Wait()

	monitoring.SetOpenPositions(r.riskMgr.OpenCount())
	for _, rec := range r.book.Snapshot() {
		monitoring.SetCommittedNotional(rec.Instrument, rec.CommittedNotional)
	}
	return report, nil
}

// resolvePending polls the gateway for orders still in flight from prior
// ticks and finishes their position and ledger transitions.
func (r *Runner) resolvePending(ctx context.Context, report *TickReport, reportMu *sync.Mutex) {
	r.mu.Lock()
	inFlight := make([]pendingOrder, 0, len(r.pending))
	for _, po := range r.pending {
		inFlight = append(inFlight, po)
	}
	r.mu.Unlock()

	for _, po := range inFlight {
		result, err := r.gw.CheckOrder(ctx, po.instrument, po.clientOrderID)
		if err != nil {
			reportMu.Lock()
			report.Errors = append(report.Errors, err)
			reportMu.Unlock()
			monitoring.RecordError(string(errors.ErrorCategoryGateway))
			continue
		}
		if result.Status == types.OrderPending {
			continue
		}

		r.mu.Lock()
		delete(r.pending, po.clientOrderID)
		r.mu.Unlock()

		if po.exit {
			r.settleExit(po, result)
		} else {
			r.settleEntry(po, result)
		}
	}
}

func (r *Runner) settleEntry(po pendingOrder, result types.OrderResult) {
	switch result.Status {
	case types.OrderAccepted:
		if err := r.riskMgr.MarkOpen(po.instrument, po.strategyID, result.FillPrice, result.FillQuantity, time.Now()); err != nil {
			r.log.LogError("settle entry", err)
			return
		}
		if err := r.book.Confirm(po.reservationID, result.FillPrice*result.FillQuantity); err != nil {
			r.log.LogError("settle entry", err)
		}
		monitoring.RecordOrder(po.instrument, "FILLED")
	case types.OrderRejected:
		r.riskMgr.CancelPending(po.instrument, po.strategyID)
		r.book.Release(po.reservationID)
		r.log.LogRejection(po.instrument, "GATEWAY", result.Reason)
		monitoring.RecordOrder(po.instrument, "REJECTED")
	}
}

func (r *Runner) settleExit(po pendingOrder, result types.OrderResult) {
	switch result.Status {
	case types.OrderAccepted:
		pos, ok := r.riskMgr.Position(po.instrument, po.strategyID)
		if err := r.riskMgr.MarkClosed(po.instrument, po.strategyID, result.FillPrice, time.Now()); err != nil {
			r.log.LogError("settle exit", err)
			return
		}
		if err := r.book.Confirm(po.reservationID, 0); err != nil {
			r.log.LogError("settle exit", err)
		}
		if ok {
			r.book.CloseExposure(pos.ReservationID)
			monitoring.RecordExit(po.strategyID, string(pos.ExitReason))
		}
		monitoring.RecordOrder(po.instrument, "FILLED")
	case types.OrderRejected:
		// Position stays CLOSING; the next tick retries the exit order.
		r.book.Release(po.reservationID)
		r.log.LogRejection(po.instrument, "GATEWAY", result.Reason)
		monitoring.RecordOrder(po.instrument, "REJECTED")
	}
}

func (r *Runner) evaluateInstrument(ctx context.Context, instrument string, report *TickReport, reportMu *sync.Mutex) {
	window, err := r.source.GetWindow(ctx, instrument, r.cfg.Lookback)
	if err != nil {
		if stderrors.Is(err, data.ErrInsufficientHistory) {
			reportMu.Lock()
			report.Diagnostics = append(report.Diagnostics, strategy.Diagnostic{
				Instrument: instrument,
				Code:       strategy.DiagInsufficientHistory,
				Message:    err.Error(),
			})
			reportMu.Unlock()
			return
		}
		reportMu.Lock()
		report.Errors = append(report.Errors, err)
		reportMu.Unlock()
		monitoring.RecordError(string(errors.ErrorCategoryData))
		return
	}

	cache := r.cacheFor(instrument)
	cache.SetWindow(window)
	bar := window[len(window)-1]

	var signals []types.Signal
	for _, strat := range r.strategies {
		result, err := strat.GenerateSignals(instrument, window, cache)
		if err != nil {
			reportMu.Lock()
			report.Errors = append(report.Errors, err)
			reportMu.Unlock()
			monitoring.RecordError(string(errors.Category(err)))
			r.log.LogError(fmt.Sprintf("strategy %s on %s", strat.ID(), instrument), err)
			continue
		}
		for _, sig := range result.Signals {
			if sig.Instrument != instrument {
				reportMu.Lock()
				report.Errors = append(report.Errors, errors.Newf(errors.ErrorCategoryContract, "runner", "EvaluateTick",
					"strategy %s returned signal for %s while evaluating %s", strat.ID(), sig.Instrument, instrument))
				reportMu.Unlock()
				continue
			}
			signals = append(signals, sig)
			monitoring.RecordSignal(sig.StrategyID, sig.Action.String())
		}
		reportMu.Lock()
		report.Signals = append(report.Signals, result.Signals...)
		report.Diagnostics = append(report.Diagnostics, result.Diagnostics...)
		reportMu.Unlock()
	}

	// Exits run before entries so capital and position slots freed this
	// tick are available to new candidates.
	decisions := r.riskMgr.EvaluateExits(instrument, bar, signals)
	for _, decision := range decisions {
		r.log.LogExit(decision.Position, decision.Reason, decision.Price)
	}
	r.submitExits(ctx, instrument, bar, report, reportMu)

	for _, sig := range signals {
		if sig.Action == types.ActionExit {
			continue
		}
		r.processEntry(ctx, sig, window, cache, report, reportMu)
	}
}

// submitExits sends exit orders for every CLOSING position on the
// instrument without an order already in flight. This covers both fresh
// exit decisions and retries after earlier rejections.
func (r *Runner) submitExits(ctx context.Context, instrument string, bar types.OHLCV, report *TickReport, reportMu *sync.Mutex) {
	for _, pos := range r.riskMgr.ClosingPositions(instrument) {
		if r.hasInFlightExit(pos) {
			continue
		}

		action := types.ActionSell
		if !pos.IsLong() {
			action = types.ActionBuy
		}
		quantity := pos.Quantity
		if quantity < 0 {
			quantity = -quantity
		}
		order := types.OrderRequest{
			Instrument:       instrument,
			Action:           action,
			Quantity:         quantity,
			NotionalEstimate: quantity * bar.Close,
			StrategyID:       pos.StrategyID,
			ClientOrderID:    uuid.NewString(),
			SubmittedAt:      time.Now(),
		}

		resID, rejection := r.gate.AdmitExit(order, true)
		if rejection != nil {
			reportMu.Lock()
			report.Rejections++
			reportMu.Unlock()
			monitoring.RecordRejection(instrument, string(rejection.Code))
			r.log.LogRejection(instrument, string(rejection.Code), rejection.Message)
			continue
		}

		reportMu.Lock()
		report.ExitsSubmitted++
		reportMu.Unlock()
		r.submitOrder(ctx, order, pendingOrder{
			clientOrderID: order.ClientOrderID,
			instrument:    instrument,
			strategyID:    pos.StrategyID,
			reservationID: resID,
			exit:          true,
		}, report, reportMu)
	}
}

func (r *Runner) processEntry(ctx context.Context, sig types.Signal, window []types.OHLCV,
	cache *indicators.Cache, report *TickReport, reportMu *sync.Mutex) {

	if !r.riskMgr.CanOpen(sig.Instrument, sig.StrategyID) {
		return
	}
	if r.onCooldown(sig) {
		return
	}

	atr, ok := cache.ATR(window, r.cfg.ATRPeriod).Last()
	if !ok {
		atr = 0
	}

	adjustments := []float64{sizing.StrengthScaling(sig.Strength)}
	if r.cfg.VolatilityLookback > 0 {
		adjustments = append(adjustments,
			sizing.VolatilityDampening(window, r.cfg.VolatilityLookback, r.cfg.VolatilityThreshold, r.cfg.BarsPerYear))
	}

	quantity, drop := r.sizer.Size(sig, r.cfg.Equity, atr, adjustments...)
	if drop != nil {
		reportMu.Lock()
		report.Drops++
		reportMu.Unlock()
		monitoring.RecordDrop(sig.StrategyID, string(drop.Reason))
		r.log.Info("Signal dropped for %s: %s (%s)", sig.Instrument, drop.Reason, drop.Message)
		return
	}
	r.log.LogSignal(sig, quantity)

	order := types.OrderRequest{
		Instrument:       sig.Instrument,
		Action:           sig.Action,
		Quantity:         quantity,
		NotionalEstimate: quantity * sig.ReferencePrice,
		StrategyID:       sig.StrategyID,
		ClientOrderID:    uuid.NewString(),
		SubmittedAt:      time.Now(),
	}

	resID, rejection := r.gate.AdmitEntry(order)
	if rejection != nil {
		reportMu.Lock()
		report.Rejections++
		reportMu.Unlock()
		monitoring.RecordRejection(sig.Instrument, string(rejection.Code))
		r.log.LogRejection(sig.Instrument, string(rejection.Code), rejection.Message)
		return
	}

	if _, err := r.riskMgr.OpenPending(sig, quantity, resID); err != nil {
		r.book.Release(resID)
		reportMu.Lock()
		report.Errors = append(report.Errors, err)
		reportMu.Unlock()
		return
	}
	r.markCooldown(sig)

	reportMu.Lock()
	report.EntriesSubmitted++
	reportMu.Unlock()
	r.submitOrder(ctx, order, pendingOrder{
		clientOrderID: order.ClientOrderID,
		instrument:    sig.Instrument,
		strategyID:    sig.StrategyID,
		reservationID: resID,
		exit:          false,
	}, report, reportMu)
}

// submitOrder pushes one admitted order to the gateway and resolves its
// reservation on every outcome path.
func (r *Runner) submitOrder(ctx context.Context, order types.OrderRequest, po pendingOrder,
	report *TickReport, reportMu *sync.Mutex) {

	subCtx := ctx
	if r.cfg.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithTimeout(ctx, r.cfg.SubmitTimeout)
		defer cancel()
	}

	r.log.LogOrderSubmission(order)
	result, err := r.gw.Submit(subCtx, order)
	if err != nil {
		r.book.Release(po.reservationID)
		if !po.exit {
			r.riskMgr.CancelPending(po.instrument, po.strategyID)
		}
		reportMu.Lock()
		report.Errors = append(report.Errors, err)
		reportMu.Unlock()
		monitoring.RecordError(string(errors.Category(err)))
		monitoring.RecordOrder(po.instrument, "ERROR")
		return
	}

	if result.Status == types.OrderPending {
		r.mu.Lock()
		r.pending[po.clientOrderID] = po
		r.mu.Unlock()
		monitoring.RecordOrder(po.instrument, "PENDING")
		return
	}
	if po.exit {
		r.settleExit(po, result)
	} else {
		r.settleEntry(po, result)
	}
}

func (r *Runner) cacheFor(instrument string) *indicators.Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	cache, ok := r.caches[instrument]
	if !ok {
		cache = indicators.NewCache()
		r.caches[instrument] = cache
	}
	return cache
}

func (r *Runner) hasInFlightExit(pos *types.Position) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, po := range r.pending {
		if po.exit && po.instrument == pos.Instrument && po.strategyID == pos.StrategyID {
			return true
		}
	}
	return false
}

func (r *Runner) onCooldown(sig types.Signal) bool {
	if r.cfg.DedupeBars <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastSeen[sig.Hash()]
	return ok && r.tick-last < r.cfg.DedupeBars
}

func (r *Runner) markCooldown(sig types.Signal) {
	if r.cfg.DedupeBars <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen[sig.Hash()] = r.tick
}
