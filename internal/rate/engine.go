package rate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"freightrate/internal/apperrors"
	"freightrate/internal/logging"
)

// Engine turns a Request into a Result. Every stage degrades to a neutral
// default on failure; only a panic escaping a stage aborts the calculation.
type Engine struct {
	regions            *RegionResolver
	seasonality        SeasonalityProvider
	seasonalityTimeout time.Duration
	log                *zap.Logger
	now                func() time.Time
}

type Option func(*Engine)

// WithSeasonalityTimeout bounds each seasonality lookup.
func WithSeasonalityTimeout(d time.Duration) Option {
	return func(e *Engine) { e.seasonalityTimeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = logging.OrNop(l) }
}

// WithClock overrides time.Now, which picks the seasonality month and times
// the calculation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine. A nil resolver resolves only the static port table.
func NewEngine(regions *RegionResolver, seasonality SeasonalityProvider, opts ...Option) *Engine {
	if regions == nil {
		regions = NewRegionResolver(nil, 0, nil)
	}
	e := &Engine{
		regions:            regions,
		seasonality:        seasonality,
		seasonalityTimeout: 3 * time.Second,
		log:                zap.NewNop(),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calculate runs the full pipeline. The returned error is non-nil only on
// critical failure, in which case Result.FinalRate is CriticalRate and the
// calculation must not be recorded in history.
func (e *Engine) Calculate(ctx context.Context, req Request) (res Result, err error) {
	start := e.now()
	if req.Weight == 0 {
		req.Weight = DefaultWeight
	}

	trace := Trace{{
		Stage: StageStart,
		Inputs: map[string]any{
			"originPortId":      req.OriginPortID,
			"destinationPortId": req.DestinationPortID,
			"containerType":     req.ContainerType,
			"weight":            traceNumber(req.Weight),
		},
		Status: StatusSuccess,
	}}

	defer func() {
		if p := recover(); p != nil {
			res, err = e.critical(req, start, trace, fmt.Errorf("%v", p))
		}
	}()

	// Index aggregation depends on nothing else in the pipeline.
	var (
		g         errgroup.Group
		weighted  WeightedIndex
		indexStep Step
	)
	g.Go(func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("aggregate indices: %v", p)
			}
		}()
		weighted, indexStep = AggregateIndices(req.Indices)
		return nil
	})

	origin := e.regions.Resolve(ctx, req.OriginPortID)
	destination := e.regions.Resolve(ctx, req.DestinationPortID)
	trace = append(trace, Step{
		Stage:  StageRegions,
		Inputs: map[string]any{"originPortId": req.OriginPortID, "destinationPortId": req.DestinationPortID},
		Result: map[string]any{"originRegion": origin, "destinationRegion": destination},
		Status: StatusSuccess,
	})

	class := NormalizeContainer(req.ContainerType)
	baseRate, baseStep := LookupBaseRate(origin, destination, class, req.BaseRates)
	trace = append(trace, baseStep)
	if baseStep.Status == StatusError {
		e.log.Error("base rate lookup failed, using fallback", zap.String("error", baseStep.Error))
	}

	if gerr := g.Wait(); gerr != nil {
		return e.critical(req, start, trace, gerr)
	}
	trace = append(trace, indexStep)
	if indexStep.Status == StatusError {
		e.log.Error("weighted index failed, using neutral index", zap.String("error", indexStep.Error))
	}

	season, seasonStep := e.fetchSeasonality(ctx, origin, destination)
	trace = append(trace, seasonStep)

	finalRate, adjustment, finalStep := computeFinalRate(baseRate, weighted.Value, season.Factor, req.SensitivityCoeff)
	trace = append(trace, finalStep)
	if finalStep.Status == StatusError {
		e.log.Error("final rate degraded to base rate", zap.String("error", finalStep.Error))
	}

	elapsed := e.now().Sub(start).Milliseconds()
	trace = append(trace, Step{
		Stage:  StageEnd,
		Result: map[string]any{"durationMs": elapsed},
		Status: StatusSuccess,
	})

	res = Result{
		FinalRate:         finalRate,
		BaseRate:          baseRate,
		WeightedIndex:     weighted.Value,
		SeasonalityFactor: season.Factor,
		Details: Details{
			OriginRegion:          &origin,
			DestinationRegion:     &destination,
			ContainerClass:        string(class),
			IndexSources:          weighted.Sources,
			SeasonalityConfidence: season.Confidence,
			SensitivityCoeff:      req.SensitivityCoeff,
			IndexAdjustment:       adjustment,
			CalculationTimeMs:     elapsed,
		},
	}
	if req.Debug {
		res.Trace = trace
	}
	e.log.Debug("freight rate calculated",
		zap.String("origin", origin.String()),
		zap.String("destination", destination.String()),
		zap.String("container", string(class)),
		zap.Float64("final_rate", finalRate),
		zap.Int64("duration_ms", elapsed))
	return res, nil
}

func (e *Engine) fetchSeasonality(ctx context.Context, origin, destination Region) (Seasonality, Step) {
	month := e.now().Month()
	step := Step{
		Stage: StageSeasonality,
		Inputs: map[string]any{
			"originRegion":      origin,
			"destinationRegion": destination,
			"currentMonth":      int(month),
		},
		Result: NeutralSeasonality,
		Status: StatusFailed,
	}
	if e.seasonality == nil {
		step.Status = StatusWarning
		step.Details = "No seasonality provider configured. Using neutral factor 1.0."
		return NeutralSeasonality, step
	}

	if e.seasonalityTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.seasonalityTimeout)
		defer cancel()
	}
	season, err := e.seasonality.SeasonalityFactor(ctx, origin, destination, month)
	if err == nil && !validSeasonality(season) {
		err = fmt.Errorf("invalid seasonality factor %v (confidence %v)", season.Factor, season.Confidence)
	}
	if err != nil {
		e.log.Error("seasonality lookup failed, using neutral factor",
			zap.String("origin", origin.String()),
			zap.String("destination", destination.String()),
			zap.Error(err))
		step.Status = StatusError
		step.Error = err.Error()
		return NeutralSeasonality, step
	}

	step.Result = season
	step.Status = StatusSuccess
	return season, step
}

func validSeasonality(s Seasonality) bool {
	return s.Factor > 0 && !math.IsInf(s.Factor, 0) &&
		!math.IsNaN(s.Confidence) && !math.IsInf(s.Confidence, 0)
}

// computeFinalRate applies
//
//	finalRate = round(max(0, baseRate * (1 + (weightedIndex-1)*sensitivity) * seasonality))
//
// A non-finite result degrades to the unrounded base rate with an Error step.
func computeFinalRate(baseRate, weightedIndex, seasonality, sensitivity float64) (float64, float64, Step) {
	step := Step{
		Stage: StageFinalRate,
		Inputs: map[string]any{
			"baseRate":          traceNumber(baseRate),
			"weightedIndex":     traceNumber(weightedIndex),
			"seasonalityFactor": traceNumber(seasonality),
			"sensitivityCoeff":  traceNumber(sensitivity),
		},
		Status: StatusFailed,
	}

	adjustment := 1 + (weightedIndex-1)*sensitivity
	raw := baseRate * adjustment * seasonality
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		step.Status = StatusError
		step.Error = fmt.Sprintf("final rate is not finite (indexAdjustment=%v)", adjustment)
		step.Result = baseRate
		return baseRate, 0, step
	}

	rounded := decimal.NewFromFloat(raw).Round(0)
	if rounded.IsNegative() {
		rounded = decimal.Zero
	}
	final := rounded.InexactFloat64()

	step.Inputs["indexAdjustment"] = decimal.NewFromFloat(adjustment).StringFixed(4)
	step.Result = final
	step.Status = StatusSuccess
	return final, adjustment, step
}

func (e *Engine) critical(req Request, start time.Time, trace Trace, cause error) (Result, error) {
	elapsed := e.now().Sub(start).Milliseconds()
	e.log.Error("critical error during freight rate calculation",
		zap.String("origin_port", req.OriginPortID),
		zap.String("destination_port", req.DestinationPortID),
		zap.Error(cause))

	res := Result{
		FinalRate: CriticalRate,
		Error:     "Failed to calculate freight rate due to a critical error.",
		Details:   Details{IndexSources: []string{}, CalculationTimeMs: elapsed},
	}
	if req.Debug {
		res.Trace = append(trace, Step{
			Stage:  StageCritical,
			Result: map[string]any{"durationMs": elapsed},
			Status: StatusFailed,
			Error:  cause.Error(),
		})
	}
	return res, apperrors.Internal("freight rate calculation failed", cause)
}
