package pricing

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tagScope/internal/chain"
	"tagScope/internal/contracts"
	"tagScope/internal/metrics"
	"tagScope/internal/model"
)

const (
	strategyBondingCurve = "bonding_curve"
	strategyImported     = "imported"
)

// Resolver prices tokens from batched chain reads. It holds no per-call state;
// every resolution is an independent read of the chain.
type Resolver struct {
	reader     chain.BatchReader
	deployment contracts.Deployment
	logger     *zap.Logger
}

// NewResolver builds a Resolver reading through reader.
func NewResolver(reader chain.BatchReader, deployment contracts.Deployment, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{reader: reader, deployment: deployment, logger: logger}
}

// ResolvePrices returns unit prices in the base currency keyed by lower-cased address.
func (r *Resolver) ResolvePrices(ctx context.Context, descs []model.TokenDescriptor) (map[string]float64, error) {
	set, err := r.resolve(ctx, descs, false)
	if err != nil {
		return nil, err
	}
	return set.Prices, nil
}

// ResolvePricesAndSupplies returns prices and total supplies from the same reads.
func (r *Resolver) ResolvePricesAndSupplies(ctx context.Context, descs []model.TokenDescriptor) (model.PriceSet, error) {
	return r.resolve(ctx, descs, true)
}

// ResolveSupplies reads totalSupply for every descriptor with a valid address.
func (r *Resolver) ResolveSupplies(ctx context.Context, descs []model.TokenDescriptor) (map[string]float64, error) {
	tokens := ClassifySupplyTokens(descs)
	if len(tokens) == 0 {
		return map[string]float64{}, nil
	}
	calls, err := planSupplies(tokens)
	if err != nil {
		return nil, err
	}
	results, err := r.reader.Read(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("read supplies: %w", err)
	}
	supplies, err := decodeSupplies(tokens, results, r.logger)
	if err != nil {
		return nil, fmt.Errorf("decode supplies: %w", err)
	}
	r.logger.Debug("supplies resolved", zap.Int("tokens", len(tokens)), zap.Int("supplies", len(supplies)))
	return supplies, nil
}

func (r *Resolver) resolve(ctx context.Context, descs []model.TokenDescriptor, withSupply bool) (model.PriceSet, error) {
	out := model.NewPriceSet()
	work := Classify(descs)
	if work.Empty() {
		return out, nil
	}

	var curve, imported model.PriceSet
	g, gctx := errgroup.WithContext(ctx)
	if len(work.BondingCurve) > 0 {
		g.Go(func() error {
			var err error
			curve, err = r.resolveBondingCurve(gctx, work.BondingCurve)
			return err
		})
	}
	if len(work.Imported) > 0 {
		g.Go(func() error {
			var err error
			imported, err = r.resolveImported(gctx, work.Imported, withSupply)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return model.PriceSet{}, err
	}

	if curve.Prices != nil {
		out.Merge(curve)
	}
	if imported.Prices != nil {
		out.Merge(imported)
	}
	if !withSupply {
		out.Supplies = map[string]float64{}
	}
	r.logger.Debug("prices resolved",
		zap.Int("bonding_curve", len(work.BondingCurve)),
		zap.Int("imported", len(work.Imported)),
		zap.Int("prices", len(out.Prices)),
		zap.Int("supplies", len(out.Supplies)),
	)
	return out, nil
}

func (r *Resolver) resolveBondingCurve(ctx context.Context, tokens []CurveToken) (model.PriceSet, error) {
	calls, err := planRoundOne(tokens, r.deployment)
	if err != nil {
		return model.PriceSet{}, err
	}
	results, err := r.reader.Read(ctx, calls)
	if err != nil {
		return model.PriceSet{}, fmt.Errorf("bonding curve round one: %w", err)
	}
	infos, err := decodeRoundOne(tokens, results, r.logger)
	if err != nil {
		return model.PriceSet{}, fmt.Errorf("bonding curve round one: %w", err)
	}

	plan, err := planRoundTwo(tokens, infos, r.deployment)
	if err != nil {
		return model.PriceSet{}, err
	}
	results, err = r.reader.Read(ctx, plan.Calls)
	if err != nil {
		return model.PriceSet{}, fmt.Errorf("bonding curve round two: %w", err)
	}
	prices, err := decodeRoundTwo(plan, results, r.logger)
	if err != nil {
		return model.PriceSet{}, fmt.Errorf("bonding curve round two: %w", err)
	}

	for _, step := range plan.Steps {
		if _, ok := prices[step.Token.Key]; ok {
			metrics.ResolvedTokens.WithLabelValues(strategyBondingCurve, step.Path.String()).Inc()
		} else {
			metrics.OmittedTokens.WithLabelValues(strategyBondingCurve).Inc()
		}
	}
	return model.PriceSet{Prices: prices, Supplies: roundOneSupplies(tokens, infos)}, nil
}

func (r *Resolver) resolveImported(ctx context.Context, tokens []ImportToken, withSupply bool) (model.PriceSet, error) {
	calls, err := planImport(tokens, withSupply)
	if err != nil {
		return model.PriceSet{}, err
	}
	results, err := r.reader.Read(ctx, calls)
	if err != nil {
		return model.PriceSet{}, fmt.Errorf("imported tokens: %w", err)
	}
	set, err := decodeImport(tokens, results, withSupply, r.logger)
	if err != nil {
		return model.PriceSet{}, fmt.Errorf("imported tokens: %w", err)
	}
	priced := len(set.Prices)
	metrics.ResolvedTokens.WithLabelValues(strategyImported, pathDEX.String()).Add(float64(priced))
	metrics.OmittedTokens.WithLabelValues(strategyImported).Add(float64(len(tokens) - priced))
	return set, nil
}
