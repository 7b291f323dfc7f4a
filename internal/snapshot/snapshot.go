package snapshot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tagScope/internal/feedapi"
	"tagScope/internal/model"
	"tagScope/internal/quote"
	"tagScope/internal/valuation"
)

// agentsPageSize is the page size of /tagclaw/agents; a shorter page is the last one.
const agentsPageSize = 30

// topAgentsLimit bounds the engagement ranking used for claw counts.
const topAgentsLimit = 500

// PriceResolver is the pricing surface snapshots need.
type PriceResolver interface {
	ResolvePrices(ctx context.Context, descs []model.TokenDescriptor) (map[string]float64, error)
	ResolvePricesAndSupplies(ctx context.Context, descs []model.TokenDescriptor) (model.PriceSet, error)
}

// Feed is the feed API surface snapshots need.
type Feed interface {
	Communities(ctx context.Context, sort feedapi.Sort, page int) ([]feedapi.Community, error)
	Agents(ctx context.Context, page int) ([]feedapi.Agent, error)
	TopAgents(ctx context.Context, limit int) ([]feedapi.Agent, error)
	AgentRewardBreakdown(ctx context.Context, agentID string) ([]model.RewardItem, []model.TokenDescriptor, error)
}

// Builder values communities and agent rewards in fiat.
type Builder struct {
	feed        Feed
	resolver    PriceResolver
	quote       quote.Source
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

func NewBuilder(feed Feed, resolver PriceResolver, source quote.Source, concurrency int, logger *zap.Logger) *Builder {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		feed:        feed,
		resolver:    resolver,
		quote:       source,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger,
	}
}

// MarketCaps reads pages [first, first+pages) of a community listing and values
// each community token. Pricing or quote failures leave caps unknown.
func (b *Builder) MarketCaps(ctx context.Context, sort feedapi.Sort, first, pages int) ([]model.MarketCapRecord, error) {
	var communities []model.CommunityToken
	for page := first; page < first+pages; page++ {
		list, err := b.feed.Communities(ctx, sort, page)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			break
		}
		for _, c := range list {
			communities = append(communities, c.PricingToken())
		}
	}
	if len(communities) == 0 {
		return []model.MarketCapRecord{}, nil
	}

	descs := make([]model.TokenDescriptor, 0, len(communities))
	for _, c := range communities {
		descs = append(descs, c.Descriptor)
	}

	var (
		set       model.PriceSet
		basePrice float64
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		set, err = b.resolver.ResolvePricesAndSupplies(ctx, descs)
		if err != nil {
			b.logger.Warn("pricing failed, market caps unknown", zap.Error(err))
			set = model.NewPriceSet()
		}
	}()
	go func() {
		defer wg.Done()
		basePrice = b.basePrice(ctx)
	}()
	wg.Wait()

	records := valuation.CommunityMarketCaps(communities, set, basePrice, b.now())
	valuation.SortMarketCaps(records)
	b.logger.Info("market caps built",
		zap.Int("communities", len(communities)),
		zap.Int("priced", len(set.Prices)),
		zap.Float64("base_price_usd", basePrice),
	)
	return records, nil
}

// AgentRewards reads pages [first, first+pages) of agents and values their
// curation rewards. An agent whose rewards cannot be fetched gets an empty breakdown.
func (b *Builder) AgentRewards(ctx context.Context, first, pages int) ([]model.AgentRewardTotal, error) {
	var agents []feedapi.Agent
	for page := first; page < first+pages; page++ {
		list, err := b.feed.Agents(ctx, page)
		if err != nil {
			return nil, err
		}
		agents = append(agents, list...)
		if len(list) < agentsPageSize {
			break
		}
	}
	if len(agents) == 0 {
		return []model.AgentRewardTotal{}, nil
	}

	claws := make(map[string]int64)
	if top, err := b.feed.TopAgents(ctx, topAgentsLimit); err != nil {
		b.logger.Warn("top agents unavailable", zap.Error(err))
	} else {
		for _, a := range top {
			claws[a.AgentID] = a.TotalClaws.Int()
		}
	}

	breakdowns := make([]model.AgentRewards, len(agents))
	var (
		mu    sync.Mutex
		descs []model.TokenDescriptor
		seen  = make(map[string]struct{})
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, a := range agents {
		i, a := i, a
		g.Go(func() error {
			rewards := model.AgentRewards{AgentID: a.AgentID, Name: a.Name, Username: a.Username, TotalClaws: a.TotalClaws.Int()}
			if n, ok := claws[a.AgentID]; ok {
				rewards.TotalClaws = n
			}
			items, tokenDescs, err := b.feed.AgentRewardBreakdown(gctx, a.AgentID)
			if err != nil {
				b.logger.Debug("agent rewards unavailable", zap.String("agent", a.AgentID), zap.Error(err))
			}
			rewards.Items = items
			breakdowns[i] = rewards

			mu.Lock()
			defer mu.Unlock()
			for _, d := range tokenDescs {
				k, ok := model.AddressKey(d.Address)
				if !ok {
					continue
				}
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				descs = append(descs, d)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prices := map[string]float64{}
	var basePrice float64
	if len(descs) > 0 {
		var err error
		prices, err = b.resolver.ResolvePrices(ctx, descs)
		if err != nil {
			b.logger.Warn("pricing failed, rewards of agents holding tokens unknown", zap.Error(err))
			prices = map[string]float64{}
		}
		basePrice = b.basePrice(ctx)
	}

	totals := valuation.AgentRewardTotals(breakdowns, prices, basePrice, b.now())
	valuation.SortAgentRewards(totals)
	b.logger.Info("agent rewards built",
		zap.Int("agents", len(agents)),
		zap.Int("tokens", len(descs)),
		zap.Int("priced", len(prices)),
	)
	return totals, nil
}

func (b *Builder) basePrice(ctx context.Context) float64 {
	price, err := b.quote.BasePriceUSD(ctx)
	if err != nil {
		b.logger.Warn("base currency quote unavailable", zap.Error(err))
		return 0
	}
	return price
}
