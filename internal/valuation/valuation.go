package valuation

import (
	"math"
	"sort"
	"time"

	"tagScope/internal/model"
)

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// ToUSD values amount tokens priced at priceInBase, with the base currency at basePrice.
// It reports false when any factor is unknown or not positive.
func ToUSD(amount, priceInBase, basePrice float64) (float64, bool) {
	if !positive(amount) || !positive(priceInBase) || !positive(basePrice) {
		return 0, false
	}
	return amount * priceInBase * basePrice, true
}

// TokenUSD values amount of token using a resolved price map.
func TokenUSD(amount float64, token string, prices map[string]float64, basePrice float64) (float64, bool) {
	key, ok := model.AddressKey(token)
	if !ok {
		return 0, false
	}
	price, ok := prices[key]
	if !ok {
		return 0, false
	}
	return ToUSD(amount, price, basePrice)
}

// MarketCapUSD is price * base * supply, unknown when any factor is missing or not positive.
func MarketCapUSD(priceInBase, supply, basePrice float64) (float64, bool) {
	return ToUSD(supply, priceInBase, basePrice)
}

// CommunityMarketCaps builds one snapshot record per community. Communities
// without a usable token address are skipped.
func CommunityMarketCaps(communities []model.CommunityToken, set model.PriceSet, basePrice float64, now time.Time) []model.MarketCapRecord {
	out := make([]model.MarketCapRecord, 0, len(communities))
	for _, c := range communities {
		key, ok := model.AddressKey(c.Descriptor.Address)
		if !ok {
			continue
		}
		rec := model.MarketCapRecord{
			Tick:         c.Tick,
			Name:         c.Name,
			Token:        key,
			IsImport:     c.Descriptor.IsImport,
			BasePriceUSD: basePrice,
			SnapshotAt:   now.UTC(),
		}
		price, hasPrice := set.Prices[key]
		supply, hasSupply := set.Supplies[key]
		if hasPrice {
			rec.PriceBase = floatPtr(price)
		}
		if hasSupply {
			rec.Supply = floatPtr(supply)
		}
		if hasPrice && hasSupply {
			if mcap, ok := MarketCapUSD(price, supply, basePrice); ok {
				rec.MarketCapUSD = floatPtr(mcap)
			}
		}
		out = append(out, rec)
	}
	return out
}

// SortMarketCaps orders records by market cap, largest first; unknown caps sort last.
func SortMarketCaps(records []model.MarketCapRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return capOrZero(records[i].MarketCapUSD) > capOrZero(records[j].MarketCapUSD)
	})
}

// AgentRewardTotals values every agent's rewards in fiat. Items without a positive
// price contribute nothing. An agent holding rewards of which none could be priced,
// or any agent holding rewards under an unknown base price, has an unknown total.
func AgentRewardTotals(agents []model.AgentRewards, prices map[string]float64, basePrice float64, now time.Time) []model.AgentRewardTotal {
	out := make([]model.AgentRewardTotal, 0, len(agents))
	for _, a := range agents {
		total := model.AgentRewardTotal{
			AgentID:     a.AgentID,
			Name:        a.Name,
			Username:    a.Username,
			RewardItems: len(a.Items),
			TotalClaws:  a.TotalClaws,
			SnapshotAt:  now.UTC(),
		}
		if len(a.Items) > 0 && !positive(basePrice) {
			out = append(out, total)
			continue
		}
		var usd float64
		for _, item := range a.Items {
			if v, ok := TokenUSD(item.Amount, item.Token, prices, basePrice); ok {
				usd += v
				total.PricedItems++
			}
		}
		if len(a.Items) == 0 || total.PricedItems > 0 {
			total.RewardsUSD = floatPtr(usd)
		}
		out = append(out, total)
	}
	return out
}

// SortAgentRewards orders by fiat rewards, then by claws, both descending.
func SortAgentRewards(totals []model.AgentRewardTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		ri, rj := capOrZero(totals[i].RewardsUSD), capOrZero(totals[j].RewardsUSD)
		if ri != rj {
			return ri > rj
		}
		return totals[i].TotalClaws > totals[j].TotalClaws
	})
}

func floatPtr(v float64) *float64 {
	return &v
}

func capOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
