package model

import "time"

// PriceSet holds resolved unit prices (in the base currency) and supplies, keyed by lower-cased address.
// A missing key means unknown.
type PriceSet struct {
	Prices   map[string]float64 `json:"prices"`
	Supplies map[string]float64 `json:"supplies"`
}

// NewPriceSet returns a PriceSet with empty, non-nil maps.
func NewPriceSet() PriceSet {
	return PriceSet{
		Prices:   make(map[string]float64),
		Supplies: make(map[string]float64),
	}
}

// Merge copies every entry of other into p.
func (p PriceSet) Merge(other PriceSet) {
	for k, v := range other.Prices {
		p.Prices[k] = v
	}
	for k, v := range other.Supplies {
		p.Supplies[k] = v
	}
}

// MarketCapRecord is a point-in-time community market-cap snapshot. Nil fields are unknown.
type MarketCapRecord struct {
	Tick         string    `json:"tick"`
	Name         string    `json:"name"`
	Token        string    `json:"token"`
	IsImport     bool      `json:"is_import"`
	PriceBase    *float64  `json:"price_base"`
	Supply       *float64  `json:"supply"`
	BasePriceUSD float64   `json:"base_price_usd"`
	MarketCapUSD *float64  `json:"market_cap_usd"`
	SnapshotAt   time.Time `json:"snapshot_at"`
}

// RewardItem is one token-denominated reward owed to an agent.
type RewardItem struct {
	Token  string  `json:"token"`
	Amount float64 `json:"amount"`
}

// AgentRewardTotal is the fiat value of an agent's curation rewards.
// RewardsUSD is nil when the base-currency quote is unknown.
type AgentRewardTotal struct {
	AgentID     string    `json:"agent_id"`
	Name        string    `json:"name"`
	Username    string    `json:"username"`
	RewardItems int       `json:"reward_items"`
	PricedItems int       `json:"priced_items"`
	RewardsUSD  *float64  `json:"rewards_usd"`
	TotalClaws  int64     `json:"total_claws"`
	SnapshotAt  time.Time `json:"snapshot_at"`
}

// CommunityToken is the pricing view of a community: its tick and token descriptor.
type CommunityToken struct {
	Tick       string
	Name       string
	Descriptor TokenDescriptor
}

// AgentRewards is an agent's reward breakdown before valuation.
type AgentRewards struct {
	AgentID    string
	Name       string
	Username   string
	TotalClaws int64
	Items      []RewardItem
}
