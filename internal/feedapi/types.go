package feedapi

import (
	"tagScope/internal/model"
)

// Tweet is a feed post as served by /tagclaw/feed and the agent feeds.
type Tweet struct {
	TweetID         string        `json:"tweetId"`
	TwitterID       string        `json:"twitterId"`
	Content         string        `json:"content"`
	Tags            Tags          `json:"tags"`
	TweetTime       string        `json:"tweetTime"`
	Tick            string        `json:"tick,omitempty"`
	LikeCount       Number        `json:"likeCount"`
	RetweetCount    Number        `json:"retweetCount"`
	ReplyCount      Number        `json:"replyCount"`
	QuoteCount      Number        `json:"quoteCount"`
	TwitterName     string        `json:"twitterName,omitempty"`
	TwitterUsername string        `json:"twitterUsername,omitempty"`
	Profile         string        `json:"profile,omitempty"`
	AccountType     Number        `json:"accountType"`
	EthAddr         string        `json:"ethAddr,omitempty"`
	Followers       Number        `json:"followers"`
	Credit          Number        `json:"credit"`
	Amount          *Number       `json:"amount,omitempty"`
	Token           string        `json:"token,omitempty"`
	Version         model.Version `json:"version"`
	Pair            string        `json:"pair,omitempty"`
	DexVersion      model.Version `json:"dexVersion"`
	IsImport        Flag          `json:"isImport"`
	IsDeployTweet   Flag          `json:"isDeployTweet"`
}

// Descriptor returns the token the post is valued in, if any.
func (t Tweet) Descriptor() (model.TokenDescriptor, bool) {
	return descriptor(t.Token, t.Version, t.IsImport, t.Pair)
}

// IsAgent reports whether the author is an agent account.
func (t Tweet) IsAgent() bool {
	return t.AccountType == agentAccountType
}

// TweetDetail adds curation counters to a tweet.
type TweetDetail struct {
	Tweet
	CurateCount      Number `json:"curateCount"`
	SpaceCurateCount Number `json:"spaceCurateCount"`
}

// Reply is a comment under a tweet.
type Reply struct {
	TweetID         string `json:"tweetId"`
	ReplyID         string `json:"replyId"`
	Content         string `json:"content"`
	OperateTime     string `json:"operateTime"`
	TwitterID       string `json:"twitterId"`
	TwitterName     string `json:"twitterName,omitempty"`
	TwitterUsername string `json:"twitterUsername,omitempty"`
	Profile         string `json:"profile,omitempty"`
}

// CurateRecord is one curation of a tweet.
type CurateRecord struct {
	TweetID         string `json:"tweetId"`
	Amount          Number `json:"amount"`
	CreateAt        string `json:"createAt"`
	TwitterID       string `json:"twitterId"`
	TwitterName     string `json:"twitterName,omitempty"`
	TwitterUsername string `json:"twitterUsername,omitempty"`
	CurationVP      Number `json:"curationVp"`
	ReplyVP         Number `json:"replyVp"`
}

// FeedPage is one page of a feed.
type FeedPage struct {
	Success bool    `json:"success"`
	Tweets  []Tweet `json:"tweets"`
	HasMore bool    `json:"hasMore"`
	Page    int     `json:"page"`
	Tick    string  `json:"tick,omitempty"`
}

// Community is a token community (subtag).
type Community struct {
	Tick        string        `json:"tick"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Logo        string        `json:"logo,omitempty"`
	Tags        Tags          `json:"tags"`
	Creator     string        `json:"creator,omitempty"`
	Token       string        `json:"token,omitempty"`
	Version     model.Version `json:"version"`
	Twitter     string        `json:"twitter,omitempty"`
	Telegram    string        `json:"telegram,omitempty"`
	Official    string        `json:"official,omitempty"`
	CreateAt    string        `json:"createAt,omitempty"`
	CreatedByAI Flag          `json:"createdByAi"`
	IsImport    Flag          `json:"isImport"`
	Pair        string        `json:"pair,omitempty"`
	DexVersion  model.Version `json:"dexVersion"`
	MarketCap   *Number       `json:"marketCap,omitempty"`
}

// Descriptor returns the community token. The pool version comes from dexVersion.
func (c Community) Descriptor() (model.TokenDescriptor, bool) {
	return descriptor(c.Token, c.DexVersion, c.IsImport, c.Pair)
}

// PricingToken is the community as the valuation layer sees it.
func (c Community) PricingToken() model.CommunityToken {
	d, _ := c.Descriptor()
	return model.CommunityToken{Tick: c.Tick, Name: c.Name, Descriptor: d}
}

// CommunityCredit is a member's credit within a community.
type CommunityCredit struct {
	Credit          Number `json:"credit"`
	TwitterID       string `json:"twitterId"`
	EthAddr         string `json:"ethAddr,omitempty"`
	Profile         string `json:"profile,omitempty"`
	Followers       Number `json:"followers"`
	TwitterName     string `json:"twitterName,omitempty"`
	TwitterUsername string `json:"twitterUsername,omitempty"`
	CreditFactor    Number `json:"creditFactor"`
}

const agentAccountType = 2

// Agent is an AI agent account.
type Agent struct {
	AgentID        string `json:"agentId"`
	EthAddr        string `json:"ethAddr,omitempty"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	Profile        string `json:"profile,omitempty"`
	AccountType    Number `json:"accountType"`
	Followers      Number `json:"followers"`
	Followings     Number `json:"followings"`
	AgentStatus    Number `json:"agentStatus"`
	Description    string `json:"description,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
	OwnerTwitterID string `json:"ownerTwitterId,omitempty"`
	OwnerUsername  string `json:"ownerUsername,omitempty"`
	TotalClaws     Number `json:"totalClaws"`
}

// CurationReward is one claimable or unclaimable reward line of a user.
type CurationReward struct {
	Token    string        `json:"token"`
	Tick     string        `json:"tick,omitempty"`
	Amount   Number        `json:"amount"`
	Version  model.Version `json:"version"`
	IsImport Flag          `json:"isImport"`
	Pair     string        `json:"pair,omitempty"`
}

// Descriptor returns the reward token.
func (r CurationReward) Descriptor() (model.TokenDescriptor, bool) {
	return descriptor(r.Token, r.Version, r.IsImport, r.Pair)
}

func descriptor(token string, version model.Version, isImport Flag, pair string) (model.TokenDescriptor, bool) {
	if token == "" {
		return model.TokenDescriptor{}, false
	}
	return model.TokenDescriptor{
		Address:     token,
		Version:     version,
		IsImport:    bool(isImport),
		PairAddress: pair,
	}, true
}
