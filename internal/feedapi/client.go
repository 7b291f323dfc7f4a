package feedapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"tagScope/internal/metrics"
	"tagScope/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultBaseURL is the public feed API.
const DefaultBaseURL = "https://bsc-api.tagai.fun"

// ErrNotFound is returned when a single-object endpoint has no such object.
var ErrNotFound = errors.New("not found")

// Options configures a Client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RateLimit    float64
	Burst        int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client reads posts, communities, agents and rewards from the feed API.
type Client struct {
	http         *fasthttp.Client
	baseURL      string
	timeout      time.Duration
	limiter      *rate.Limiter
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger
}

// NewClient builds a Client. A zero RateLimit disables client-side throttling.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:         &fasthttp.Client{},
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		timeout:      opts.Timeout,
		limiter:      limiter,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		logger:       logger.Named("feedapi"),
	}
}

// Sort selects a community listing.
type Sort string

const (
	SortNew       Sort = "new"
	SortTrending  Sort = "trending"
	SortMarketCap Sort = "marketcap"
)

var communityPaths = map[Sort]string{
	SortNew:       "/community/communitiesByNew",
	SortTrending:  "/community/communitiesByTrending",
	SortMarketCap: "/community/communityByMarketCap",
}

// ParseSort validates a listing name; empty means SortNew.
func ParseSort(s string) (Sort, error) {
	if s == "" {
		return SortNew, nil
	}
	sort := Sort(strings.ToLower(s))
	if _, ok := communityPaths[sort]; !ok {
		return "", fmt.Errorf("unknown community sort %q", s)
	}
	return sort, nil
}

// Feed returns a page of the agent-only feed, optionally restricted to a community.
func (c *Client) Feed(ctx context.Context, page int, tick string) (FeedPage, error) {
	path := "/tagclaw/feed"
	if tick != "" {
		path += "/" + url.PathEscape(tick)
	}
	return c.feedPage(ctx, "feed", path, page)
}

// AgentFeed returns a page of one agent's posts.
func (c *Client) AgentFeed(ctx context.Context, agentID string, page int) (FeedPage, error) {
	return c.feedPage(ctx, "agent_feed", "/tagclaw/agent/"+url.PathEscape(agentID)+"/feed", page)
}

func (c *Client) feedPage(ctx context.Context, endpoint, path string, page int) (FeedPage, error) {
	body, err := c.get(ctx, endpoint, path, pageParams(page))
	if err != nil {
		return FeedPage{}, err
	}
	out := FeedPage{Success: true, Page: page}
	if len(strings.TrimSpace(string(body))) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return FeedPage{}, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return out, nil
}

// Agents returns a page of agent accounts.
func (c *Client) Agents(ctx context.Context, page int) ([]Agent, error) {
	return list[Agent](ctx, c, "agents", "/tagclaw/agents", pageParams(page))
}

// TopAgents returns agents ranked by engagement, with TotalClaws set.
func (c *Client) TopAgents(ctx context.Context, limit int) ([]Agent, error) {
	return list[Agent](ctx, c, "agents_top", "/tagclaw/agents/top", url.Values{"limit": {strconv.Itoa(limit)}})
}

// Agent returns one agent, or ErrNotFound.
func (c *Client) Agent(ctx context.Context, agentID string) (Agent, error) {
	var out Agent
	if err := c.object(ctx, "agent", "/tagclaw/agent/"+url.PathEscape(agentID), nil, &out); err != nil {
		return Agent{}, err
	}
	if out.AgentID == "" {
		return Agent{}, fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}
	return out, nil
}

// AgentsCount returns the number of agents.
func (c *Client) AgentsCount(ctx context.Context) (int64, error) {
	return c.count(ctx, "agents_count", "/tagclaw/agents/count")
}

// PostsCount returns the number of agent posts.
func (c *Client) PostsCount(ctx context.Context) (int64, error) {
	return c.count(ctx, "posts_count", "/tagclaw/posts/count")
}

// CommentsCount returns the number of agent comments.
func (c *Client) CommentsCount(ctx context.Context) (int64, error) {
	return c.count(ctx, "comments_count", "/tagclaw/comments/count")
}

// CommunitiesCount returns the number of communities.
func (c *Client) CommunitiesCount(ctx context.Context) (int64, error) {
	return c.count(ctx, "communities_count", "/community/communitiesCount")
}

// Communities returns a page of communities in the given order.
func (c *Client) Communities(ctx context.Context, sort Sort, page int) ([]Community, error) {
	path, ok := communityPaths[sort]
	if !ok {
		return nil, fmt.Errorf("unknown community sort %q", sort)
	}
	return list[Community](ctx, c, "communities_"+string(sort), path, pageParams(page))
}

// CommunityDetail returns one community, or ErrNotFound.
func (c *Client) CommunityDetail(ctx context.Context, tick string) (Community, error) {
	var out Community
	if err := c.object(ctx, "community_detail", "/community/detail", url.Values{"tick": {tick}}, &out); err != nil {
		return Community{}, err
	}
	if out.Tick == "" {
		return Community{}, fmt.Errorf("community %s: %w", tick, ErrNotFound)
	}
	return out, nil
}

// CommunityCredits returns a page of member credits for a community.
func (c *Client) CommunityCredits(ctx context.Context, tick string, page int) ([]CommunityCredit, error) {
	params := pageParams(page)
	params.Set("tick", tick)
	return list[CommunityCredit](ctx, c, "community_credits", "/community/communityCredits", params)
}

// SearchCommunities searches communities by tick.
func (c *Client) SearchCommunities(ctx context.Context, tick string) ([]Community, error) {
	return list[Community](ctx, c, "community_search", "/community/search", url.Values{"tick": {tick}})
}

// TweetDetail returns one post with curation counters, or ErrNotFound.
func (c *Client) TweetDetail(ctx context.Context, tweetID string) (TweetDetail, error) {
	var out TweetDetail
	if err := c.object(ctx, "tweet_detail", "/curation/getTweetById", url.Values{"tweetId": {tweetID}}, &out); err != nil {
		return TweetDetail{}, err
	}
	if out.TweetID == "" {
		return TweetDetail{}, fmt.Errorf("tweet %s: %w", tweetID, ErrNotFound)
	}
	return out, nil
}

// TweetReplies returns a page of replies to a post.
func (c *Client) TweetReplies(ctx context.Context, tweetID string, page int) ([]Reply, error) {
	params := url.Values{"tweetId": {tweetID}, "pages": {strconv.Itoa(page)}}
	return list[Reply](ctx, c, "tweet_replies", "/curation/getReplyOfTweet", params)
}

// TweetCurateList returns a page of curation records of a post.
func (c *Client) TweetCurateList(ctx context.Context, tweetID string, page int) ([]CurateRecord, error) {
	params := url.Values{"tweetId": {tweetID}, "pages": {strconv.Itoa(page)}}
	return list[CurateRecord](ctx, c, "tweet_curate_list", "/curation/tweetCurateList", params)
}

// CurationRewards returns a user's claimable curation rewards.
func (c *Client) CurationRewards(ctx context.Context, twitterID string) ([]CurationReward, error) {
	return list[CurationReward](ctx, c, "curation_rewards", "/curation/userCurationRewards", url.Values{"twitterId": {twitterID}})
}

// UnclaimableCurationRewards returns a user's rewards that cannot be claimed yet.
func (c *Client) UnclaimableCurationRewards(ctx context.Context, twitterID string) ([]CurationReward, error) {
	return list[CurationReward](ctx, c, "unclaimable_curation_rewards", "/curation/userUnclaimableCurationRewards", url.Values{"twitterId": {twitterID}})
}

// AgentRewardBreakdown fetches claimable and unclaimable rewards of an agent and
// keeps the lines with a token and a positive amount. Descriptors are returned
// once per token, first occurrence wins.
func (c *Client) AgentRewardBreakdown(ctx context.Context, agentID string) ([]model.RewardItem, []model.TokenDescriptor, error) {
	var claimable, unclaimable []CurationReward
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		claimable, err = c.CurationRewards(gctx, agentID)
		return err
	})
	g.Go(func() error {
		var err error
		unclaimable, err = c.UnclaimableCurationRewards(gctx, agentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("rewards of agent %s: %w", agentID, err)
	}

	var items []model.RewardItem
	var descs []model.TokenDescriptor
	seen := make(map[string]struct{})
	for _, r := range append(claimable, unclaimable...) {
		if r.Token == "" || r.Amount <= 0 {
			continue
		}
		token := strings.ToLower(r.Token)
		items = append(items, model.RewardItem{Token: token, Amount: float64(r.Amount)})
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		if d, ok := r.Descriptor(); ok {
			descs = append(descs, d)
		}
	}
	return items, descs, nil
}

func pageParams(page int) url.Values {
	return url.Values{"pages": {strconv.Itoa(page)}}
}

func list[T any](ctx context.Context, c *Client, endpoint, path string, params url.Values) ([]T, error) {
	body, err := c.get(ctx, endpoint, path, params)
	if err != nil {
		return nil, err
	}
	out, err := decodeList[T](body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	return out, nil
}

func (c *Client) object(ctx context.Context, endpoint, path string, params url.Values, out interface{}) error {
	body, err := c.get(ctx, endpoint, path, params)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) count(ctx context.Context, endpoint, path string) (int64, error) {
	body, err := c.get(ctx, endpoint, path, nil)
	if err != nil {
		return 0, err
	}
	n, err := decodeCount(body)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", endpoint, err)
	}
	return n, nil
}

// get performs a rate-limited GET with retries on transport errors, 429 and 5xx.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	var body []byte
	err := withRetry(ctx, c.maxRetries, c.retryBackoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return permanent(err)
		}
		var err error
		body, err = c.do(ctx, requestURL)
		if err != nil {
			c.logger.Debug("request failed", zap.String("endpoint", endpoint), zap.String("url", requestURL), zap.Error(err))
		}
		return err
	})
	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	metrics.APIRequests.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

func (c *Client) do(ctx context.Context, requestURL string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", requestURL, err)
	}

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusNotFound:
		return nil, permanent(fmt.Errorf("request %s: %w", requestURL, ErrNotFound))
	case status == fasthttp.StatusTooManyRequests || status >= 500:
		return nil, fmt.Errorf("request %s: status %d", requestURL, status)
	case status != fasthttp.StatusOK:
		return nil, permanent(fmt.Errorf("request %s: status %d", requestURL, status))
	}
	// The response is released on return.
	return append([]byte(nil), resp.Body()...), nil
}
