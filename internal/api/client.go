package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"rta-crawler/internal/config"

	"github.com/valyala/fasthttp"
)

// Client talks to the game's public ranked-match API and the static catalog
// host.
type Client struct {
	gameBaseURL   string
	staticBaseURL string
	client        *fasthttp.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		gameBaseURL:   cfg.GameAPIBaseURL,
		staticBaseURL: cfg.StaticAPIBaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// GetRecommendList fetches a random sample of recommended players. Distinct
// calls return different samples.
func (c *Client) GetRecommendList(ctx context.Context) (*RecommendListResponse, error) {
	url := fmt.Sprintf("%s/getRecommendList", c.gameBaseURL)
	return doPost[RecommendListResponse](ctx, c, url, nil)
}

// GetBattleList fetches the full ranked battle history of one player.
func (c *Client) GetBattleList(ctx context.Context, userID int64, world, season string) (*BattleListResponse, error) {
	url := fmt.Sprintf("%s/getBattleList", c.gameBaseURL)
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("nick_no", strconv.FormatInt(userID, 10))
	args.Set("world_code", world)
	args.Set("lang", "en")
	args.Set("season_code", season)
	return doPost[BattleListResponse](ctx, c, url, args)
}

func (c *Client) GetHeroCatalog(ctx context.Context) (*HeroCatalogResponse, error) {
	url := fmt.Sprintf("%s/epic7_hero.json", c.staticBaseURL)
	return doGet[HeroCatalogResponse](ctx, c, url)
}

func (c *Client) GetArtifactCatalog(ctx context.Context) (*ArtifactCatalogResponse, error) {
	url := fmt.Sprintf("%s/epic7_artifact.json", c.staticBaseURL)
	return doGet[ArtifactCatalogResponse](ctx, c, url)
}

func doGet[T any](ctx context.Context, client *Client, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	return execute[T](ctx, client, req)
}

func doPost[T any](ctx context.Context, client *Client, url string, args *fasthttp.Args) (*T, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	if args != nil {
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.SetBody(args.QueryString())
	}

	return execute[T](ctx, client, req)
}

func execute[T any](ctx context.Context, client *Client, req *fasthttp.Request) (*T, error) {
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: %d", resp.StatusCode())
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
