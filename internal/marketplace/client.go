package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/rickgao/trademonitor/internal/extract"
	"github.com/rickgao/trademonitor/internal/metrics"
	"github.com/rickgao/trademonitor/internal/model"
)

// Page variables holding the data we read.
const (
	CatalogVar      = "item_details"
	ItemCopiesVar   = "bc_copies_data"
	PlayerAssetsVar = "scanned_player_assets"
)

// ErrMissingVariable is returned when a page lacks an expected script variable.
var ErrMissingVariable = errors.New("page variable not found")

// Client provides typed access to marketplace pages and APIs.
type Client struct {
	baseURL   string
	apiURL    string
	transport Transport
	logger    *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for the site at baseURL and the JSON API at apiURL.
func NewClient(baseURL, apiURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiURL:  strings.TrimRight(apiURL, "/"),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewHTTPTransport(WithLogger(c.logger))
	}

	return c
}

// WithTransport sets the transport used for every request.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// CatalogItemIDs returns the IDs of every limited item, sorted ascending.
func (c *Client) CatalogItemIDs(ctx context.Context) ([]int64, error) {
	v, err := c.pageVariable(ctx, "catalog", c.baseURL+"/catalog", CatalogVar)
	if err != nil {
		return nil, err
	}

	obj, ok := v.AsObject()
	if !ok {
		return nil, fmt.Errorf("%s: expected object, got %s", CatalogVar, v.Kind())
	}

	ids := make([]int64, 0, len(obj))
	for key := range obj {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			c.logger.Debug("skipping non-numeric catalog key", "key", key)
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ItemCopies returns the per-copy ownership snapshot of one item.
func (c *Client) ItemCopies(ctx context.Context, itemID int64) (model.ItemCopies, error) {
	v, err := c.pageVariable(ctx, "item", c.baseURL+"/item/"+strconv.FormatInt(itemID, 10), ItemCopiesVar)
	if err != nil {
		return model.ItemCopies{}, err
	}

	var data bcCopiesData
	if err := v.Decode(&data); err != nil {
		return model.ItemCopies{}, fmt.Errorf("decode %s: %w", ItemCopiesVar, err)
	}

	return data.toModel(itemID), nil
}

// PastOwners returns the owners of a copy, most recent first.
func (c *Client) PastOwners(ctx context.Context, uaid int64) ([]int64, error) {
	body, err := c.get(ctx, "uaid", c.baseURL+"/uaid/"+strconv.FormatInt(uaid, 10))
	if err != nil {
		return nil, err
	}
	return extract.PastOwners(string(body))
}

// PlayerAssets returns the authoritative current holdings of a user as
// item ID -> uaids.
func (c *Client) PlayerAssets(ctx context.Context, userID int64) (map[int64][]int64, error) {
	u := c.apiURL + "/players/v1/playerassets/" + strconv.FormatInt(userID, 10)

	var resp playerAssetsResponse
	err := GetJSON(ctx, c.transport, u, &resp)
	c.record("player_assets", err)
	if err != nil {
		return nil, err
	}

	out := make(map[int64][]int64, len(resp.PlayerAssets))
	for key, uaids := range resp.PlayerAssets {
		itemID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[itemID] = uaids
	}
	return out, nil
}

// PlayerAssetHistory returns the scanned holdings of a user, including the
// time each copy was acquired, as item ID -> assets.
func (c *Client) PlayerAssetHistory(ctx context.Context, userID int64) (map[int64][]model.OwnedAsset, error) {
	v, err := c.pageVariable(ctx, "player", c.baseURL+"/player/"+strconv.FormatInt(userID, 10), PlayerAssetsVar)
	if err != nil {
		return nil, err
	}

	// Players without scanned assets render an empty array.
	if arr, ok := v.AsArray(); ok && len(arr) == 0 {
		return map[int64][]model.OwnedAsset{}, nil
	}

	var scanned map[string][][]*int64
	if err := v.Decode(&scanned); err != nil {
		return nil, fmt.Errorf("decode %s: %w", PlayerAssetsVar, err)
	}

	out := make(map[int64][]model.OwnedAsset, len(scanned))
	for key, entries := range scanned {
		itemID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		for _, e := range entries {
			asset, ok := ownedAssetFromTuple(e)
			if !ok {
				continue
			}
			out[itemID] = append(out[itemID], asset)
		}
	}
	return out, nil
}

// pageVariable fetches an HTML page and returns the named script variable.
func (c *Client) pageVariable(ctx context.Context, endpoint, u, name string) (extract.Value, error) {
	body, err := c.get(ctx, endpoint, u)
	if err != nil {
		return extract.Value{}, err
	}

	vars, err := extract.Extract(string(body))
	if err != nil {
		return extract.Value{}, err
	}

	v, ok := vars.Lookup(name)
	if !ok {
		return extract.Value{}, fmt.Errorf("%s on %s: %w", name, u, ErrMissingVariable)
	}
	return v, nil
}

func (c *Client) get(ctx context.Context, endpoint, u string) ([]byte, error) {
	body, err := GetBody(ctx, c.transport, u)
	c.record(endpoint, err)
	return body, err
}

func (c *Client) record(endpoint string, err error) {
	outcome := "ok"
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			outcome = "http_" + strconv.Itoa(se.StatusCode)
		} else {
			outcome = "error"
		}
	}
	metrics.MarketplaceRequests.WithLabelValues(endpoint, outcome).Inc()
}
