package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"backtestgpt/internal/catalog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultRunHistoryLimit = 20

func registerResources(server *mcp.Server, cat *catalog.Catalog, runs RunHistoryAPI) {
	server.AddResource(&mcp.Resource{
		URI:         "catalog://indicators",
		Name:        "catalog-indicators",
		Description: "Indicator kinds the backtest engine can compute",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_ = ctx
		if cat == nil {
			return nil, fmt.Errorf("catalog unavailable")
		}
		return jsonResource(req.Params.URI, cat.Indicators())
	})

	server.AddResource(&mcp.Resource{
		URI:         "catalog://operators",
		Name:        "catalog-operators",
		Description: "Rule operators accepted in entry and exit conditions",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_ = ctx
		if cat == nil {
			return nil, fmt.Errorf("catalog unavailable")
		}
		return jsonResource(req.Params.URI, cat.Operators())
	})

	server.AddResource(&mcp.Resource{
		URI:         "catalog://templates",
		Name:        "catalog-templates",
		Description: "Named reference strategies usable as starting points",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_ = ctx
		if cat == nil {
			return nil, fmt.Errorf("catalog unavailable")
		}
		return jsonResource(req.Params.URI, cat.Templates())
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "catalog://template/{key}",
		Name:        "catalog-template-by-key",
		Description: "A single reference strategy template by key",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_ = ctx
		if cat == nil {
			return nil, fmt.Errorf("catalog unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "catalog" || parsed.Host != "template" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		key := strings.Trim(strings.TrimSpace(parsed.Path), "/")
		for _, tpl := range cat.Templates() {
			if strings.EqualFold(tpl.Key, key) {
				return jsonResource(req.Params.URI, tpl)
			}
		}
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "runs://latest{?limit}",
		Name:        "runs-latest",
		Description: "Most recent persisted backtest runs; optional limit query param",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if runs == nil {
			return nil, fmt.Errorf("run history unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "runs" || parsed.Host != "latest" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		limit := defaultRunHistoryLimit
		if rawLimit := strings.TrimSpace(parsed.Query().Get("limit")); rawLimit != "" {
			n, err := strconv.Atoi(rawLimit)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid limit: %s", rawLimit)
			}
			limit = n
		}
		if limit > 100 {
			limit = 100
		}

		list, err := runs.ListRecent(ctx, limit)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, runsListOutput{Runs: list})
	})
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
