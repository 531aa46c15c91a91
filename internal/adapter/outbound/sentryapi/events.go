package sentryapi

import (
	"context"
	"fmt"
	"net/url"
)

// Dataset identifiers accepted by SearchEvents.
const (
	DatasetErrors = "errors"
	DatasetSpans  = "spans"
	DatasetLogs   = "logs"
	// datasetOurlogs is the upstream's wire name for the logs dataset.
	datasetOurlogs = "ourlogs"
)

// SearchErrors queries the errors dataset through the Discover builder.
func (c *Client) SearchErrors(ctx context.Context, org string, p SearchParams) (*EventsResponse, error) {
	return c.searchEvents(ctx, org, buildDiscoverQuery(p))
}

// SearchSpans queries the spans dataset through the EAP builder.
func (c *Client) SearchSpans(ctx context.Context, org string, p SearchParams) (*EventsResponse, error) {
	return c.searchEvents(ctx, org, buildEAPQuery(p, DatasetSpans))
}

// SearchEvents routes a search to the builder matching the dataset:
// errors uses Discover, spans and logs use EAP (logs mapped to ourlogs).
func (c *Client) SearchEvents(ctx context.Context, org, dataset string, p SearchParams) (*EventsResponse, error) {
	switch dataset {
	case DatasetErrors:
		return c.searchEvents(ctx, org, buildDiscoverQuery(p))
	case DatasetSpans:
		return c.searchEvents(ctx, org, buildEAPQuery(p, DatasetSpans))
	case DatasetLogs, datasetOurlogs:
		return c.searchEvents(ctx, org, buildEAPQuery(p, datasetOurlogs))
	default:
		return nil, fmt.Errorf("unknown dataset %q", dataset)
	}
}

func (c *Client) searchEvents(ctx context.Context, org string, query url.Values) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.get(ctx, "/organizations/"+org+"/events/", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
