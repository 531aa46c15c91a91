package sentryapi

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
)

// GetAuthenticatedUser returns the user the access token belongs to.
func (c *Client) GetAuthenticatedUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "/auth/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListOrganizations returns every organization the user can see.
//
// For the SaaS host the user's organizations are sharded by region: the
// region list is fetched first, then one /organizations/ call per region
// runs in parallel and the results are concatenated. A 404 from the
// regions endpoint (older self-hosted builds proxying the SaaS host name)
// falls back to a single /organizations/ call. Any other host queries
// /organizations/ directly.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	if !IsSaaSHost(c.host) {
		return c.listOrganizationsDirect(ctx)
	}

	var regions regionsResponse
	if err := c.get(ctx, "/users/me/regions/", nil, &regions); err != nil {
		if mcperr.IsNotFound(err) {
			return c.listOrganizationsDirect(ctx)
		}
		return nil, err
	}

	results := make([][]Organization, len(regions.Regions))
	g, gctx := errgroup.WithContext(ctx)
	for i, region := range regions.Regions {
		g.Go(func() error {
			regionClient := c.WithRegionURL(region.URL)
			orgs, err := regionClient.listOrganizationsDirect(gctx)
			if err != nil {
				return fmt.Errorf("listing organizations in region %s: %w", region.Name, err)
			}
			results[i] = orgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Regions are commutative; the result is the concatenation in region order.
	var all []Organization
	for _, orgs := range results {
		all = append(all, orgs...)
	}
	return all, nil
}

func (c *Client) listOrganizationsDirect(ctx context.Context) ([]Organization, error) {
	var orgs []Organization
	if err := c.get(ctx, "/organizations/", nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// GetOrganization returns a single organization by slug.
func (c *Client) GetOrganization(ctx context.Context, slug string) (*Organization, error) {
	var org Organization
	if err := c.get(ctx, "/organizations/"+slug+"/", nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}
