package sentryapi

import (
	"context"
	"net/url"
)

// ListTeams returns the teams of an organization.
func (c *Client) ListTeams(ctx context.Context, org string) ([]Team, error) {
	var teams []Team
	if err := c.get(ctx, "/organizations/"+org+"/teams/", nil, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// CreateTeam creates a team in an organization.
func (c *Client) CreateTeam(ctx context.Context, org, name string) (*Team, error) {
	var team Team
	body := map[string]string{"name": name}
	if err := c.post(ctx, "/organizations/"+org+"/teams/", body, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// ListProjects returns the projects of an organization.
func (c *Client) ListProjects(ctx context.Context, org string) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "/organizations/"+org+"/projects/", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject returns a single project by slug or numeric ID.
func (c *Client) GetProject(ctx context.Context, org, project string) (*Project, error) {
	var p Project
	if err := c.get(ctx, "/projects/"+org+"/"+project+"/", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a project under the given team.
func (c *Client) CreateProject(ctx context.Context, org, team, name, platform string) (*Project, error) {
	body := map[string]string{"name": name}
	if platform != "" {
		body["platform"] = platform
	}
	var project Project
	if err := c.post(ctx, "/teams/"+org+"/"+team+"/projects/", body, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateProject updates mutable project fields.
func (c *Client) UpdateProject(ctx context.Context, org, project string, update ProjectUpdate) (*Project, error) {
	var updated Project
	if err := c.put(ctx, "/projects/"+org+"/"+project+"/", update, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// AddTeamToProject grants a team access to a project.
func (c *Client) AddTeamToProject(ctx context.Context, org, project, team string) error {
	return c.post(ctx, "/projects/"+org+"/"+project+"/teams/"+team+"/", struct{}{}, nil)
}

// CreateClientKey creates a client key (DSN) on a project.
func (c *Client) CreateClientKey(ctx context.Context, org, project, name string) (*ClientKey, error) {
	body := map[string]string{}
	if name != "" {
		body["name"] = name
	}
	var key ClientKey
	if err := c.post(ctx, "/projects/"+org+"/"+project+"/keys/", body, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// ListClientKeys returns the client keys (DSNs) of a project.
func (c *Client) ListClientKeys(ctx context.Context, org, project string) ([]ClientKey, error) {
	var keys []ClientKey
	if err := c.get(ctx, "/projects/"+org+"/"+project+"/keys/", nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// ListReleasesParams filters a release listing.
type ListReleasesParams struct {
	Organization string
	Project      string
	Query        string
}

// ListReleases returns releases for an organization, optionally narrowed
// to a project or a search query.
func (c *Client) ListReleases(ctx context.Context, p ListReleasesParams) ([]Release, error) {
	path := "/organizations/" + p.Organization + "/releases/"
	if p.Project != "" {
		path = "/projects/" + p.Organization + "/" + p.Project + "/releases/"
	}
	query := url.Values{}
	if p.Query != "" {
		query.Set("query", p.Query)
	}
	var releases []Release
	if err := c.get(ctx, path, query, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// ListTagsParams filters a tag listing.
type ListTagsParams struct {
	Organization string
	// Dataset is "errors" or "search_issues".
	Dataset string
	Project string
}

// ListTags returns the tag keys recorded for a dataset.
func (c *Client) ListTags(ctx context.Context, p ListTagsParams) ([]Tag, error) {
	query := url.Values{}
	if p.Dataset != "" {
		query.Set("dataset", p.Dataset)
	}
	if p.Project != "" {
		query.Set("project", p.Project)
	}
	var tags []Tag
	if err := c.get(ctx, "/organizations/"+p.Organization+"/tags/", query, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
