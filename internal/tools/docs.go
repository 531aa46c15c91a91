package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
)

// docPathPattern restricts get_doc to well-formed documentation paths so
// the tool cannot be steered at arbitrary hosts or parent directories.
var docPathPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9/_.-]*\.md$`)

func (r *Registry) searchDocs() tool.Config {
	return tool.Config{
		Name: "search_docs",
		Description: "Search Sentry's documentation.\n\n" +
			"Use this tool when you need to:\n" +
			"- Find out how to configure an SDK or a product feature\n" +
			"- Look up setup instructions for a platform",
		Schema: tool.Schema{
			{Name: "query", Type: tool.TypeString, Description: "What to search the documentation for.", Required: true},
			{Name: "maxResults", Type: tool.TypeInteger, Description: "Maximum number of results. Defaults to 5."},
		},
		RequiredSkills: []auth.Skill{auth.SkillDocs},
		Annotations:    tool.Annotations{ReadOnlyHint: true, OpenWorldHint: true},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			query, err := requiredStringArg(args, "query")
			if err != nil {
				return nil, err
			}
			results, err := r.fetchDocSearch(ctx, query, intArg(args, "maxResults", 5))
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1("Documentation Search")
			out.field("Query", query)
			out.blank()
			if len(results) == 0 {
				out.line("No matching documentation found.")
				return out.String(), nil
			}
			for _, result := range results {
				out.h2(result.Title)
				out.field("Path", "`"+result.Path+"`")
				if result.Snippet != "" {
					out.line(result.Snippet)
				}
				out.blank()
			}
			out.usageHint("Use get_doc with a result's path to read the full page as markdown.")
			return out.String(), nil
		},
	}
}

func (r *Registry) getDoc() tool.Config {
	return tool.Config{
		Name: "get_doc",
		Description: "Fetch a Sentry documentation page as markdown.\n\n" +
			"Use search_docs first to find the page's path.",
		Schema: tool.Schema{
			{Name: "path", Type: tool.TypeString, Description: "The documentation path, for example `platforms/python/index.md`.", Required: true},
		},
		RequiredSkills: []auth.Skill{auth.SkillDocs},
		Annotations:    tool.Annotations{ReadOnlyHint: true, OpenWorldHint: true},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			path, err := requiredStringArg(args, "path")
			if err != nil {
				return nil, err
			}
			path = strings.TrimPrefix(path, "/")
			if strings.Contains(path, "..") || !docPathPattern.MatchString(path) {
				return nil, mcperr.NewUserInputError("Invalid documentation path %q: expected a relative path ending in .md.", path)
			}

			body, err := r.fetchDocPage(ctx, path)
			if err != nil {
				return nil, err
			}
			out := &md{}
			out.h1("Documentation: " + path)
			out.line(body)
			return out.String(), nil
		},
	}
}

// docSearchResult is one hit from the documentation search endpoint.
type docSearchResult struct {
	Title   string `json:"title"`
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
}

func (r *Registry) fetchDocSearch(ctx context.Context, query string, maxResults int) ([]docSearchResult, error) {
	u := fmt.Sprintf("https://%s/api/search/?query=%s&limit=%d",
		r.deps.DocsHost, url.QueryEscape(query), maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, mcperr.NewConfigurationError(err, "Unable to reach the documentation service.")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, mcperr.NewAPIError(resp.StatusCode, "documentation search failed")
	}

	var envelope struct {
		Results []docSearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding documentation search response: %w", err)
	}
	return envelope.Results, nil
}

func (r *Registry) fetchDocPage(ctx context.Context, path string) (string, error) {
	u := "https://" + r.deps.DocsHost + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/markdown, text/plain")
	resp, err := r.deps.HTTPClient.Do(req)
	if err != nil {
		return "", mcperr.NewConfigurationError(err, "Unable to reach the documentation service.")
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", mcperr.NewUserInputError("No documentation page exists at %q.", path)
	}
	if resp.StatusCode != http.StatusOK {
		return "", mcperr.NewAPIError(resp.StatusCode, "documentation fetch failed")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
