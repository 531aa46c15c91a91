package tools

import (
	"context"
	"strings"

	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
	"github.com/sentry-mcp/gateway/internal/requestctx"
	"github.com/sentry-mcp/gateway/internal/service"
	"github.com/sentry-mcp/gateway/pkg/mcp"
)

const platformDocsTemplate = "https://docs.sentry.io/platforms/{platform}/"

// Resources returns the readable resources exposed over resources/list.
func (r *Registry) Resources() []service.Resource {
	return []service.Resource{
		{
			Descriptor: mcp.ResourceDescriptor{
				URI:         "sentry://user-session",
				Name:        "user-session",
				Description: "The authenticated user and the constraints of the current session.",
				MimeType:    "text/markdown",
			},
			Handler: r.readUserSession,
		},
		{
			Descriptor: mcp.ResourceDescriptor{
				URITemplate: platformDocsTemplate,
				Name:        "platform-docs",
				Description: "Sentry SDK documentation for a platform, for example python or javascript.",
				MimeType:    "text/markdown",
			},
			Handler: r.readPlatformDocs,
		},
	}
}

func (r *Registry) readUserSession(ctx context.Context, uri string) (mcp.ResourceContents, error) {
	sc, ok := requestctx.From(ctx)
	if !ok {
		return mcp.ResourceContents{}, mcperr.NewConfigurationError(nil, "No authorization context is available.")
	}

	out := &md{}
	out.h1("Session")
	out.field("User ID", sc.UserID)
	out.field("Upstream host", sc.UpstreamHost)
	if sc.Constraints.OrganizationSlug != "" {
		out.field("Organization", sc.Constraints.OrganizationSlug)
	}
	if sc.Constraints.ProjectSlug != "" {
		out.field("Project", sc.Constraints.ProjectSlug)
	}
	return mcp.ResourceContents{URI: uri, MimeType: "text/markdown", Text: out.String()}, nil
}

// readPlatformDocs substitutes the platform into the template URI and
// fetches the page.
func (r *Registry) readPlatformDocs(ctx context.Context, uri string) (mcp.ResourceContents, error) {
	prefix := strings.SplitN(platformDocsTemplate, "{", 2)[0]
	platform := strings.Trim(strings.TrimPrefix(uri, prefix), "/")
	if platform == "" || strings.ContainsAny(platform, "./") {
		return mcp.ResourceContents{}, mcperr.NewUserInputError("Invalid platform %q.", platform)
	}

	body, err := r.fetchDocPage(ctx, "platforms/"+platform+"/index.md")
	if err != nil {
		return mcp.ResourceContents{}, err
	}
	return mcp.ResourceContents{URI: uri, MimeType: "text/markdown", Text: body}, nil
}
