package sentryapi

import (
	"context"
	"encoding/json"
	"mime"
	"net/url"
	"strconv"
)

// IssueSort enumerates the accepted issue list sort orders.
var issueSorts = map[string]struct{}{
	"user": {}, "freq": {}, "date": {}, "new": {},
}

// ListIssuesParams filters an issue listing.
type ListIssuesParams struct {
	Organization string
	Project      string
	Query        string
	// SortBy is one of user|freq|date|new. It is serialized in the
	// dedicated sort query parameter, never embedded in the search query.
	SortBy string
}

// ListIssues searches issues in an organization.
func (c *Client) ListIssues(ctx context.Context, p ListIssuesParams) ([]Issue, error) {
	query := url.Values{}
	if p.Query != "" {
		query.Set("query", p.Query)
	}
	if p.Project != "" {
		query.Set("project", p.Project)
	}
	if _, ok := issueSorts[p.SortBy]; ok {
		query.Set("sort", p.SortBy)
	}
	var issues []Issue
	if err := c.get(ctx, "/organizations/"+p.Organization+"/issues/", query, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// GetIssue returns a single issue by numeric ID or short ID.
func (c *Client) GetIssue(ctx context.Context, org, issueID string) (*Issue, error) {
	var issue Issue
	if err := c.get(ctx, "/organizations/"+org+"/issues/"+issueID+"/", nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// UpdateIssue mutates issue status or assignment.
func (c *Client) UpdateIssue(ctx context.Context, org, issueID string, update IssueUpdate) (*Issue, error) {
	var issue Issue
	if err := c.put(ctx, "/organizations/"+org+"/issues/"+issueID+"/", update, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// GetEventForIssue returns a specific event of an issue.
func (c *Client) GetEventForIssue(ctx context.Context, org, issueID, eventID string) (*Event, error) {
	var event Event
	if err := c.get(ctx, "/organizations/"+org+"/issues/"+issueID+"/events/"+eventID+"/", nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// GetLatestEventForIssue returns the most recent event of an issue.
func (c *Client) GetLatestEventForIssue(ctx context.Context, org, issueID string) (*Event, error) {
	return c.GetEventForIssue(ctx, org, issueID, "latest")
}

// ListEventAttachments returns the attachments of an event.
func (c *Client) ListEventAttachments(ctx context.Context, org, project, eventID string) ([]Attachment, error) {
	var attachments []Attachment
	path := "/projects/" + org + "/" + project + "/events/" + eventID + "/attachments/"
	if err := c.get(ctx, path, nil, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// GetEventAttachment fetches attachment metadata and the raw file bytes.
func (c *Client) GetEventAttachment(ctx context.Context, org, project, eventID, attachmentID string) (*AttachmentDownload, error) {
	base := "/projects/" + org + "/" + project + "/events/" + eventID + "/attachments/" + attachmentID + "/"

	var meta Attachment
	if err := c.get(ctx, base, nil, &meta); err != nil {
		return nil, err
	}

	query := url.Values{"download": []string{"1"}}
	raw, contentType, err := c.doRaw(ctx, base, query)
	if err != nil {
		return nil, err
	}

	filename := meta.Name
	if filename == "" {
		filename = "attachment-" + attachmentID
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if name, ok := params["filename"]; ok && name != "" {
			filename = name
		}
	}

	return &AttachmentDownload{
		Metadata:    meta,
		Filename:    filename,
		Bytes:       raw,
		ContentType: contentType,
	}, nil
}

// StartAutofix kicks off a Seer root-cause analysis run for an issue.
func (c *Client) StartAutofix(ctx context.Context, org, issueID, eventID, instruction string) (*AutofixRun, error) {
	body := map[string]string{}
	if eventID != "" {
		body["event_id"] = eventID
	}
	if instruction != "" {
		body["instruction"] = instruction
	}
	var out struct {
		RunID int64 `json:"run_id"`
	}
	if err := c.post(ctx, "/organizations/"+org+"/issues/"+issueID+"/autofix/", body, &out); err != nil {
		return nil, err
	}
	return &AutofixRun{RunID: json.Number(strconv.FormatInt(out.RunID, 10)), Status: "PROCESSING"}, nil
}

// GetAutofixState returns the current Seer run state for an issue, or nil
// when no run exists.
func (c *Client) GetAutofixState(ctx context.Context, org, issueID string) (*AutofixRun, error) {
	var state AutofixStateResponse
	if err := c.get(ctx, "/organizations/"+org+"/issues/"+issueID+"/autofix/", nil, &state); err != nil {
		return nil, err
	}
	return state.Autofix, nil
}
