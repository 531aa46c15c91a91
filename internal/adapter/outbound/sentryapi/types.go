package sentryapi

import "encoding/json"

// User is the authenticated upstream user.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Region is one entry of the /users/me/regions/ response.
type Region struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// regionsResponse is the envelope of the /users/me/regions/ response.
type regionsResponse struct {
	Regions []Region `json:"regions"`
}

// OrganizationLinks carries the URLs attached to an organization.
type OrganizationLinks struct {
	RegionURL       string `json:"regionUrl"`
	OrganizationURL string `json:"organizationUrl"`
}

// Organization is an upstream organization.
type Organization struct {
	ID    string            `json:"id"`
	Slug  string            `json:"slug"`
	Name  string            `json:"name"`
	Links OrganizationLinks `json:"links"`
}

// Team is an upstream team.
type Team struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Project is an upstream project, including the capability flags used to
// derive per-project tool filtering.
type Project struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	// Capability flags. Missing fields default to false.
	HasProfiles           bool `json:"hasProfiles"`
	HasReplays            bool `json:"hasReplays"`
	HasLogs               bool `json:"hasLogs"`
	FirstTransactionEvent bool `json:"firstTransactionEvent"`
}

// ClientKeyDSN holds the DSN variants of a client key.
type ClientKeyDSN struct {
	Public string `json:"public"`
}

// ClientKey is a project client key (DSN).
type ClientKey struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	DSN    ClientKeyDSN `json:"dsn"`
	Public string       `json:"public"`
}

// Release is an upstream release.
type Release struct {
	Version      string `json:"version"`
	ShortVersion string `json:"shortVersion"`
	DateCreated  string `json:"dateCreated"`
	DateReleased string `json:"dateReleased"`
	NewGroups    int    `json:"newGroups"`
}

// Tag is one entry of the tag listing for a dataset.
type Tag struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	TotalValues int    `json:"totalValues"`
}

// IssueProject is the project reference embedded in an issue.
type IssueProject struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Issue is an upstream issue (error group).
type Issue struct {
	ID        string       `json:"id"`
	ShortID   string       `json:"shortId"`
	Title     string       `json:"title"`
	Culprit   string       `json:"culprit"`
	Permalink string       `json:"permalink"`
	Status    string       `json:"status"`
	Level     string       `json:"level"`
	Platform  string       `json:"platform"`
	Project   IssueProject `json:"project"`
	FirstSeen string       `json:"firstSeen"`
	LastSeen  string       `json:"lastSeen"`
	Count     json.Number  `json:"count"`
	UserCount int          `json:"userCount"`
}

// EventTag is one key/value tag on an event.
type EventTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is a single error/transaction event. Entries are kept raw; the
// tool layer renders the parts it understands.
type Event struct {
	ID          string            `json:"id"`
	EventID     string            `json:"eventID"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Platform    string            `json:"platform"`
	Type        string            `json:"type"`
	DateCreated string            `json:"dateCreated"`
	Culprit     string            `json:"culprit"`
	Tags        []EventTag        `json:"tags"`
	Entries     []json.RawMessage `json:"entries"`
}

// Attachment is the metadata of an event attachment.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// AttachmentDownload bundles attachment metadata with its raw bytes.
type AttachmentDownload struct {
	Metadata Attachment
	Filename string
	Bytes    []byte
	// ContentType is the content type reported by the download response.
	ContentType string
}

// EventsMeta describes the field types of an events search response.
type EventsMeta struct {
	Fields map[string]string `json:"fields"`
}

// EventsResponse is the envelope of the events search endpoint.
type EventsResponse struct {
	Data []map[string]any `json:"data"`
	Meta EventsMeta       `json:"meta"`
}

// AutofixStep is one step of a Seer autofix run.
type AutofixStep struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Status string `json:"status"`
	// Output carries step-specific payloads (root cause, changes) verbatim.
	Output json.RawMessage `json:"output,omitempty"`
}

// AutofixRun is the state of a Seer autofix run.
type AutofixRun struct {
	RunID  json.Number   `json:"run_id"`
	Status string        `json:"status"`
	Steps  []AutofixStep `json:"steps"`
}

// AutofixStateResponse is the envelope of the autofix state endpoint.
// Autofix is nil when no run exists for the issue.
type AutofixStateResponse struct {
	Autofix *AutofixRun `json:"autofix"`
}

// IssueUpdate is the mutable subset of an issue accepted by UpdateIssue.
type IssueUpdate struct {
	Status     string `json:"status,omitempty"`
	AssignedTo string `json:"assignedTo,omitempty"`
}

// ProjectUpdate is the mutable subset of a project accepted by UpdateProject.
type ProjectUpdate struct {
	Name     string `json:"name,omitempty"`
	Slug     string `json:"slug,omitempty"`
	Platform string `json:"platform,omitempty"`
}
