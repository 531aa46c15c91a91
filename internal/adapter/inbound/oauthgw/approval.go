package oauthgw

import (
	"html/template"
	"net/http"
)

// approvalPermission is one checkbox on the consent dialog.
type approvalPermission struct {
	Name        string
	Label       string
	Description string
	Checked     bool
}

// renderApprovalPage shows the consent dialog. The original request rides
// along as a signed hidden field so the POST cannot be forged.
func (h *Handler) renderApprovalPage(w http.ResponseWriter, client *Client, req AuthRequest) {
	clientName := client.Name
	if clientName == "" {
		clientName = client.ID
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = approvalPageTemplate.Execute(w, map[string]any{
		"ClientName": clientName,
		"State":      signFormState(h.cfg.CookieSecret, req),
		"Permissions": []approvalPermission{
			{
				Name:        "issue_triage",
				Label:       "Issue triage",
				Description: "Resolve, assign and update issues on your behalf.",
			},
			{
				Name:        "project_management",
				Label:       "Project management",
				Description: "Create and modify projects, teams and DSNs on your behalf.",
			},
		},
	})
}

var approvalPageTemplate = template.Must(template.New("approval").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Authorize {{.ClientName}}</title></head>
<body>
<h1>Authorize {{.ClientName}}</h1>
<p>{{.ClientName}} wants to access Sentry on your behalf. Read access to
organizations, projects, teams, releases and issues is always granted.</p>
<form method="post">
  <input type="hidden" name="state" value="{{.State}}">
  {{range .Permissions}}
  <label>
    <input type="checkbox" name="permission" value="{{.Name}}"{{if .Checked}} checked{{end}}>
    <strong>{{.Label}}</strong>: {{.Description}}
  </label><br>
  {{end}}
  <button type="submit">Approve</button>
</form>
</body>
</html>
`))
