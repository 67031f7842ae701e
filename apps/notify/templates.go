package notify

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/CloudyKit/jet/v6"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

// Template names referenced by outbox email payloads
const (
	TemplateSubmitted        = "mrf_submitted"
	TemplateDirectorApproved = "mrf_director_approved"
	TemplateHRApproved       = "mrf_hr_approved"
	TemplateQueryRaised      = "mrf_query_raised"
	TemplateQueryReplied     = "mrf_query_replied"
)

const layoutTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{ Subject }}</title></head>
<body style="font-family: Arial, sans-serif; color: #222;">
  <div style="max-width: 640px; margin: 0 auto;">
    {{ yield body() }}
    <p style="color: #888; font-size: 12px;">
      This message was sent by the HR desk. Please do not reply to this address.
    </p>
  </div>
</body>
</html>`

var emailTemplates = map[string]string{
	TemplateSubmitted: `{{ extends "/layout.jet" }}
{{ block body() }}
  <h2>New manpower requisition awaiting review</h2>
  <p>{{ RequestorName }} submitted requisition #{{ RequisitionID }} for <strong>{{ JobTitle }}</strong>
  in {{ Department }}.</p>
  {{ if isset(Link) && Link != "" }}<p><a href="{{ Link }}">Open the requisition</a></p>{{ end }}
{{ end }}`,

	TemplateDirectorApproved: `{{ extends "/layout.jet" }}
{{ block body() }}
  <h2>Requisition approved by the Director</h2>
  <p>Requisition #{{ RequisitionID }} for <strong>{{ JobTitle }}</strong> was approved by {{ ApproverName }}
  and now waits for HR.</p>
  {{ if isset(Comments) && Comments != "" }}<blockquote>{{ Comments }}</blockquote>{{ end }}
  {{ if isset(Link) && Link != "" }}<p><a href="{{ Link }}">Open the requisition</a></p>{{ end }}
{{ end }}`,

	TemplateHRApproved: `{{ extends "/layout.jet" }}
{{ block body() }}
  <h2>Your requisition has been approved</h2>
  <p>Dear {{ RequestorName }},</p>
  <p>HR approved your requisition for <strong>{{ JobTitle }}</strong>.
  Its MRF number is <strong>{{ MRFNumber }}</strong>.</p>
  {{ if isset(Comments) && Comments != "" }}<blockquote>{{ Comments }}</blockquote>{{ end }}
{{ end }}`,

	TemplateQueryRaised: `{{ extends "/layout.jet" }}
{{ block body() }}
  <h2>A query was raised on requisition #{{ RequisitionID }}</h2>
  <p>{{ RaisedBy }} asked about <strong>{{ JobTitle }}</strong>, raised by {{ RequestorName }}:</p>
  <blockquote>{{ Question }}</blockquote>
  <p><a href="{{ ReplyLink }}">Reply to this query</a></p>
{{ end }}`,

	TemplateQueryReplied: `{{ extends "/layout.jet" }}
{{ block body() }}
  <h2>Query answered on requisition #{{ RequisitionID }}</h2>
  <p>{{ RepliedBy }} answered the query on <strong>{{ JobTitle }}</strong>:</p>
  <blockquote>{{ Answer }}</blockquote>
  {{ if isset(Link) && Link != "" }}<p><a href="{{ Link }}">Open the requisition</a></p>{{ end }}
{{ end }}`,
}

// Renderer turns a template name and its variables into minified HTML
type Renderer struct {
	set      *jet.Set
	minifier *minify.M
	mu       sync.Mutex
}

func NewRenderer() *Renderer {
	loader := jet.NewInMemLoader()
	loader.Set("/layout.jet", layoutTemplate)
	for name, body := range emailTemplates {
		loader.Set("/"+name+".jet", body)
	}

	m := minify.New()
	m.AddFunc("text/html", html.Minify)

	return &Renderer{
		set:      jet.NewSet(loader),
		minifier: m,
	}
}

func (r *Renderer) Render(name, subject string, vars map[string]any) (string, error) {
	if _, ok := emailTemplates[name]; !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}

	r.mu.Lock()
	tmpl, err := r.set.GetTemplate("/" + name + ".jet")
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	jetVars := make(jet.VarMap)
	jetVars.Set("Subject", subject)
	for k, v := range vars {
		if v == nil {
			continue
		}
		jetVars.Set(k, v)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, jetVars, nil); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}

	out, err := r.minifier.String("text/html", buf.String())
	if err != nil {
		return buf.String(), nil
	}
	return out, nil
}
