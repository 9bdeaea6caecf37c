package expiry

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const DefaultTitle = "Inventory expiry reminder"

// Framing is the cosmetic envelope around a reminder. It never affects which
// items are listed or the counts.
type Framing struct {
	Title         string
	SubjectPrefix string
	Banner        string
	Note          string
}

// Message is a composed reminder, ready for any gateway.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Line is one rendered entry of a section.
type Line struct {
	Name     string
	Category string
	Phrase   string
}

// ExpiredPhrase describes an item n days past its expiry.
func ExpiredPhrase(n int) string {
	if n == 1 {
		return "expired 1 day ago"
	}
	return fmt.Sprintf("expired %d days ago", n)
}

// ImminentPhrase describes an item expiring in n days.
func ImminentPhrase(n int) string {
	switch n {
	case 0:
		return "expires today"
	case 1:
		return "expires tomorrow"
	default:
		return fmt.Sprintf("expires in %d days", n)
	}
}

// Subject encodes both counts.
func Subject(set ClassifiedSet, f Framing) string {
	return fmt.Sprintf("%s%s - %d expired, %d expiring soon",
		f.SubjectPrefix, f.title(), len(set.Expired), len(set.Imminent))
}

func (f Framing) title() string {
	if t := strings.TrimSpace(f.Title); t != "" {
		return t
	}
	return DefaultTitle
}

// Compose renders set into subject, plain text and HTML bodies.
func Compose(set ClassifiedSet, f Framing) Message {
	v := newView(set, f)
	return Message{
		Subject: Subject(set, f),
		Text:    renderText(v),
		HTML:    renderHTML(v),
	}
}

type view struct {
	Title    string
	Banner   string
	Note     string
	Due      int
	Expired  []Line
	Imminent []Line
}

func newView(set ClassifiedSet, f Framing) view {
	v := view{Title: f.title(), Banner: f.Banner, Note: f.Note, Due: set.Due}
	for _, e := range set.Expired {
		v.Expired = append(v.Expired, Line{Name: e.Item.Name, Category: e.Item.Category(), Phrase: ExpiredPhrase(e.DaysPastExpiry)})
	}
	for _, im := range set.Imminent {
		v.Imminent = append(v.Imminent, Line{Name: im.Item.Name, Category: im.Item.Category(), Phrase: ImminentPhrase(im.DaysUntilExpiry)})
	}
	return v
}

func itemsNoun(n int) string {
	if n == 1 {
		return "1 item needs"
	}
	return fmt.Sprintf("%d items need", n)
}

func renderText(v view) string {
	var b strings.Builder
	if v.Banner != "" {
		b.WriteString("*** ")
		b.WriteString(v.Banner)
		b.WriteString(" ***\n\n")
	}
	b.WriteString(v.Title)
	b.WriteString("\n")
	section := func(heading string, lines []Line) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s (%d)\n", heading, len(lines))
		for _, l := range lines {
			fmt.Fprintf(&b, "- %s [%s]: %s\n", l.Name, l.Category, l.Phrase)
		}
	}
	section("Expired", v.Expired)
	section("Expiring soon", v.Imminent)
	fmt.Fprintf(&b, "\nThis is an automated reminder: %s attention.\n", itemsNoun(v.Due))
	if v.Note != "" {
		b.WriteString(v.Note)
		b.WriteString("\n")
	}
	return b.String()
}

var htmlTmpl = template.Must(template.New("reminder").Funcs(template.FuncMap{"noun": itemsNoun}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family:sans-serif;max-width:600px;margin:0 auto;padding:20px;color:#333">
{{- if .Banner}}
<div style="background:#fff3cd;border:2px solid #ffc107;color:#856404;padding:12px;border-radius:8px;text-align:center;font-weight:600">{{.Banner}}</div>
{{- end}}
<h1 style="color:#667eea;text-align:center">{{.Title}}</h1>
{{- if .Expired}}
<h2 style="color:#f44336">Expired ({{len .Expired}})</h2>
{{- range .Expired}}
<div style="background:#f9f9f9;padding:10px;margin-bottom:8px;border-left:4px solid #f44336"><strong>{{.Name}}</strong><br>Category: {{.Category}} | {{.Phrase}}</div>
{{- end}}
{{- end}}
{{- if .Imminent}}
<h2 style="color:#ff9800">Expiring soon ({{len .Imminent}})</h2>
{{- range .Imminent}}
<div style="background:#f9f9f9;padding:10px;margin-bottom:8px;border-left:4px solid #ff9800"><strong>{{.Name}}</strong><br>Category: {{.Category}} | {{.Phrase}}</div>
{{- end}}
{{- end}}
<p style="text-align:center;color:#666">This is an automated reminder: {{noun .Due}} attention.</p>
{{- if .Note}}
<p style="text-align:center;color:#666">{{.Note}}</p>
{{- end}}
</body>
</html>
`))

func renderHTML(v view) string {
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, v); err != nil {
		// The template is static and the view holds only strings and ints.
		panic(fmt.Sprintf("expiry: render html: %v", err))
	}
	return buf.String()
}
