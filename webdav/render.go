package webdav

import (
	"bytes"
	"html/template"
	"sort"
	"strings"
	gotemplate "text/template"
)

// multistatusTemplate renders an RFC-4918 §14.16 <D:multistatus> document.
// Kept as a small templating step per spec.md §9's design note ("this can
// be trivially replaced by direct XML/HTML writing"), grounded on
// original_source/orbit-webdavd.py loading
// "webdavdlib/templates/propfind.template.jinja2" via get_template — here
// a text/template literal plays the same role without a file dependency.
var multistatusTemplate = gotemplate.Must(gotemplate.New("multistatus").Parse(
	`<?xml version="1.0" encoding="utf-8"?>
<D:multistatus xmlns:D="DAV:" xmlns:Z="urn:schemas-microsoft-com:">
{{- range .}}
<D:response>
<D:href>{{.Href}}</D:href>
<D:propstat>
<D:prop>
{{- range .Props}}
{{.}}
{{- end}}
</D:prop>
<D:status>HTTP/1.1 200 OK</D:status>
</D:propstat>
</D:response>
{{- end}}
</D:multistatus>
`))

// responseXML is one <D:response> entry's rendering input.
type responseXML struct {
	Href  string
	Props []string
}

func renderMultistatus(entries []propfindEntry) ([]byte, error) {
	responses := make([]responseXML, 0, len(entries))
	for _, e := range entries {
		props := make([]string, 0, len(e.Props))
		names := make([]string, 0, len(e.Props))
		for name := range e.Props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if frag := propertyXML(name, e.Props[name]); frag != "" {
				props = append(props, frag)
			}
		}
		props = append(props, propertyXML("D:supportedlock", nil))
		if e.Lock != nil {
			props = append(props, lockDiscoveryXML(e.Lock))
		} else {
			props = append(props, propertyXML("D:lockdiscovery", nil))
		}
		responses = append(responses, responseXML{
			Href:  urlEncodePath(e.Path),
			Props: props,
		})
	}

	var buf bytes.Buffer
	if err := multistatusTemplate.Execute(&buf, responses); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lockDiscoveryXML(l *Lock) string {
	scope := "exclusive"
	if l.Scope == ScopeShared {
		scope = "shared"
	}
	depth := "0"
	if l.Depth == InfiniteDepth {
		depth = "infinity"
	}
	return "<D:lockdiscovery><D:activelock>" +
		"<D:locktype><D:write/></D:locktype>" +
		"<D:lockscope><D:" + scope + "/></D:lockscope>" +
		"<D:depth>" + depth + "</D:depth>" +
		"<D:owner><D:href>" + escapeXML(l.Owner) + "</D:href></D:owner>" +
		"<D:timeout>Second-300</D:timeout>" +
		"<D:locktoken><D:href>opaquelocktoken:" + l.Token + "</D:href></D:locktoken>" +
		"</D:activelock></D:lockdiscovery>"
}

// lockTemplate renders the §14.6-style <D:prop> response to a successful
// LOCK, grounded on original_source/orbit-webdavd.py's
// templates["lock"].render(lock=lock).
var lockTemplate = gotemplate.Must(gotemplate.New("lock").Parse(
	`<?xml version="1.0" encoding="utf-8"?>
<D:prop xmlns:D="DAV:">
{{.}}
</D:prop>
`))

func renderLock(l *Lock) ([]byte, error) {
	var buf bytes.Buffer
	if err := lockTemplate.Execute(&buf, lockDiscoveryXML(l)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// directoryEntry is one row of an HTML directory listing.
type directoryEntry struct {
	Name  string
	Href  string
	IsDir bool
}

var directoryTemplate = template.Must(template.New("directory").Parse(
	`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<ul>
{{- if .ShowParent}}
<li><a href="../">..</a></li>
{{- end}}
{{- range .Entries}}
<li><a href="{{.Href}}">{{.Name}}{{if .IsDir}}/{{end}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

type directoryListing struct {
	Title      string
	ShowParent bool
	Entries    []directoryEntry
}

// renderDirectory renders an HTML listing sorted directories-first, then
// case-insensitive name ascending, with a ".." entry unless urlPath is the
// namespace root — spec.md §4.4.2's GET-on-collection contract and
// TESTABLE PROPERTY #14.
func renderDirectory(urlPath string, entries []directoryEntry) ([]byte, error) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	listing := directoryListing{
		Title:      urlPath,
		ShowParent: urlPath != "/" && urlPath != "",
		Entries:    entries,
	}

	var buf bytes.Buffer
	if err := directoryTemplate.Execute(&buf, listing); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
