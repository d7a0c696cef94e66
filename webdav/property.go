package webdav

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// StandardPropnames is every property the Backend contract and spec.md §3
// require PROPFIND to be able to return.
var StandardPropnames = []string{
	"D:resourcetype",
	"D:iscollection",
	"D:getcontentlength",
	"D:getcontenttype",
	"D:getlastmodified",
	"D:lastmodified",
	"D:creationdate",
	"D:lastaccessed",
	"D:getetag",
	"D:displayname",
	"D:name",
	"D:ishidden",
	"D:supportedlock",
	"D:lockdiscovery",
	"Z:Win32FileAttributes",
	"Z:Win32CreationTime",
	"Z:Win32LastAccessTime",
	"Z:Win32LastModifiedTime",
}

// excelStripped is the set of properties that make Microsoft Excel loop on
// save when present in a PROPFIND response, per spec.md §4.5 step 4.
// Grounded on the Windows-client workarounds original_source carries in
// webdavdlib/properties.py's Win32 shim properties.
var excelStripped = map[string]bool{
	"D:lastmodified":         true,
	"D:lastaccessed":         true,
	"Z:Win32LastModifiedTime": true,
	"Z:Win32LastAccessTime":   true,
}

// httpDate formats t the way D:getlastmodified/D:lastaccessed require,
// grounded on original_source/webdavdlib/properties.py's
// unixdate2httpdate.
func httpDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}

// iso8601 formats t the way D:creationdate requires, grounded on
// original_source/webdavdlib/properties.py's unixdate2iso8601.
func iso8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// propertyXML renders a single named property to its XML fragment. Boolean
// presence properties are emitted as an empty element when true and
// omitted entirely when false (spec.md §4.5 step 5); XML-valued properties
// (resourcetype) are emitted verbatim; everything else is emitted as
// escaped character data.
func propertyXML(name string, value any) string {
	local := strings.TrimPrefix(strings.TrimPrefix(name, "D:"), "Z:")
	ns := "D"
	if strings.HasPrefix(name, "Z:") {
		ns = "Z"
	}

	switch name {
	case "D:resourcetype":
		return fmt.Sprintf("<D:resourcetype>%s</D:resourcetype>", value)
	case "D:supportedlock":
		return "<D:supportedlock>" +
			"<D:lockentry><D:lockscope><D:exclusive/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockentry>" +
			"<D:lockentry><D:lockscope><D:shared/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockentry>" +
			"</D:supportedlock>"
	case "D:lockdiscovery":
		return "<D:lockdiscovery/>"
	}

	switch v := value.(type) {
	case bool:
		if !v {
			return ""
		}
		return fmt.Sprintf("<%s:%s/>", ns, local)
	case time.Time:
		var s string
		if name == "D:creationdate" {
			s = iso8601(v)
		} else {
			s = httpDate(v)
		}
		return fmt.Sprintf("<%s:%s>%s</%s:%s>", ns, local, s, ns, local)
	case string:
		// D:displayname/D:name carry a URL-encoded basename per spec.md's
		// data model; everything else is plain character data.
		if name == "D:displayname" || name == "D:name" {
			v = urlEncodePath(v)
		}
		return fmt.Sprintf("<%s:%s>%s</%s:%s>", ns, local, escapeXML(v), ns, local)
	case int64:
		return fmt.Sprintf("<%s:%s>%d</%s:%s>", ns, local, v, ns, local)
	case int:
		return fmt.Sprintf("<%s:%s>%d</%s:%s>", ns, local, v, ns, local)
	default:
		return fmt.Sprintf("<%s:%s>%v</%s:%s>", ns, local, v, ns, local)
	}
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

// urlEncodePath percent-encodes a resource path for use inside D:href,
// preserving the leading slash and "/" separators, per spec.md §3's
// "URL-encoded basename" requirement for D:displayname/D:name hrefs.
func urlEncodePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
