// Package templates holds the HTML components served by the web package.
// The .templ files are the source; run `templ generate` after editing them.
package templates

import (
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/dialcodes/internal/core"
)

// Notice is a banner shown above page content.
type Notice struct {
	Error  bool
	Title  string
	Detail string
	Action string
	Code   string
}

// DashboardData feeds the record list page.
type DashboardData struct {
	Page   core.Page
	Mode   core.PayloadMode
	Notice *Notice
	Input  string // text to put back into the import box after a failed import
}

// CodeData feeds the single code page.
type CodeData struct {
	Record   core.Record
	Index    int
	Total    int
	Mode     core.PayloadMode
	Payload  string
	FileName string
}

// ReviewData feeds the sequential review page.
type ReviewData struct {
	ID         string
	Record     core.Record
	Index      int
	Total      int
	Mode       core.PayloadMode
	Payload    string
	FileName   string
	Generation uint64
	AtStart    bool
	AtEnd      bool
	Notice     *Notice
}

const importPlaceholder = "A1001\t13800000000"

var codeSize = strconv.Itoa(core.DefaultCodeSize)

func pageURL(page int) templ.SafeURL {
	return templ.SafeURL("/?page=" + strconv.Itoa(page))
}

func codeURL(id string, mode core.PayloadMode) templ.SafeURL {
	return templ.SafeURL("/codes/" + url.PathEscape(id) + "?mode=" + url.QueryEscape(string(mode)))
}

func codeImageURL(id string, mode core.PayloadMode, download bool) string {
	u := "/codes/" + url.PathEscape(id) + "/image.png?mode=" + url.QueryEscape(string(mode))
	if download {
		u += "&download=1"
	}
	return u
}

func reviewPath(id string) string {
	return "/review/" + url.PathEscape(id)
}

func reviewAction(id, action string) templ.SafeURL {
	return templ.SafeURL(reviewPath(id) + "/" + action)
}

func reviewImageURL(d ReviewData, name string) string {
	return reviewPath(d.ID) + "/" + name + "?gen=" + strconv.FormatUint(d.Generation, 10)
}

func telURL(phone string) templ.SafeURL {
	return templ.SafeURL("tel:" + phone)
}
