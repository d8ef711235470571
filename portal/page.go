package portal

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yllada/ncconnect/common"
)

// Field names used by the portal's sign-in pages.
const (
	fieldUsername = "username"
	fieldPassword = "password"
	fieldRealm    = "realm"
	fieldPinKey   = "key"
	fieldPin2     = "password#2"
	fieldContinue = "btnContinue"

	cookieDSID = "DSID"
	logoutPath = "dana-na/auth/logout.cgi"
)

// form is a parsed HTML form ready to be resubmitted.
type form struct {
	action *url.URL
	method string
	values url.Values
	// submit is the name/value of the form's default submit button.
	submit [2]string
	fields map[string]bool
}

func (f *form) has(name string) bool {
	return f != nil && f.fields[name]
}

// with returns the form's values with overrides applied.
func (f *form) with(overrides map[string]string) url.Values {
	v := url.Values{}
	for name, vals := range f.values {
		v[name] = append([]string(nil), vals...)
	}
	for name, val := range overrides {
		v.Set(name, val)
	}
	if f.submit[0] != "" && v.Get(f.submit[0]) == "" {
		v.Set(f.submit[0], f.submit[1])
	}
	return v
}

// page is the parsed result of one portal response.
type page struct {
	state  common.PageState
	url    *url.URL
	form   *form
	realms []string
	dsid   string
}

func fieldSelector(name string) string {
	return `input[name="` + name + `"]`
}

// classify decides which step of the sign-in a document shows. hasDSID
// reports whether the jar holds a session cookie.
func classify(doc *goquery.Document, hasDSID bool) common.PageState {
	switch {
	case hasDSID:
		return common.PageLoginComplete
	case doc.Find(fieldSelector(fieldContinue)).Length() > 0:
		return common.PageConfirmContinue
	case doc.Find(fieldSelector(fieldPinKey)).Length() > 0,
		doc.Find(fieldSelector(fieldPin2)).Length() > 0:
		return common.PageOneTimePin
	case doc.Find(fieldSelector(fieldUsername)).Length() > 0 &&
		doc.Find(fieldSelector(fieldPassword)).Length() > 0:
		return common.PageLogin
	default:
		return common.PageNone
	}
}

// anchorFor returns the input that identifies the form of a page state.
func anchorFor(state common.PageState) []string {
	switch state {
	case common.PageConfirmContinue:
		return []string{fieldContinue}
	case common.PageOneTimePin:
		return []string{fieldPinKey, fieldPin2}
	case common.PageLogin:
		return []string{fieldPassword}
	}
	return nil
}

// parsePage classifies doc, fetched from pageURL, and extracts its form
// and realms.
func parsePage(doc *goquery.Document, pageURL *url.URL, hasDSID bool) *page {
	p := &page{state: classify(doc, hasDSID), url: pageURL}
	if p.state == common.PageLoginComplete {
		return p
	}

	sel := doc.Find("form").First()
	for _, name := range anchorFor(p.state) {
		if f := doc.Find(fieldSelector(name)).Closest("form"); f.Length() > 0 {
			sel = f
			break
		}
	}
	if sel.Length() > 0 {
		p.form = parseForm(sel, pageURL)
	}

	if p.state == common.PageLogin {
		p.realms = parseRealms(doc)
	}
	return p
}

func parseForm(sel *goquery.Selection, pageURL *url.URL) *form {
	f := &form{
		action: pageURL,
		method: strings.ToUpper(sel.AttrOr("method", "GET")),
		values: url.Values{},
		fields: map[string]bool{},
	}
	if action, ok := sel.Attr("action"); ok && action != "" {
		if u, err := pageURL.Parse(action); err == nil {
			f.action = u
		}
	}

	sel.Find("input").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		f.fields[name] = true
		value := in.AttrOr("value", "")

		switch strings.ToLower(in.AttrOr("type", "text")) {
		case "submit", "image", "button":
			if f.submit[0] == "" {
				f.submit = [2]string{name, value}
			}
		case "checkbox", "radio":
			if _, checked := in.Attr("checked"); checked {
				f.values.Add(name, value)
			}
		default:
			f.values.Set(name, value)
		}
	})

	sel.Find("select").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		f.fields[name] = true
		opt := s.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = s.Find("option").First()
		}
		if opt.Length() > 0 {
			f.values.Set(name, optionValue(opt))
		}
	})

	return f
}

func parseRealms(doc *goquery.Document) []string {
	var realms []string
	doc.Find(`select[name="realm"] option`).Each(func(_ int, opt *goquery.Selection) {
		if v := optionValue(opt); v != "" {
			realms = append(realms, v)
		}
	})
	if len(realms) > 0 {
		return realms
	}

	if v := strings.TrimSpace(doc.Find(fieldSelector(fieldRealm)).AttrOr("value", "")); v != "" {
		return []string{v}
	}
	return []string{}
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(opt.Text())
}
