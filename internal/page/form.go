package page

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// formValues serializes a form's successful controls. The submitter is
// included only when it carries a name.
func formValues(form, submitter *goquery.Selection) url.Values {
	vals := url.Values{}
	sub := submitter.Get(0)

	form.Find("input, select, textarea").Each(func(_ int, ctl *goquery.Selection) {
		name, ok := ctl.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := ctl.Attr("disabled"); disabled {
			return
		}

		switch goquery.NodeName(ctl) {
		case "textarea":
			vals.Add(name, ctl.Text())
		case "select":
			opts := ctl.Find("option[selected]")
			if opts.Length() == 0 {
				opts = ctl.Find("option").First()
			}
			opts.Each(func(_ int, o *goquery.Selection) {
				vals.Add(name, o.AttrOr("value", strings.TrimSpace(o.Text())))
			})
		default:
			switch strings.ToLower(ctl.AttrOr("type", "text")) {
			case "submit", "image", "button", "reset":
				if ctl.Get(0) == sub {
					vals.Add(name, ctl.AttrOr("value", ""))
				}
			case "checkbox", "radio":
				if _, checked := ctl.Attr("checked"); checked {
					vals.Add(name, ctl.AttrOr("value", "on"))
				}
			case "file":
			default:
				vals.Add(name, ctl.AttrOr("value", ""))
			}
		}
	})

	if goquery.NodeName(submitter) == "button" {
		if name := submitter.AttrOr("name", ""); name != "" {
			vals.Add(name, submitter.AttrOr("value", ""))
		}
	}
	return vals
}
