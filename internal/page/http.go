package page

import (
	"bytes"
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"

	"github.com/sells-group/mc-extractor/internal/resilience"
)

// HTTPConfig configures an HTTPSession.
type HTTPConfig struct {
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Retry      resilience.RetryConfig
}

type tab struct {
	url *url.URL
	doc *goquery.Document
}

// HTTPSession is a Session backed by plain HTTP requests and an in-memory
// DOM per tab. Documents are static once fetched, so lookups never wait.
type HTTPSession struct {
	client  *resty.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	log     *zap.Logger

	tabs []*tab
	cur  int
}

// NewHTTPSession creates an HTTP-backed session with its own cookie jar.
func NewHTTPSession(cfg HTTPConfig) (*HTTPSession, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "page: create cookie jar")
	}

	client := resty.New()
	client.SetCookieJar(jar)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	retry := cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("http_session", "fetch")
	}

	return &HTTPSession{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		retry:   retry,
		log:     zap.L().With(zap.String("component", "page.http")),
	}, nil
}

type fetched struct {
	url *url.URL
	doc *goquery.Document
}

func (s *HTTPSession) fetch(ctx context.Context, method string, target *url.URL, form url.Values) (*tab, error) {
	res, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (fetched, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return fetched{}, eris.Wrap(err, "page: rate limit wait")
		}

		req := s.client.R().SetContext(ctx)
		u := *target
		if method == http.MethodPost {
			req.SetFormDataFromValues(form)
		} else if form != nil {
			u.RawQuery = form.Encode()
		}

		resp, err := req.Execute(method, u.String())
		if err != nil {
			return fetched{}, eris.Wrapf(err, "page: %s %s", method, u.String())
		}
		if code := resp.StatusCode(); code >= 400 {
			statusErr := eris.Errorf("page: %s %s: status %d", method, u.String(), code)
			if resilience.IsTransientHTTPStatus(code) {
				return fetched{}, resilience.NewTransientError(statusErr, code)
			}
			return fetched{}, statusErr
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
		if err != nil {
			return fetched{}, eris.Wrap(err, "page: parse document")
		}

		final := &u
		if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
			final = raw.Request.URL
		}
		return fetched{url: final, doc: doc}, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("page loaded", zap.String("method", method), zap.String("url", res.url.String()))
	return &tab{url: res.url, doc: res.doc}, nil
}

func (s *HTTPSession) current() (*tab, error) {
	if len(s.tabs) == 0 {
		return nil, eris.New("page: no page loaded")
	}
	return s.tabs[s.cur], nil
}

// Navigate loads rawURL into the current tab.
func (s *HTTPSession) Navigate(ctx context.Context, rawURL string) error {
	target, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrapf(err, "page: parse url %q", rawURL)
	}
	t, err := s.fetch(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	s.replace(t)
	return nil
}

func (s *HTTPSession) replace(t *tab) {
	if len(s.tabs) == 0 {
		s.tabs = []*tab{t}
		s.cur = 0
		return
	}
	s.tabs[s.cur] = t
}

func (s *HTTPSession) locate(ctx context.Context, loc Locator) (*goquery.Selection, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", eris.Wrapf(err, "page: find %s", loc)
	}
	t, err := s.current()
	if err != nil {
		return nil, "", err
	}

	var (
		found *goquery.Selection
		text  string
	)
	t.doc.Find(loc.CSS).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		txt := RenderText(sel.Get(0))
		if !loc.matches(txt) {
			return true
		}
		found, text = sel, txt
		return false
	})
	if found == nil {
		return nil, "", eris.Wrapf(ErrNotFound, "page: find %s", loc)
	}
	return found, text, nil
}

// Find returns the first element matching loc on the current tab.
func (s *HTTPSession) Find(ctx context.Context, loc Locator, _ time.Duration) (Element, error) {
	_, text, err := s.locate(ctx, loc)
	if err != nil {
		return Element{}, err
	}
	return Element{Text: text}, nil
}

// Click emulates a user click: anchors navigate (into a new tab when
// target is _blank), radios and checkboxes change state, and submit
// controls send their form.
func (s *HTTPSession) Click(ctx context.Context, loc Locator, _ time.Duration) error {
	sel, _, err := s.locate(ctx, loc)
	if err != nil {
		return err
	}
	t, _ := s.current()
	node := sel.Get(0)

	switch node.DataAtom {
	case atom.A:
		return s.follow(ctx, t, sel)
	case atom.Input, atom.Button:
		kind := strings.ToLower(sel.AttrOr("type", "submit"))
		if node.DataAtom == atom.Input && !sel.Is("[type]") {
			kind = "text"
		}
		switch kind {
		case "radio":
			if name, ok := sel.Attr("name"); ok {
				scope := sel.Closest("form")
				if scope.Length() == 0 {
					scope = t.doc.Selection
				}
				scope.Find("input[type=radio]").FilterFunction(func(_ int, r *goquery.Selection) bool {
					return r.AttrOr("name", "") == name
				}).RemoveAttr("checked")
			}
			sel.SetAttr("checked", "checked")
			return nil
		case "checkbox":
			if _, ok := sel.Attr("checked"); ok {
				sel.RemoveAttr("checked")
			} else {
				sel.SetAttr("checked", "checked")
			}
			return nil
		case "submit", "image":
			return s.submit(ctx, t, sel)
		}
	}
	return eris.Errorf("page: %s is not clickable", loc)
}

func (s *HTTPSession) follow(ctx context.Context, t *tab, a *goquery.Selection) error {
	href, ok := a.Attr("href")
	if !ok || strings.HasPrefix(strings.TrimSpace(href), "javascript:") {
		return eris.New("page: anchor has no navigable href")
	}
	target, err := t.url.Parse(strings.TrimSpace(href))
	if err != nil {
		return eris.Wrapf(err, "page: resolve href %q", href)
	}
	next, err := s.fetch(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	if strings.EqualFold(a.AttrOr("target", ""), "_blank") {
		s.tabs = append(s.tabs, next)
		return nil
	}
	s.replace(next)
	return nil
}

func (s *HTTPSession) submit(ctx context.Context, t *tab, submitter *goquery.Selection) error {
	form := submitter.Closest("form")
	if form.Length() == 0 {
		return eris.New("page: submit control outside a form")
	}

	action, err := t.url.Parse(strings.TrimSpace(form.AttrOr("action", "")))
	if err != nil {
		return eris.Wrap(err, "page: resolve form action")
	}
	method := http.MethodGet
	if strings.EqualFold(form.AttrOr("method", ""), "post") {
		method = http.MethodPost
	}

	next, err := s.fetch(ctx, method, action, formValues(form, submitter))
	if err != nil {
		return err
	}
	s.replace(next)
	return nil
}

// Fill sets the value of an input or textarea.
func (s *HTTPSession) Fill(ctx context.Context, loc Locator, value string, _ time.Duration) error {
	sel, _, err := s.locate(ctx, loc)
	if err != nil {
		return err
	}
	switch sel.Get(0).DataAtom {
	case atom.Input:
		sel.SetAttr("value", value)
	case atom.Textarea:
		sel.SetText(value)
	default:
		return eris.Errorf("page: %s is not a text control", loc)
	}
	return nil
}

func (s *HTTPSession) TabCount(context.Context) (int, error) { return len(s.tabs), nil }

func (s *HTTPSession) SwitchToLatestTab(context.Context) error {
	if len(s.tabs) == 0 {
		return eris.New("page: no tabs open")
	}
	s.cur = len(s.tabs) - 1
	return nil
}

// WaitLoaded returns at once: a fetched document is already complete.
func (s *HTTPSession) WaitLoaded(ctx context.Context, _ time.Duration) error {
	if _, err := s.current(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *HTTPSession) CloseExtraTabs(context.Context) error {
	if len(s.tabs) > 1 {
		s.tabs = s.tabs[:1]
	}
	s.cur = 0
	return nil
}

// Snapshot returns the current tab's HTML.
func (s *HTTPSession) Snapshot(context.Context) (Artifact, error) {
	t, err := s.current()
	if err != nil {
		return Artifact{}, err
	}
	var buf bytes.Buffer
	for n := t.doc.Get(0).FirstChild; n != nil; n = n.NextSibling {
		if err := html.Render(&buf, n); err != nil {
			return Artifact{}, eris.Wrap(err, "page: render snapshot")
		}
	}
	return Artifact{Ext: "html", Data: buf.Bytes()}, nil
}

func (s *HTTPSession) Close() error {
	s.client.GetClient().CloseIdleConnections()
	s.tabs = nil
	s.cur = 0
	return nil
}
