package page

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BrowserConfig configures a BrowserSession.
type BrowserConfig struct {
	Headless        bool
	UserAgent       string
	PageLoadTimeout time.Duration
}

type browserTab struct {
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
}

// BrowserSession is a Session driving one headless Chrome instance.
type BrowserSession struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	pageLoad      time.Duration
	log           *zap.Logger

	tabs      []browserTab
	cur       int
	closeOnce sync.Once
}

// NewBrowserSession launches Chrome and attaches to its first tab. The
// browser outlives ctx; release it with Close.
func NewBrowserSession(ctx context.Context, cfg BrowserConfig) (*BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	startCtx, stop := context.WithCancel(browserCtx)
	defer stop()
	unhook := context.AfterFunc(ctx, stop)
	defer unhook()
	if err := chromedp.Run(startCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, eris.Wrap(err, "page: start browser")
	}

	pageLoad := cfg.PageLoadTimeout
	if pageLoad <= 0 {
		pageLoad = 30 * time.Second
	}

	s := &BrowserSession{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		pageLoad:      pageLoad,
		log:           zap.L().With(zap.String("component", "page.browser")),
	}
	s.tabs = []browserTab{{id: chromedp.FromContext(browserCtx).Target.TargetID, ctx: browserCtx}}
	return s, nil
}

// run executes actions on the current tab, bounded by d and by ctx.
func (s *BrowserSession) run(ctx context.Context, d time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.tabs[s.cur].ctx, d)
	defer cancel()
	unhook := context.AfterFunc(ctx, cancel)
	defer unhook()
	return chromedp.Run(tctx, actions...)
}

func (s *BrowserSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.pageLoad, chromedp.Navigate(url)); err != nil {
		return eris.Wrapf(err, "page: navigate %s", url)
	}
	return nil
}

type locateResult struct {
	Found bool   `json:"found"`
	Text  string `json:"text"`
}

const locateJS = `(function(css, contains, maxLen, action, value) {
	var nodes;
	try { nodes = document.querySelectorAll(css); } catch (e) { return {found: false, text: ""}; }
	for (var i = 0; i < nodes.length; i++) {
		var el = nodes[i];
		var text = (el.innerText || el.textContent || "").replace(/\u00a0/g, " ").trim();
		if (contains && text.indexOf(contains) < 0) continue;
		if (maxLen > 0 && text.length >= maxLen) continue;
		if (action === "click") {
			el.scrollIntoView({block: "center"});
			el.click();
		} else if (action === "fill") {
			el.focus();
			el.value = value;
			el.dispatchEvent(new Event("input", {bubbles: true}));
			el.dispatchEvent(new Event("change", {bubbles: true}));
		}
		return {found: true, text: text};
	}
	return {found: false, text: ""};
})(%s, %s, %d, %s, %s)`

func locateScript(loc Locator, action, value string) string {
	q := func(v string) string {
		b, _ := json.Marshal(v)
		return string(b)
	}
	return fmt.Sprintf(locateJS, q(loc.CSS), q(loc.Contains), loc.MaxLen, q(action), q(value))
}

// locate polls the page until loc matches, optionally acting on the match.
func (s *BrowserSession) locate(ctx context.Context, loc Locator, wait time.Duration, action, value string) (string, error) {
	script := locateScript(loc, action, value)
	var text string
	err := poll(ctx, wait, func(ctx context.Context) (bool, error) {
		var res locateResult
		err := s.run(ctx, s.pageLoad, chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithUserGesture(true)
		}))
		if err != nil {
			// Evaluation fails while a navigation replaces the document.
			return false, eris.Wrapf(err, "page: evaluate %s", loc)
		}
		if !res.Found {
			return false, nil
		}
		text = NormalizeText(res.Text)
		return true, nil
	})
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return "", eris.Wrapf(ErrNotFound, "page: find %s", loc)
		}
		return "", err
	}
	return text, nil
}

func (s *BrowserSession) Find(ctx context.Context, loc Locator, wait time.Duration) (Element, error) {
	text, err := s.locate(ctx, loc, wait, "", "")
	if err != nil {
		return Element{}, err
	}
	return Element{Text: text}, nil
}

func (s *BrowserSession) Click(ctx context.Context, loc Locator, wait time.Duration) error {
	_, err := s.locate(ctx, loc, wait, "click", "")
	return err
}

func (s *BrowserSession) Fill(ctx context.Context, loc Locator, value string, wait time.Duration) error {
	_, err := s.locate(ctx, loc, wait, "fill", value)
	return err
}

func (s *BrowserSession) pages(ctx context.Context) ([]*target.Info, error) {
	var infos []*target.Info
	err := func() error {
		tctx, cancel := context.WithTimeout(s.browserCtx, s.pageLoad)
		defer cancel()
		unhook := context.AfterFunc(ctx, cancel)
		defer unhook()

		all, err := chromedp.Targets(tctx)
		if err != nil {
			return err
		}
		for _, info := range all {
			if info.Type == "page" {
				infos = append(infos, info)
			}
		}
		return nil
	}()
	if err != nil {
		return nil, eris.Wrap(err, "page: list tabs")
	}
	return infos, nil
}

func (s *BrowserSession) TabCount(ctx context.Context) (int, error) {
	infos, err := s.pages(ctx)
	if err != nil {
		return 0, err
	}
	return len(infos), nil
}

// SwitchToLatestTab attaches to the newest tab not yet attached, or to the
// last attached one when no new tab exists.
func (s *BrowserSession) SwitchToLatestTab(ctx context.Context) error {
	infos, err := s.pages(ctx)
	if err != nil {
		return err
	}

	known := make(map[target.ID]bool, len(s.tabs))
	for _, t := range s.tabs {
		known[t.id] = true
	}
	for _, info := range infos {
		if known[info.TargetID] {
			continue
		}
		tabCtx, cancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(info.TargetID))
		if err := chromedp.Run(tabCtx); err != nil {
			cancel()
			return eris.Wrapf(err, "page: attach tab %s", info.TargetID)
		}
		s.tabs = append(s.tabs, browserTab{id: info.TargetID, ctx: tabCtx, cancel: cancel})
		s.log.Debug("switched tab", zap.String("url", info.URL))
		break
	}
	s.cur = len(s.tabs) - 1
	return nil
}

func (s *BrowserSession) WaitLoaded(ctx context.Context, wait time.Duration) error {
	err := poll(ctx, wait, func(ctx context.Context) (bool, error) {
		var state string
		if err := s.run(ctx, s.pageLoad, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return false, eris.Wrap(err, "page: read ready state")
		}
		return state == "complete", nil
	})
	if err != nil {
		return eris.Wrap(err, "page: wait for load")
	}
	return nil
}

// CloseExtraTabs closes every tab except the first and makes it current.
func (s *BrowserSession) CloseExtraTabs(ctx context.Context) error {
	infos, err := s.pages(ctx)
	if err != nil {
		return err
	}
	browser := chromedp.FromContext(s.browserCtx).Browser
	for _, info := range infos {
		if info.TargetID == s.tabs[0].id {
			continue
		}
		if err := target.CloseTarget(info.TargetID).Do(cdp.WithExecutor(ctx, browser)); err != nil {
			return eris.Wrapf(err, "page: close tab %s", info.TargetID)
		}
	}

	for _, t := range s.tabs[1:] {
		t.cancel()
	}
	s.tabs = s.tabs[:1]
	s.cur = 0
	return nil
}

// Snapshot captures a full-page PNG screenshot.
func (s *BrowserSession) Snapshot(ctx context.Context) (Artifact, error) {
	var buf []byte
	if err := s.run(ctx, s.pageLoad, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return Artifact{}, eris.Wrap(err, "page: screenshot")
	}
	return Artifact{Ext: "png", Data: buf}, nil
}

// Close shuts the browser down. Repeated calls are no-ops.
func (s *BrowserSession) Close() error {
	s.closeOnce.Do(func() {
		for _, t := range s.tabs[1:] {
			t.cancel()
		}
		s.browserCancel()
		s.allocCancel()
	})
	return nil
}
