package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

// session is one remote browser connection driven through chromedp.
type session struct {
	index         int
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	navTimeout    time.Duration
	opTimeout     time.Duration
}

func dialChromedp(ctx context.Context, cfg Config, index int) (Conn, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), endpoint, chromedp.NoModifyURL)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	dialCtx, cancelDial := context.WithTimeout(ctx, cfg.NavTimeout)
	defer cancelDial()
	stopForward := forwardCancel(dialCtx, cancelBrowser)
	defer stopForward()

	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &session{
		index:         index,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		navTimeout:    cfg.NavTimeout,
		opTimeout:     cfg.OpTimeout,
	}, nil
}

func (s *session) Index() int {
	return s.index
}

// NewPage opens a new tab on the session's browser.
func (s *session) NewPage(ctx context.Context) (crawler.Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	stopForward := forwardCancel(ctx, cancelTab)
	defer stopForward()

	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		return nil, fmt.Errorf("open tab on session %d: %w", s.index, err)
	}
	return &page{
		tabCtx:     tabCtx,
		cancel:     cancelTab,
		navTimeout: s.navTimeout,
		opTimeout:  s.opTimeout,
	}, nil
}

func (s *session) Close() error {
	err := chromedp.Cancel(s.browserCtx)
	s.cancelBrowser()
	s.cancelAlloc()
	if err != nil {
		return fmt.Errorf("close session %d: %w", s.index, err)
	}
	return nil
}

// page is a single tab. Every operation is bounded by a timeout and by the
// caller's context.
type page struct {
	tabCtx     context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
	opTimeout  time.Duration
}

func (p *page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancelTask := context.WithTimeout(p.tabCtx, timeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()
	return chromedp.Run(taskCtx, actions...)
}

func (p *page) Navigate(ctx context.Context, url string) error {
	err := p.run(ctx, p.navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *page) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, p.opTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return false, fmt.Errorf("query %q: %w", selector, err)
	}
	return len(nodes) > 0, nil
}

func (p *page) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := p.run(ctx, p.opTimeout, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("text %q: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

func (p *page) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	if err := p.run(ctx, p.opTimeout, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.ByQuery)); err != nil {
		return "", false, fmt.Errorf("attribute %s of %q: %w", name, selector, err)
	}
	return value, ok, nil
}

func (p *page) InnerHTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := p.run(ctx, p.opTimeout, chromedp.InnerHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("inner html %q: %w", selector, err)
	}
	return html, nil
}

func (p *page) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, p.opTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (p *page) Visible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	if err := p.run(ctx, p.opTimeout, chromedp.Evaluate(visibleScript(selector), &visible)); err != nil {
		return false, fmt.Errorf("visibility %q: %w", selector, err)
	}
	return visible, nil
}

func (p *page) Hide(ctx context.Context, selector string) error {
	var hidden int
	if err := p.run(ctx, p.opTimeout, chromedp.Evaluate(hideScript(selector), &hidden)); err != nil {
		return fmt.Errorf("hide %q: %w", selector, err)
	}
	return nil
}

func (p *page) Close() error {
	err := chromedp.Cancel(p.tabCtx)
	p.cancel()
	if err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}

func visibleScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const style = window.getComputedStyle(el);
	if (style.display === "none" || style.visibility === "hidden") return false;
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
})()`, jsString(selector))
}

func hideScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const nodes = document.querySelectorAll(%s);
	nodes.forEach((el) => { el.style.display = "none"; });
	return nodes.length;
})()`, jsString(selector))
}

func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

var (
	_ Conn         = (*session)(nil)
	_ crawler.Page = (*page)(nil)
)
