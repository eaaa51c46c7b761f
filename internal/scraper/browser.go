package scraper

import (
	"context"
	"log"

	"github.com/chromedp/chromedp"
)

// Browser owns one headless Chrome session shared across a whole batch
// sweep. The session is expensive to start, so it is created lazily on
// first use and torn down once by the batch runner. The sequential scan
// design means it never has concurrent callers.
type Browser struct {
	headless bool

	cancelAlloc  context.CancelFunc
	cancelBrowse context.CancelFunc
	browserCtx   context.Context
}

// NewBrowser returns a Browser that will launch Chrome on first use.
func NewBrowser(headless bool) *Browser {
	return &Browser{headless: headless}
}

// ctx returns the shared browser context, launching Chrome if needed.
// The allocator is rooted in context.Background so it outlives the
// per-request contexts of individual scans.
func (b *Browser) ctx() context.Context {
	if b.browserCtx != nil {
		return b.browserCtx
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	var allocCtx context.Context
	allocCtx, b.cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.cancelBrowse = chromedp.NewContext(allocCtx)

	log.Printf("[scraper] Chrome session started (headless=%v)", b.headless)
	return b.browserCtx
}

// Close releases the Chrome session. Safe to call when none was ever
// started, and safe to call more than once; a later ctx() call will
// simply launch a fresh session.
func (b *Browser) Close() {
	if b.cancelBrowse != nil {
		b.cancelBrowse()
		b.cancelBrowse = nil
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
		b.cancelAlloc = nil
	}
	if b.browserCtx != nil {
		log.Println("[scraper] Chrome session released")
		b.browserCtx = nil
	}
}
