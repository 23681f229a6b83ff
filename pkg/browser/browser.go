package browser

import (
	"bytes"
	"context"
	"image"
	_ "image/png"
	"net/url"
	"sync"

	"emperror.dev/errors"
	"github.com/chromedp/chromedp"
	"github.com/disintegration/imaging"
	"github.com/je4/utils/v2/pkg/zLogger"
)

// NewBrowser prepares a chrome instance. opts are passed as command line
// flags; the process is started by Startup or Run.
func NewBrowser(opts map[string]interface{}, logger zLogger.ZLogger, logf func(string, ...interface{})) (*Browser, error) {
	if logf == nil {
		logf = func(s string, i ...interface{}) {}
	}
	return &Browser{
		opts:   opts,
		logger: logger,
		logf:   logf,
	}, nil
}

type Browser struct {
	sync.Mutex
	opts        map[string]interface{}
	logger      zLogger.ZLogger
	logf        func(string, ...interface{})
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	listeners   []func(ev interface{})
}

// Run starts the browser unless it is already running.
func (browser *Browser) Run() error {
	if browser.IsRunning() {
		return nil
	}
	return browser.Startup()
}

func (browser *Browser) Startup() error {
	browser.Lock()
	defer browser.Unlock()
	if browser.cancel != nil {
		browser.cancel()
		browser.allocCancel()
	}

	execOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for key, val := range browser.opts {
		execOpts = append(execOpts, chromedp.Flag(key, val))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(browser.logf))
	for _, fn := range browser.listeners {
		chromedp.ListenTarget(ctx, fn)
	}
	// the first run launches the process
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return errors.Wrap(err, "cannot start browser")
	}
	browser.ctx = ctx
	browser.cancel = cancel
	browser.allocCancel = allocCancel
	browser.logger.Info().Msg("browser started")
	return nil
}

func (browser *Browser) IsRunning() bool {
	browser.Lock()
	defer browser.Unlock()
	return browser.ctx != nil && browser.ctx.Err() == nil
}

// Listen registers fn for all target events. Listeners survive a restart.
func (browser *Browser) Listen(fn func(ev interface{})) {
	browser.Lock()
	defer browser.Unlock()
	browser.listeners = append(browser.listeners, fn)
	if browser.ctx != nil {
		chromedp.ListenTarget(browser.ctx, fn)
	}
}

func (browser *Browser) Tasks(tasks chromedp.Tasks) error {
	browser.Lock()
	ctx := browser.ctx
	browser.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return errors.New("browser not running")
	}
	return errors.WithStack(chromedp.Run(ctx, tasks))
}

func (browser *Browser) Navigate(u *url.URL) error {
	if err := browser.Tasks(chromedp.Tasks{chromedp.Navigate(u.String())}); err != nil {
		return errors.Wrapf(err, "cannot navigate to %s", u.String())
	}
	return nil
}

// Screenshot captures the viewport, fits it into width x height and blurs it
// with sigma if sigma > 0.
func (browser *Browser) Screenshot(width int, height int, sigma float64) ([]byte, string, error) {
	var buf []byte
	if err := browser.Tasks(chromedp.Tasks{chromedp.CaptureScreenshot(&buf)}); err != nil {
		return nil, "", errors.Wrap(err, "cannot capture screenshot")
	}
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, "", errors.Wrap(err, "cannot decode screenshot")
	}
	switch {
	case width > 0 && height > 0:
		img = imaging.Fit(img, width, height, imaging.Lanczos)
	case width > 0 || height > 0:
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}
	if sigma > 0 {
		img = imaging.Blur(img, sigma)
	}
	result := bytes.NewBuffer(nil)
	if err := imaging.Encode(result, img, imaging.PNG); err != nil {
		return nil, "", errors.Wrap(err, "cannot encode screenshot")
	}
	return result.Bytes(), "image/png", nil
}

func (browser *Browser) Close() {
	browser.Lock()
	defer browser.Unlock()
	if browser.cancel == nil {
		return
	}
	browser.cancel()
	browser.allocCancel()
	browser.cancel = nil
	browser.allocCancel = nil
	browser.logger.Info().Msg("browser closed")
}
