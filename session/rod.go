package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/devices"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/opinionprobe/config"
	"github.com/use-agent/opinionprobe/models"
	"github.com/ysmood/gson"
)

// consentXPath matches the consent dialog's accept button in Spanish or English.
const consentXPath = `//button[contains(., 'Aceptar') or contains(., 'Accept')]`

// RodFactory acquires go-rod sessions, either on a remote CDP hub (one hub
// session per Acquire) or in a locally launched Chromium (one incognito
// context per Acquire).
type RodFactory struct {
	remote     config.RemoteConfig
	browserCfg config.BrowserConfig
	navTimeout time.Duration

	launchOnce sync.Once
	launcher   *launcher.Launcher
	local      *rod.Browser
	launchErr  error
}

// NewRodFactory creates a factory. remote.Mode selects remote or local sessions.
func NewRodFactory(remote config.RemoteConfig, browserCfg config.BrowserConfig, navTimeout time.Duration) *RodFactory {
	return &RodFactory{
		remote:     remote,
		browserCfg: browserCfg,
		navTimeout: navTimeout,
	}
}

// Acquire opens a browser environment for desc.
func (f *RodFactory) Acquire(ctx context.Context, desc models.ConfigurationDescriptor) (Session, error) {
	var (
		browser *rod.Browser
		err     error
	)
	if f.remote.Mode == config.ModeLocal {
		browser, err = f.acquireLocal(ctx)
	} else {
		browser, err = f.acquireRemote(ctx, desc)
	}
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSessionAcquire,
			fmt.Sprintf("failed to start session for %s", desc.Label), err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		return nil, models.NewScrapeError(models.ErrCodeSessionAcquire,
			"failed to create page", err)
	}

	s := &rodSession{browser: browser, page: page, navTimeout: f.navTimeout}
	f.preparePage(s, desc)
	return s, nil
}

func (f *RodFactory) acquireRemote(ctx context.Context, desc models.ConfigurationDescriptor) (*rod.Browser, error) {
	wsURL, err := EndpointURL(f.remote.Endpoint, BuildCaps(f.remote, desc))
	if err != nil {
		return nil, err
	}
	browser := rod.New().ControlURL(wsURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	// Detach from the acquire context; the session outlives it.
	return browser.Context(context.Background()), nil
}

func (f *RodFactory) acquireLocal(ctx context.Context) (*rod.Browser, error) {
	f.launchOnce.Do(func() {
		f.local, f.launchErr = f.launch()
	})
	if f.launchErr != nil {
		return nil, f.launchErr
	}
	inc, err := f.local.Context(ctx).Incognito()
	if err != nil {
		return nil, err
	}
	return inc.Context(context.Background()), nil
}

// launch starts the shared local Chromium.
func (f *RodFactory) launch() (*rod.Browser, error) {
	cfg := f.browserCfg
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	f.launcher = l
	return browser, nil
}

// preparePage applies per-page setup. Every step is best-effort and must run
// before the first navigation.
func (f *RodFactory) preparePage(s *rodSession, desc models.ConfigurationDescriptor) {
	page := s.page

	if f.remote.Mode == config.ModeLocal && desc.Mobile != nil {
		device := devices.Pixel2
		if strings.Contains(desc.Mobile.Device, "iPhone") {
			device = devices.IPhoneX
		}
		if err := page.Emulate(device); err != nil {
			slog.Warn("device emulation failed", "label", desc.Label, "error", err)
		}
	}

	if f.browserCfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"label", desc.Label, "error", err)
		}
	}

	if f.browserCfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": f.browserCfg.AcceptLanguage}),
		}.Call(page)
	}

	s.router = installBlocker(page, f.browserCfg.BlockedResourceTypes, f.browserCfg.BlockAds)
}

// Close kills the shared local browser, if one was launched.
func (f *RodFactory) Close() {
	if f.local == nil {
		return
	}
	slog.Info("closing local browser")
	_ = f.local.Close()
	if f.launcher != nil {
		f.launcher.Kill()
	}
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// rodSession is a Session backed by one rod page.
type rodSession struct {
	browser    *rod.Browser
	page       *rod.Page
	router     *rod.HijackRouter
	navTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if s.navTimeout > 0 {
		p = p.Timeout(s.navTimeout)
		defer p.CancelTimeout()
	}
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation to "+url+" failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", url, "error", err)
	}
	return nil
}

func (s *rodSession) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = rodElement{el: el}
	}
	return out, nil
}

func (s *rodSession) WaitElement(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	el, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return nil, err
	}
	return rodElement{el: el.CancelTimeout()}, nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) DismissConsent(ctx context.Context, wait time.Duration) error {
	el, err := s.page.Context(ctx).Timeout(wait).ElementX(consentXPath)
	if err != nil {
		return err
	}
	return el.CancelTimeout().Click(proto.InputMouseButtonLeft, 1)
}

// Close stops request interception, closes the page and ends the browser
// session (or disposes the incognito context). Safe to call more than once.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		_ = s.page.Close()
		s.closeErr = s.browser.Close()
	})
	return s.closeErr
}

type rodElement struct {
	el *rod.Element
}

func (e rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e rodElement) Attr(name string) (string, error) {
	if name == "href" || name == "src" {
		v, err := e.el.Property(name)
		if err != nil {
			return "", err
		}
		if v.Nil() {
			return "", nil
		}
		return v.Str(), nil
	}
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}
