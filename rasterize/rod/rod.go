// Package rod rasterizes a section by laying it out as HTML in headless
// Chrome and screenshotting the section element.
package rod

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/zeptools/clinsup/rasterize"
	"github.com/zeptools/clinsup/tpl"
)

//go:embed templates
var templatesFS embed.FS

type Conf struct {
	ControlURL string        // existing DevTools endpoint; empty = launch a local headless Chrome
	Width      int           // viewport width in px
	Timeout    time.Duration // per section
}

type Rasterizer struct {
	conf  Conf
	log   *zap.Logger
	pages *tpl.HTMLTemplateStore

	mu      sync.Mutex
	browser *rod.Browser
	launch  *launcher.Launcher
}

var _ rasterize.Rasterizer = (*Rasterizer)(nil)

func New(conf Conf, logger *zap.Logger) (*Rasterizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if conf.Width <= 0 {
		conf.Width = 1200
	}
	if conf.Timeout <= 0 {
		conf.Timeout = 30 * time.Second
	}
	store := tpl.NewHTMLTemplateStore(template.FuncMap{})
	if err := store.LoadBaseTemplates(templatesFS, "templates", logger); err != nil {
		return nil, err
	}
	return &Rasterizer{conf: conf, log: logger.Named("rod"), pages: store}, nil
}

type signatureView struct {
	rasterize.Signature
	DataURL template.URL
}

type sectionView struct {
	*rasterize.SectionView
	Signatures []signatureView
}

type page struct {
	Width int
	View  sectionView
}

// HTML renders the standalone page for one section
func (r *Rasterizer) HTML(v *rasterize.SectionView) (string, error) {
	t, err := r.pages.Get("section")
	if err != nil {
		return "", err
	}
	sv := sectionView{SectionView: v}
	for _, s := range v.Signatures {
		item := signatureView{Signature: s}
		if s.Signed && s.Image != nil {
			var buf bytes.Buffer
			if err = png.Encode(&buf, s.Image); err != nil {
				return "", err
			}
			item.DataURL = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
		}
		sv.Signatures = append(sv.Signatures, item)
	}
	var out bytes.Buffer
	if err = t.Execute(&out, page{Width: r.conf.Width, View: sv}); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (r *Rasterizer) connect(ctx context.Context) (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}
	controlURL := r.conf.ControlURL
	if controlURL == "" {
		r.launch = launcher.New().Headless(true)
		u, err := r.launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	r.log.Info("browser connected", zap.String("control_url", controlURL))
	r.browser = browser
	return browser, nil
}

func (r *Rasterizer) Rasterize(ctx context.Context, v *rasterize.SectionView) (image.Image, error) {
	html, err := r.HTML(v)
	if err != nil {
		return nil, err
	}
	browser, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	p, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = p.Close() }()
	p = p.Timeout(r.conf.Timeout)

	if err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.conf.Width,
		Height:            800,
		DeviceScaleFactor: 2,
	}); err != nil {
		return nil, err
	}
	if err = p.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set content: %w", err)
	}
	el, err := p.Element("#" + v.ID)
	if err != nil {
		return nil, fmt.Errorf("find #%s: %w", v.ID, err)
	}
	shot, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("screenshot #%s: %w", v.ID, err)
	}
	return png.Decode(bytes.NewReader(shot))
}

// Close disconnects and stops a Chrome launched by this rasterizer
func (r *Rasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launch != nil {
		r.launch.Kill()
		r.launch = nil
	}
	return err
}
