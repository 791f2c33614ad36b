// Package conf loads the config files under <root>/config and wires the
// application: logger, key-value backend, store, drafts, renderer, services.
package conf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-json-experiment/json"
	"go.uber.org/zap"

	"github.com/zeptools/clinsup/db"
	"github.com/zeptools/clinsup/db/kvdb"
	"github.com/zeptools/clinsup/db/kvdb/impls/memory"
	"github.com/zeptools/clinsup/db/kvdb/impls/redis"
	"github.com/zeptools/clinsup/db/kvdb/impls/sqlite"
	"github.com/zeptools/clinsup/drafts"
	"github.com/zeptools/clinsup/form"
	"github.com/zeptools/clinsup/notify"
	"github.com/zeptools/clinsup/pdfs"
	"github.com/zeptools/clinsup/pdfs/impls/fpdf"
	"github.com/zeptools/clinsup/rasterize"
	"github.com/zeptools/clinsup/rasterize/rod"
	"github.com/zeptools/clinsup/rasterize/textimg"
	"github.com/zeptools/clinsup/render"
	"github.com/zeptools/clinsup/schedjobs"
	"github.com/zeptools/clinsup/sec"
	"github.com/zeptools/clinsup/store"
	"github.com/zeptools/clinsup/svc"
	"github.com/zeptools/clinsup/validate"
)

const DefaultAppName = "clinsup"

// Core - common config
type Core struct {
	AppName     string               `json:"app_name"`
	Debug       bool                 `json:"debug"`
	DefaultUser string               `json:"default_user"` // used when no user is given
	Title       string               `json:"title"`        // document header, e.g. "<Org> - Clinical Supervision Form"
	AppRoot     string               `json:"-"`
	RootCtx     context.Context      `json:"-"` // Global Context with RootCancel
	RootCancel  context.CancelFunc   `json:"-"` // CancelFunc for RootCtx
	Logger      *zap.Logger          `json:"-"`
	KVDBConf    kvdb.Conf            `json:"-"` // loadKVDBConf
	KVDBClient  kvdb.Client          `json:"-"` // PrepareKVDatabase
	CryptoConf  CryptoConf           `json:"-"`
	Store       *store.Store         `json:"-"` // PrepareStore
	Schema      *form.Schema         `json:"-"`
	Drafts      *drafts.Manager      `json:"-"` // PrepareDrafts
	Debouncer   *schedjobs.Debouncer `json:"-"` // PrepareDebouncer
	RenderConf  RenderConf           `json:"-"`
	Rasterizer  rasterize.Rasterizer `json:"-"` // PrepareRenderer
	Renderer    *render.Renderer     `json:"-"`

	services svc.Group
}

type CryptoConf struct {
	Key string `json:"key"` // base64 (std or url) 32 bytes; empty = values stored in plain text
}

type RenderConf struct {
	Paper      string  `json:"paper"`      // "A4" | "Letter"
	Margin     float64 `json:"margin"`     // pt
	Rasterizer string  `json:"rasterizer"` // "text" | "rod"
	ControlURL string  `json:"control_url"`
	Width      int     `json:"width"` // px of the rasterized section
	TimeoutMS  int     `json:"timeout_ms"`
	OutDir     string  `json:"out_dir"`
}

// BaseInit - 1st step for initialization
// 1. set AppRoot
// 2. load config/.core.json file (optional)
// 3. build the logger
// 4. Start ShutdownSignalListener
func (c *Core) BaseInit(appRoot string, rootCtx context.Context, rootCancel context.CancelFunc) error {
	c.AppRoot = appRoot
	if _, err := c.readConfFile(".core.json", c); err != nil {
		return err
	}
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	if c.Title == "" {
		c.Title = render.DefaultTitle
	}
	logger, err := NewLogger(c.Debug)
	if err != nil {
		return err
	}
	c.Logger = logger.Named(c.AppName)
	c.services.Log = c.Logger
	c.RootCtx = rootCtx
	c.RootCancel = rootCancel
	c.startShutdownSignalListener()
	return nil
}

// NewLogger returns a production zap logger writing to stderr, at debug level when debug is set
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// readConfFile decodes config/<name> into v. A missing file leaves v untouched.
func (c *Core) readConfFile(name string, v any) (bool, error) {
	confFilePath := filepath.Join(c.AppRoot, "config", name)
	confBytes, err := os.ReadFile(confFilePath) // ([]byte, error)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err = json.Unmarshal(confBytes, v); err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return true, nil
}

func (c *Core) AddService(s svc.Service) {
	c.services.Add(s)
}

func (c *Core) StartServices() error {
	return c.services.Start()
}

func (c *Core) WaitServicesDone() error {
	return c.services.Wait()
}

func (c *Core) StopServices() {
	c.services.Stop()
}

var once sync.Once

func (c *Core) startShutdownSignalListener() {
	once.Do(func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigs
			c.Logger.Info("got signal, shutting down", zap.String("signal", sig.String()), zap.String("app", c.AppName))
			c.RootCancel() // broadcast to all child services via Context.Done()
		}()
	})
	c.Logger.Debug("shutdown signal listener started")
}

func (c *Core) PrepareKVDatabase() error {
	// Load KV Database Config File
	err := c.loadKVDBConf()
	if err != nil {
		return err
	}
	if err = c.prepareKVDBClient(); err != nil {
		return err
	}
	return nil
}

func (c *Core) loadKVDBConf() error {
	c.KVDBConf = kvdb.Conf{Type: "sqlite", Path: filepath.Join("data", "drafts.db")}
	if _, err := c.readConfFile(".kv-databases.json", &c.KVDBConf); err != nil {
		return err
	}
	if c.KVDBConf.Type == "sqlite" && c.KVDBConf.Path != ":memory:" && !filepath.IsAbs(c.KVDBConf.Path) {
		c.KVDBConf.Path = filepath.Join(c.AppRoot, c.KVDBConf.Path)
	}
	return nil
}

func (c *Core) prepareKVDBClient() error {
	logger := c.Logger.Named("kvdb")
	switch c.KVDBConf.Type {
	case "sqlite":
		if c.KVDBConf.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(c.KVDBConf.Path), 0o700); err != nil {
				return err
			}
		}
		c.KVDBClient = &sqlite.Client{Conf: &c.KVDBConf, Logger: logger}
	case "memory":
		c.KVDBClient = memory.New()
	case "redis":
		c.KVDBClient = &redis.Client{Conf: &c.KVDBConf, Logger: logger}
	default:
		return fmt.Errorf("unsupported key-value database type %q", c.KVDBConf.Type)
	}
	return c.KVDBClient.Init()
}

// PrepareStore builds the user-scoped store over KVDBClient, encrypting
// values when config/.storage-crypto.json carries a key.
// Prerequisite: KVDBClient
func (c *Core) PrepareStore() error {
	if c.KVDBClient == nil {
		return errors.New("kv database client not ready")
	}
	if _, err := c.readConfFile(".storage-crypto.json", &c.CryptoConf); err != nil {
		return err
	}
	var cipher store.Cipher
	if c.CryptoConf.Key != "" {
		vc, err := sec.NewValueCipherBase64(c.CryptoConf.Key)
		if err != nil {
			return fmt.Errorf("storage crypto: %w", err)
		}
		cipher = vc
	}
	c.Store = store.New(c.KVDBClient, cipher, c.Logger)
	return nil
}

// PrepareDrafts loads the form schema and builds the draft manager.
// Prerequisite: Store
func (c *Core) PrepareDrafts(confirmer drafts.Confirmer, notifier notify.Notifier) error {
	if c.Store == nil {
		return errors.New("store not ready")
	}
	schema, err := form.DefaultSchema()
	if err != nil {
		return err
	}
	c.Schema = schema
	c.Drafts = drafts.NewManager(c.Store, schema, drafts.Options{
		Confirmer: confirmer,
		Notifier:  notify.Multi{notifier, notify.Logger{Log: c.Logger.Named("notify")}},
		Logger:    c.Logger,
	})
	return nil
}

func (c *Core) PrepareDebouncer() {
	c.Debouncer = schedjobs.NewDebouncer("autosave", c.Logger)
	c.AddService(c.Debouncer)
}

// PrepareRenderer loads config/.renderer.json and builds the rasterizer and renderer
func (c *Core) PrepareRenderer() error {
	if _, err := c.readConfFile(".renderer.json", &c.RenderConf); err != nil {
		return err
	}
	paper, err := pdfs.LookupPaperSize(c.RenderConf.Paper)
	if err != nil {
		return err
	}
	switch c.RenderConf.Rasterizer {
	case "", "text":
		c.Rasterizer = &textimg.Rasterizer{Width: c.RenderConf.Width}
	case "rod":
		c.Rasterizer, err = rod.New(rod.Conf{
			ControlURL: c.RenderConf.ControlURL,
			Width:      c.RenderConf.Width,
			Timeout:    time.Duration(c.RenderConf.TimeoutMS) * time.Millisecond,
		}, c.Logger)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported rasterizer %q", c.RenderConf.Rasterizer)
	}
	title := c.Title
	c.Renderer = render.New(render.Options{
		Paper:      paper,
		Margin:     c.RenderConf.Margin,
		Title:      title,
		NewDoc:     func(p pdfs.PaperSize, t string) pdfs.Composer { return fpdf.New(p, t) },
		Rasterizer: c.Rasterizer,
		Validator:  validate.Validator{},
		Logger:     c.Logger,
	})
	return nil
}

// OutDir resolves where exports are written
func (c *Core) OutDir() string {
	dir := c.RenderConf.OutDir
	if dir == "" {
		return c.AppRoot
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.AppRoot, dir)
	}
	return dir
}

func (c *Core) ResourceCleanUp() {
	c.Logger.Debug("resource cleanup")
	if c.KVDBClient != nil {
		db.CloseClient(c.Logger, "kvdb:"+c.KVDBConf.Type, c.KVDBClient)
	}
	if r, ok := c.Rasterizer.(*rod.Rasterizer); ok {
		db.CloseClient(c.Logger, "rod", r)
	}
	_ = c.Logger.Sync()
}
