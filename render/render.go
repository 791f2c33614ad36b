// Package render produces the supervision document: a blank printable
// template or the filled form with each eligible section captured as an image.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/zeptools/clinsup/apperr"
	"github.com/zeptools/clinsup/pdfs"
	"github.com/zeptools/clinsup/rasterize"
	"github.com/zeptools/clinsup/sections"
	"github.com/zeptools/clinsup/session"
	"github.com/zeptools/clinsup/validate"
)

const (
	DefaultMargin   = 40
	DefaultTitle    = "Clinical Supervision Form"
	GeneratedLayout = "1/2/2006, 3:04:05 PM"
)

// ComposerFactory opens an empty document
type ComposerFactory func(paper pdfs.PaperSize, title string) pdfs.Composer

type Options struct {
	Paper      pdfs.PaperSize // zero = A4
	Margin     float64        // zero = DefaultMargin
	Title      string         // header line, zero = DefaultTitle
	NewDoc     ComposerFactory
	Rasterizer rasterize.Rasterizer
	Validator  validate.Validator
	Logger     *zap.Logger
	Now        func() time.Time
}

type Renderer struct {
	opts Options
	log  *zap.Logger
	// one export at a time; a second request waits for the first
	sem *semaphore.Weighted
}

// Document is a finished export. Failures lists the sections replaced by
// an error placeholder.
type Document struct {
	Filename string
	Doc      pdfs.Composer
	Failures []*apperr.RenderFailure
}

// Save writes the document into dir under its filename
func (d *Document) Save(dir string) (string, error) {
	if d.Filename == "" || d.Filename == "." || d.Filename == ".." || filepath.Base(d.Filename) != d.Filename {
		return "", fmt.Errorf("save %q: filename must be a single path element", d.Filename)
	}
	path := filepath.Join(dir, d.Filename)
	if err := d.Doc.WriteToFile(path); err != nil {
		return "", fmt.Errorf("save %s: %w", d.Filename, err)
	}
	return path, nil
}

func New(opts Options) *Renderer {
	if opts.Paper.Width == 0 {
		opts.Paper = pdfs.A4Size
	}
	if opts.Margin == 0 {
		opts.Margin = DefaultMargin
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.NewDoc == nil {
		opts.NewDoc = func(paper pdfs.PaperSize, _ string) pdfs.Composer { return pdfs.NewRecorder(paper) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Renderer{opts: opts, log: opts.Logger.Named("render"), sem: semaphore.NewWeighted(1)}
}

// acquire waits for the in-flight export. ctx only bounds the wait: once
// started an export runs to the end.
func (r *Renderer) acquire(ctx context.Context) (context.Context, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return context.WithoutCancel(ctx), nil
}

// Blank lays out the fixed template. No form data is read.
func (r *Renderer) Blank(ctx context.Context) (*Document, error) {
	if _, err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	doc := r.opts.NewDoc(r.opts.Paper, r.opts.Title)
	l := NewLayout(doc, r.opts.Margin)
	l.header(r.opts.Title)
	for _, b := range BlankSchedule() {
		b.place(l)
	}
	if err := l.footers(BlankCaption); err != nil {
		return nil, err
	}
	r.log.Info("blank document rendered", zap.Int("pages", doc.PageCount()))
	return &Document{Filename: BlankFilename, Doc: doc}, nil
}

// Filled validates the live form, then captures every section the review
// type makes eligible, expanded or not. It holds the session lock throughout.
func (r *Renderer) Filled(ctx context.Context, sess *session.Session) (*Document, error) {
	ctx, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	sess.Lock()
	defer sess.Unlock()

	if err = r.opts.Validator.Validate(sess); err != nil {
		return nil, err
	}
	if r.opts.Rasterizer == nil {
		return nil, errors.New("render: no rasterizer configured")
	}
	now := r.opts.Now()
	st := sess.Form
	out := &Document{
		Filename: Filename(st.Get("supervisorName"), st.Get("staffName"), st.Get("reviewType"), st.Get("supervisionDate"), now),
		Doc:      r.opts.NewDoc(r.opts.Paper, r.opts.Title),
	}
	l := NewLayout(out.Doc, r.opts.Margin)
	l.header(r.opts.Title)
	l.body()
	for _, s := range []struct{ prefix, value string }{
		{"Supervision Date: ", st.Get("supervisionDate")},
		{"Supervisor: ", st.Get("supervisorName")},
		{"Staff: ", st.Get("staffName")},
	} {
		if s.value != "" {
			l.Doc.Text(l.Margin, l.Y, s.prefix+s.value)
			l.Y += 20
		}
	}
	l.Doc.Text(l.Margin, l.Y, "Review Type: "+reviewTypeLabel(sess.Sections.ReviewType()))
	l.Y += 40

	for _, id := range sess.Sections.Eligible() {
		title := id
		if def := st.Schema().Section(id); def != nil {
			title = def.Title
		}
		img, err := r.capture(ctx, sess, id)
		if err != nil {
			l.Ensure(45)
			l.heading(title)
		} else {
			err = placeImage(l, title, img)
		}
		if err != nil {
			rf := &apperr.RenderFailure{SectionID: id, Err: err}
			out.Failures = append(out.Failures, rf)
			r.log.Error("section capture failed", zap.String("section", id), zap.Error(err))
			placeError(l, err)
		}
	}
	if err = l.footers("Generated: " + now.Format(GeneratedLayout)); err != nil {
		return nil, err
	}
	r.log.Info("document rendered",
		zap.String("file", out.Filename),
		zap.Int("pages", out.Doc.PageCount()),
		zap.Int("failures", len(out.Failures)),
	)
	return out, nil
}

// capture forces the section open, rasterizes it and puts every section
// state back the way it was.
func (r *Renderer) capture(ctx context.Context, sess *session.Session, id string) (img image.Image, err error) {
	saved := sess.Sections.Snapshot()
	defer sess.Sections.Restore(saved)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("rasterizer panic: %v", p)
		}
	}()
	if err = sess.Sections.Set(id, sections.Expanded); err != nil {
		return nil, err
	}
	view, err := rasterize.BuildView(sess.Form, id, true)
	if err != nil {
		return nil, err
	}
	img, err = r.opts.Rasterizer.Rasterize(ctx, view)
	if err == nil && (img == nil || img.Bounds().Empty()) {
		err = errors.New("empty image")
	}
	return img, err
}

// placeImage scales img to the content width keeping its aspect ratio and
// moves to a new page when title and image do not fit. Images taller than a
// page are shrunk to fit one.
func placeImage(l *Layout, title string, img image.Image) error {
	b := img.Bounds()
	w := l.ContentWidth()
	h := float64(b.Dy()) * w / float64(b.Dx())
	if limit := l.Bottom() - l.Margin - 25; h > limit {
		w, h = w*limit/h, limit
	}
	l.Ensure(25 + h)
	l.heading(title)
	if err := l.Doc.Image(img, l.Margin, l.Y, w, h); err != nil {
		return err
	}
	l.Y += h + 30
	return nil
}

// placeError writes the red placeholder below the section heading
func placeError(l *Layout, err error) {
	l.Doc.SetFont(font, "", 10)
	l.Doc.SetTextColor(red)
	for _, s := range l.Doc.SplitText(fmt.Sprintf("[Error capturing section content: %v]", err), l.ContentWidth()) {
		l.Ensure(20)
		l.Doc.Text(l.Margin, l.Y, s)
		l.Y += 20
	}
	l.body()
}

func reviewTypeLabel(rt sections.ReviewType) string {
	if rt == sections.Client {
		return "Client-Specific Review"
	}
	return "General Review"
}
