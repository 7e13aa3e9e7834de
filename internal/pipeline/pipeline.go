// Package pipeline runs load, classify, clean, select and aggregate for one session.
package pipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/KaramelBytes/boxheat-cli/internal/analysis"
	"github.com/KaramelBytes/boxheat-cli/internal/clean"
	"github.com/KaramelBytes/boxheat-cli/internal/dataset"
	"github.com/KaramelBytes/boxheat-cli/internal/render"
	"github.com/KaramelBytes/boxheat-cli/internal/selection"
)

// ProcessedFileName is the download name of the cleaned dataset.
const ProcessedFileName = "processed_data.csv"

// ProcessedMIME is the download content type of the cleaned dataset.
const ProcessedMIME = "text/csv"

// ErrNoDataset is returned when Run is called before a successful Load.
var ErrNoDataset = errors.New("no dataset loaded")

// ErrNoRun is returned when a rendered artifact is requested before any Run.
var ErrNoRun = errors.New("pipeline has not been run yet")

// NoticeKind classifies a non-fatal condition reported with a result.
type NoticeKind string

const InsufficientSelection NoticeKind = "insufficient_selection"

// Notice is reported alongside a result and never aborts the run.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Request holds the per-run choices. Nil column slices take the defaults.
type Request struct {
	Strategy clean.Strategy
	Method   analysis.Method
	Select   selection.Selection
}

// Result is the outcome of one run.
type Result struct {
	Cleaned   *dataset.Dataset
	Strategy  clean.Strategy
	Method    analysis.Method
	Selection selection.Selection
	Dropped   int
	Filled    map[string]int
	Warnings  []string
	Box       *analysis.BoxData
	Long      *analysis.LongForm
	Corr      *analysis.CorrMatrix // nil when fewer than two heat columns
	Notices   []Notice
}

// Session is the per-user pipeline state. It is not safe for concurrent use;
// callers serialize access.
type Session struct {
	identity string
	data     *dataset.Dataset
	cls      dataset.Classification
	last     *Result
	// Debugf receives stage details when set.
	Debugf func(format string, args ...any)
}

// NewSession returns an empty session.
func NewSession() *Session { return &Session{} }

func (s *Session) debugf(format string, args ...any) {
	if s.Debugf != nil {
		s.Debugf(format, args...)
	}
}

// Load parses f and replaces the session's dataset wholesale. Reloading a file with the
// same identity keeps the current dataset. On failure the session is left empty.
func (s *Session) Load(f dataset.File, opt dataset.Options) error {
	id := f.Identity() + fmt.Sprintf("|%s|%d", opt.SheetName, opt.SheetIndex)
	if s.data != nil && id == s.identity {
		s.debugf("load: %s unchanged, reusing dataset", f.Name)
		return nil
	}
	s.reset()
	ds, err := dataset.Load(f, opt)
	if err != nil {
		return err
	}
	cls, err := dataset.Classify(ds)
	if err != nil {
		return err
	}
	s.identity, s.data, s.cls = id, ds, cls
	s.debugf("load: %s rows=%d numeric=%v categorical=%v", f.Name, ds.Rows(), cls.Numeric, cls.Categorical)
	return nil
}

func (s *Session) reset() {
	s.identity, s.data, s.cls, s.last = "", nil, dataset.Classification{}, nil
}

// Dataset returns the loaded dataset, or nil.
func (s *Session) Dataset() *dataset.Dataset { return s.data }

// Classification returns the loaded dataset's classification.
func (s *Session) Classification() dataset.Classification { return s.cls }

// Last returns the most recent result, or nil.
func (s *Session) Last() *Result { return s.last }

// Run executes clean, select and aggregate against the loaded dataset.
func (s *Session) Run(req Request) (*Result, error) {
	if s.data == nil {
		return nil, ErrNoDataset
	}
	if req.Strategy == "" {
		req.Strategy = clean.DropRows
	}
	if req.Method == "" {
		req.Method = analysis.Pearson
	}
	sel := selection.Resolve(req.Select, s.cls)
	if err := selection.Validate(sel, s.cls); err != nil {
		return nil, err
	}

	cleaned, err := clean.Apply(s.data, s.cls.Numeric, req.Strategy)
	if err != nil {
		return nil, err
	}
	s.debugf("clean: strategy=%s rows=%d dropped=%d", req.Strategy.Short(), cleaned.Data.Rows(), cleaned.Dropped)
	res := &Result{
		Cleaned:   cleaned.Data,
		Strategy:  req.Strategy,
		Method:    req.Method,
		Selection: sel,
		Dropped:   cleaned.Dropped,
		Filled:    cleaned.Filled,
		Warnings:  cleaned.Warnings,
	}

	if len(sel.BoxColumns) > 0 {
		box, long, err := analysis.BuildBoxes(cleaned.Data, sel.BoxColumns, sel.GroupBy)
		if err != nil {
			return nil, err
		}
		res.Box, res.Long = box, long
		s.debugf("box: columns=%v group=%q boxes=%d long_rows=%d", sel.BoxColumns, sel.GroupBy, len(box.Boxes), len(long.Rows))
	}

	if len(sel.HeatColumns) < 2 {
		res.Notices = append(res.Notices, Notice{
			Kind:    InsufficientSelection,
			Message: "Select at least two numeric columns to generate a heatmap.",
		})
	} else {
		corr, err := analysis.Correlate(cleaned.Data, sel.HeatColumns, req.Method)
		if err != nil {
			return nil, err
		}
		res.Corr = corr
		s.debugf("heatmap: method=%s columns=%v", req.Method, sel.HeatColumns)
	}
	s.last = res
	return res, nil
}

// WriteBoxPlot renders the last run's box plot.
func (s *Session) WriteBoxPlot(w io.Writer, opt render.Options) error {
	if s.last == nil {
		return ErrNoRun
	}
	if s.last.Box == nil {
		return fmt.Errorf("%w: no box plot columns selected", render.ErrNothingToDraw)
	}
	return render.BoxPlot(w, s.last.Box, opt)
}

// WriteHeatmap renders the last run's heatmap.
func (s *Session) WriteHeatmap(w io.Writer, opt render.Options) error {
	if s.last == nil {
		return ErrNoRun
	}
	if s.last.Corr == nil {
		return fmt.Errorf("%w: select at least two numeric columns", render.ErrNothingToDraw)
	}
	return render.Heatmap(w, s.last.Corr, opt)
}

// WriteProcessed writes the dataset used by the last run as CSV.
func (s *Session) WriteProcessed(w io.Writer) error {
	if s.last == nil {
		return ErrNoRun
	}
	return s.last.Cleaned.WriteCSV(w)
}
