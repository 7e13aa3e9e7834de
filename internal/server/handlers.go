package server

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/KaramelBytes/boxheat-cli/internal/analysis"
	"github.com/KaramelBytes/boxheat-cli/internal/clean"
	"github.com/KaramelBytes/boxheat-cli/internal/dataset"
	"github.com/KaramelBytes/boxheat-cli/internal/imagegen"
	"github.com/KaramelBytes/boxheat-cli/internal/pipeline"
	"github.com/KaramelBytes/boxheat-cli/internal/render"
	"github.com/KaramelBytes/boxheat-cli/internal/selection"
)

type SessionDetail struct {
	ID           string   `json:"id"`
	File         string   `json:"file,omitempty"`
	Rows         int      `json:"rows"`
	Columns      []string `json:"columns"`
	Numeric      []string `json:"numeric"`
	Categorical  []string `json:"categorical"`
	LastStrategy string   `json:"last_strategy,omitempty"`
}

type RunRequest struct {
	Strategy    string   `json:"strategy"`
	Method      string   `json:"method"`
	BoxColumns  []string `json:"box_columns"`
	GroupBy     string   `json:"group_by"`
	HeatColumns []string `json:"heat_columns"`
}

// Correlation is a JSON-safe matrix; undefined coefficients are null.
type Correlation struct {
	Method  string       `json:"method"`
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

type BoxSummary struct {
	Variable string   `json:"variable"`
	Group    string   `json:"group,omitempty"`
	N        int      `json:"n"`
	Min      *float64 `json:"min"`
	Q1       *float64 `json:"q1"`
	Median   *float64 `json:"median"`
	Q3       *float64 `json:"q3"`
	Max      *float64 `json:"max"`
}

type RunResponse struct {
	Session     string              `json:"session"`
	Strategy    string              `json:"strategy"`
	Method      string              `json:"method"`
	Rows        int                 `json:"rows"`
	Dropped     int                 `json:"dropped"`
	Filled      map[string]int      `json:"filled,omitempty"`
	Selection   selection.Selection `json:"selection"`
	Warnings    []string            `json:"warnings,omitempty"`
	Notices     []pipeline.Notice   `json:"notices,omitempty"`
	Boxes       []BoxSummary        `json:"boxes,omitempty"`
	Correlation *Correlation        `json:"correlation,omitempty"`
}

type ImagineRequest struct {
	Prompt   string `json:"prompt"`
	Style    string `json:"style"`
	Demo     bool   `json:"demo"`
	Surprise bool   `json:"surprise"`
}

// withSession resolves :id and runs fn while holding the session lock.
func (s *Server) withSession(c echo.Context, fn func(e *entry) error) error {
	id := c.Param("id")
	e, ok := s.store.Get(id)
	if !ok {
		return NotFound("session " + id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e)
}

func (s *Server) createSession(c echo.Context) error {
	f, opt, err := s.readUpload(c)
	if err != nil {
		return err
	}
	e := s.store.Create()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.load(e, f, opt); err != nil {
		s.store.Delete(e.id)
		return err
	}
	return c.JSON(http.StatusCreated, detail(e))
}

func (s *Server) putFile(c echo.Context) error {
	f, opt, err := s.readUpload(c)
	if err != nil {
		return err
	}
	return s.withSession(c, func(e *entry) error {
		if err := s.load(e, f, opt); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, detail(e))
	})
}

func (s *Server) load(e *entry, f dataset.File, opt dataset.Options) error {
	e.session.Debugf = s.debugf
	if err := e.session.Load(f, opt); err != nil {
		e.name = ""
		return fromError(err)
	}
	e.name = f.Name
	return nil
}

func (s *Server) readUpload(c echo.Context) (dataset.File, dataset.Options, error) {
	var opt dataset.Options
	fh, err := c.FormFile("file")
	if err != nil {
		return dataset.File{}, opt, BadRequest(`send the file as multipart field "file"`, err)
	}
	if fh.Size > s.conf.maxUpload {
		return dataset.File{}, opt, tooLarge(s.conf.maxUpload)
	}
	src, err := fh.Open()
	if err != nil {
		return dataset.File{}, opt, InternalServerError(err)
	}
	defer src.Close()
	content, err := io.ReadAll(io.LimitReader(src, s.conf.maxUpload+1))
	if err != nil {
		return dataset.File{}, opt, InternalServerError(err)
	}
	if int64(len(content)) > s.conf.maxUpload {
		return dataset.File{}, opt, tooLarge(s.conf.maxUpload)
	}
	opt.SheetName = strings.TrimSpace(c.FormValue("sheet"))
	if v := strings.TrimSpace(c.FormValue("sheet_index")); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil || i < 1 {
			return dataset.File{}, opt, BadRequest("sheet_index is 1-based", fmt.Errorf("invalid sheet_index %q", v))
		}
		opt.SheetIndex = i
	}
	return dataset.File{Name: fh.Filename, Content: content}, opt, nil
}

func tooLarge(limit int64) *echo.HTTPError {
	return NewErrorMessage(http.StatusRequestEntityTooLarge, "uploaded file is too large",
		WithAdvice(fmt.Sprintf("the limit is %d MB", limit>>20)))
}

func (s *Server) getSession(c echo.Context) error {
	return s.withSession(c, func(e *entry) error {
		return c.JSON(http.StatusOK, detail(e))
	})
}

func (s *Server) deleteSession(c echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return NotFound("session " + id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) run(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("send a JSON selection", err)
	}
	strategy := s.conf.strategy
	if req.Strategy != "" {
		st, err := clean.ParseStrategy(req.Strategy)
		if err != nil {
			return BadRequest("strategy is one of drop, mean, median", err)
		}
		strategy = st
	}
	method := s.conf.method
	if req.Method != "" {
		m, err := analysis.ParseMethod(req.Method)
		if err != nil {
			return BadRequest("method is one of pearson, spearman, kendall", err)
		}
		method = m
	}
	return s.withSession(c, func(e *entry) error {
		res, err := e.session.Run(pipeline.Request{
			Strategy: strategy,
			Method:   method,
			Select: selection.Selection{
				BoxColumns:  req.BoxColumns,
				GroupBy:     req.GroupBy,
				HeatColumns: req.HeatColumns,
			},
		})
		if err != nil {
			return fromError(err)
		}
		return c.JSON(http.StatusOK, runResponse(e.id, res))
	})
}

func (s *Server) boxplot(c echo.Context) error {
	return s.withSession(c, func(e *entry) error {
		var buf bytes.Buffer
		if err := e.session.WriteBoxPlot(&buf, s.conf.render); err != nil {
			return fromError(err)
		}
		return c.Blob(http.StatusOK, "image/png", buf.Bytes())
	})
}

func (s *Server) heatmap(c echo.Context) error {
	opt := s.conf.render
	if cm := c.QueryParam("colormap"); cm != "" {
		if _, err := render.LookupColormap(cm); err != nil {
			return BadRequest("colormap is one of "+strings.Join(render.Colormaps(), ", "), err)
		}
		opt.Colormap = cm
	}
	return s.withSession(c, func(e *entry) error {
		var buf bytes.Buffer
		if err := e.session.WriteHeatmap(&buf, opt); err != nil {
			return fromError(err)
		}
		return c.Blob(http.StatusOK, "image/png", buf.Bytes())
	})
}

func (s *Server) processed(c echo.Context) error {
	return s.withSession(c, func(e *entry) error {
		var buf bytes.Buffer
		if err := e.session.WriteProcessed(&buf); err != nil {
			return fromError(err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=%q", pipeline.ProcessedFileName))
		return c.Blob(http.StatusOK, pipeline.ProcessedMIME, buf.Bytes())
	})
}

func (s *Server) imagine(c echo.Context) error {
	var req ImagineRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("send a JSON prompt", err)
	}
	if req.Surprise && strings.TrimSpace(req.Prompt) == "" {
		req.Prompt = imagegen.Surprise(nil)
	}
	if req.Demo || s.conf.images == nil {
		img, err := imagegen.Demo(req.Prompt)
		if err != nil {
			return fromError(err)
		}
		return c.JSON(http.StatusOK, img)
	}
	style := req.Style
	if style == "" {
		style = s.conf.imageStyle
	}
	img, err := s.conf.images.Generate(c.Request().Context(), imagegen.ComposePrompt(style, req.Prompt))
	if err != nil {
		return fromError(err)
	}
	return c.Blob(http.StatusOK, img.ContentType, img.Data)
}

func detail(e *entry) SessionDetail {
	d := SessionDetail{ID: e.id, File: e.name, Columns: []string{}, Numeric: []string{}, Categorical: []string{}}
	if ds := e.session.Dataset(); ds != nil {
		cls := e.session.Classification()
		d.Rows = ds.Rows()
		d.Columns = ds.Names()
		d.Numeric = append(d.Numeric, cls.Numeric...)
		d.Categorical = append(d.Categorical, cls.Categorical...)
	}
	if last := e.session.Last(); last != nil {
		d.LastStrategy = string(last.Strategy)
	}
	return d
}

func runResponse(id string, res *pipeline.Result) RunResponse {
	out := RunResponse{
		Session:   id,
		Strategy:  string(res.Strategy),
		Method:    string(res.Method),
		Rows:      res.Cleaned.Rows(),
		Dropped:   res.Dropped,
		Filled:    res.Filled,
		Selection: res.Selection,
		Warnings:  res.Warnings,
		Notices:   res.Notices,
	}
	if res.Box != nil {
		for _, b := range res.Box.Boxes {
			out.Boxes = append(out.Boxes, BoxSummary{
				Variable: b.Variable,
				Group:    b.Group,
				N:        b.Summary.N,
				Min:      num(b.Summary.Min),
				Q1:       num(b.Summary.Q1),
				Median:   num(b.Summary.Median),
				Q3:       num(b.Summary.Q3),
				Max:      num(b.Summary.Max),
			})
		}
	}
	if res.Corr != nil {
		corr := &Correlation{Method: string(res.Corr.Method), Columns: res.Corr.Columns}
		for _, row := range res.Corr.Values {
			vals := make([]*float64, len(row))
			for j, v := range row {
				vals[j] = num(v)
			}
			corr.Values = append(corr.Values, vals)
		}
		out.Correlation = corr
	}
	return out
}

func num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
