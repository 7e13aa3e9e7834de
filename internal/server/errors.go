package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/KaramelBytes/boxheat-cli/internal/dataset"
	"github.com/KaramelBytes/boxheat-cli/internal/imagegen"
	"github.com/KaramelBytes/boxheat-cli/internal/pipeline"
	"github.com/KaramelBytes/boxheat-cli/internal/render"
	"github.com/KaramelBytes/boxheat-cli/internal/selection"
)

type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
	Cause  error  `json:"-"`
}

func (e ErrorMessage) String() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprint(" caused by:", e.Cause.Error()))
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string { return e.String() }

func (e ErrorMessage) Unwrap() error { return e.Cause }

type ErrorMessageOption func(in *ErrorMessage) *ErrorMessage

func WithAdvice(advice string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if advice != "" {
			in.Advice = advice
		}
		return in
	}
}

func WithError(err error) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, opt := range opts {
		msg = *opt(&msg)
	}
	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func NotFound(what string) *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, what+" not found")
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusBadRequest, "bad request", WithAdvice(advice), WithError(err))
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusInternalServerError, "unexpected error", WithError(err))
}

// fromError maps pipeline and image errors onto HTTP errors.
func fromError(err error) *echo.HTTPError {
	var (
		le *dataset.LoadError
		ve *selection.ValidationError
		re *imagegen.RemoteAPIError
	)
	switch {
	case errors.As(err, &le):
		return NewErrorMessage(http.StatusUnprocessableEntity, "failed to read file: "+err.Error(),
			WithAdvice("upload a CSV, TXT, XLS or XLSX file"), WithError(err))
	case errors.Is(err, dataset.ErrNoNumericData):
		return NewErrorMessage(http.StatusUnprocessableEntity, "no numeric columns detected in the uploaded file",
			WithAdvice("please upload a file with numeric data"), WithError(err))
	case errors.As(err, &ve):
		return NewErrorMessage(http.StatusBadRequest, err.Error(),
			WithAdvice("reselect columns from: "+strings.Join(ve.Available, ", ")), WithError(err))
	case errors.Is(err, pipeline.ErrNoDataset):
		return NewErrorMessage(http.StatusConflict, "no dataset loaded",
			WithAdvice("upload a file first"), WithError(err))
	case errors.Is(err, pipeline.ErrNoRun):
		return NewErrorMessage(http.StatusConflict, "nothing rendered yet",
			WithAdvice("POST a selection to the run endpoint first"), WithError(err))
	case errors.Is(err, render.ErrNothingToDraw):
		return NewErrorMessage(http.StatusConflict, err.Error(), WithError(err))
	case errors.As(err, &re):
		return NewErrorMessage(http.StatusBadGateway, "image generation failed",
			WithAdvice(fmt.Sprintf("the image API answered with status %d", re.StatusCode)), WithError(err))
	case errors.Is(err, imagegen.ErrEmptyPrompt):
		return BadRequest("please enter a prompt", err)
	case errors.Is(err, imagegen.ErrMissingAPIKey):
		return NewErrorMessage(http.StatusServiceUnavailable, "image generation is not configured",
			WithAdvice("set image_api_key or use demo mode"), WithError(err))
	}
	return InternalServerError(err)
}

// errorHandler renders every error as an ErrorResponse.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	body := ErrorMessage{Reason: "unexpected error", Cause: err}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case ErrorMessage:
			body = m
		case string:
			body = ErrorMessage{Reason: m}
		default:
			body = ErrorMessage{Reason: http.StatusText(code)}
		}
	}
	if code >= http.StatusInternalServerError {
		c.Logger().Error(err)
	} else {
		c.Logger().Debug(err)
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Message: body})
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
