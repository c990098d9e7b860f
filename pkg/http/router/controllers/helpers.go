package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/lintang-b-s/waymatcher/pkg/engine"
	"github.com/lintang-b-s/waymatcher/pkg/util"
	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

type envelope map[string]any

// requestValidator. validator with english messages, safe for concurrent use.
type requestValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func newRequestValidator() *requestValidator {
	validate := validator.New()
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)
	return &requestValidator{validate: validate, trans: trans}
}

// Struct. nil or an ErrBadParamInput coded error listing every violation.
func (rv *requestValidator) Struct(s any) error {
	err := rv.validate.Struct(s)
	if err == nil {
		return nil
	}
	vv := translateError(err, rv.trans)
	vvString := make([]string, 0, len(vv))
	for _, v := range vv {
		vvString = append(vvString, v.Error())
	}
	return util.WrapErrorf(err, util.ErrBadParamInput, "validation error: %s", strings.Join(vvString, "; "))
}

func translateError(err error, trans ut.Translator) (errs []error) {
	if err == nil {
		return nil
	}
	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return []error{err}
	}
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return util.WrapErrorf(err, util.ErrBadParamInput, "invalid request body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return util.WrapErrorf(err, util.ErrBadParamInput, "request body must contain a single JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	for key, value := range headers {
		w.Header()[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// StatusCode. http status of a coded error.
func StatusCode(err error) int {
	switch util.ErrorCode(err) {
	case util.ErrNotFound:
		return http.StatusNotFound
	case util.ErrBadParamInput:
		return http.StatusBadRequest
	case util.ErrConflict:
		return http.StatusConflict
	case util.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// newErrorBody. code is the task failure kind when there is one, the status text otherwise.
// internal errors never leak their message.
func newErrorBody(err error) *errorBody {
	status := StatusCode(err)
	code := http.StatusText(status)
	var f *engine.TaskFailure
	if errors.As(err, &f) {
		code = string(f.Kind)
	}
	msg := util.MessageInternalServerError
	if status != http.StatusInternalServerError {
		var ierr *util.Error
		if errors.As(err, &ierr) {
			msg = ierr.Message()
		} else {
			msg = err.Error()
		}
	}
	return &errorBody{Code: code, Message: msg}
}

func (api *matchingAPI) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		api.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		api.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status),
			zap.Error(err))
	}
	if werr := writeJSON(w, status, errorResponse{Error: *newErrorBody(err)}, nil); werr != nil {
		api.log.Error("writing error response", zap.Error(werr))
	}
}

func (api *matchingAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.errorResponse(w, r, util.WrapErrorf(err, util.ErrInternalServerError, "%v", err))
}

func trackError(err error) error {
	return util.WrapErrorf(err, util.ErrBadParamInput, "invalid track: %v", err)
}

func batchIndexError(i int, err error) error {
	var ierr *util.Error
	if errors.As(err, &ierr) {
		return util.WrapErrorf(err, ierr.Code(), "tracks[%d]: %s", i, ierr.Message())
	}
	return fmt.Errorf("tracks[%d]: %w", i, err)
}
