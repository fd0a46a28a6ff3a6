package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"realestate-token-hub/internal/chain"
	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/governance"
	"realestate-token-hub/internal/i18n"
	"realestate-token-hub/internal/marketplace"
	"realestate-token-hub/internal/storage"
	"realestate-token-hub/internal/wallet"
)

// ErrorBody is the error of an ErrorEnvelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope is the JSON body of every failed request.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// Error is an API failure with a status code and a message key.
type Error struct {
	Status int
	Key    string
	Args   []any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Key, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Key)
}

func (e *Error) Unwrap() error { return e.Err }

var errRateLimited = &Error{Status: http.StatusTooManyRequests, Key: i18n.MsgRateLimited}

func invalidInput(what string) *Error {
	return &Error{Status: http.StatusBadRequest, Key: i18n.MsgInvalidInput, Args: []any{what}, Err: domain.ErrInvalidInput}
}

// classify maps err to its status and message.
func classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var mismatch *wallet.ChainMismatchError
	if errors.As(err, &mismatch) {
		return &Error{Status: http.StatusConflict, Key: i18n.MsgWrongChain, Args: []any{mismatch.Have, mismatch.Want}, Err: err}
	}

	e := &Error{Err: err}
	switch {
	case errors.Is(err, wallet.ErrNotConnected):
		e.Status, e.Key = http.StatusUnauthorized, i18n.MsgWalletNotConnected
	case errors.Is(err, wallet.ErrNoKey):
		e.Status, e.Key, e.Args = http.StatusBadRequest, i18n.MsgWalletConnectFailed, []any{err.Error()}
	case errors.Is(err, domain.ErrMissingFields):
		e.Status, e.Key = http.StatusBadRequest, i18n.MsgFieldsRequired
	case errors.Is(err, domain.ErrInvalidAddress):
		e.Status, e.Key, e.Args = http.StatusBadRequest, i18n.MsgInvalidAddress, []any{err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		e.Status, e.Key, e.Args = http.StatusBadRequest, i18n.MsgInvalidInput, []any{err.Error()}
	case errors.Is(err, marketplace.ErrAmountExceedsListing):
		e.Status, e.Key = http.StatusBadRequest, i18n.MsgAmountExceeds
	case errors.Is(err, marketplace.ErrOwnListing):
		e.Status, e.Key = http.StatusConflict, i18n.MsgOwnListing
	case errors.Is(err, marketplace.ErrNotSeller):
		e.Status, e.Key = http.StatusForbidden, i18n.MsgNotSeller
	case errors.Is(err, marketplace.ErrListingNotActive):
		e.Status, e.Key, e.Args = http.StatusNotFound, i18n.MsgNotFound, []any{"listing"}
	case errors.Is(err, governance.ErrNotManager):
		e.Status, e.Key = http.StatusForbidden, i18n.MsgNotManager
	case errors.Is(err, governance.ErrDAONotFound):
		e.Status, e.Key = http.StatusNotFound, i18n.MsgDAONotFound
	case errors.Is(err, governance.ErrIssueDAOUnavailable):
		e.Status, e.Key = http.StatusServiceUnavailable, i18n.MsgIssueDAOUnavailable
	case errors.Is(err, governance.ErrNotExecutable):
		e.Status, e.Key = http.StatusConflict, i18n.MsgNotExecutable
	case errors.Is(err, governance.ErrProposalNotFound):
		e.Status, e.Key, e.Args = http.StatusNotFound, i18n.MsgNotFound, []any{"proposal"}
	case errors.Is(err, storage.ErrNotFound):
		e.Status, e.Key, e.Args = http.StatusNotFound, i18n.MsgNotFound, []any{"resource"}
	case errors.Is(err, chain.ErrTxFailed):
		reason := chain.RevertReason(err)
		if reason == "" {
			reason = err.Error()
		}
		e.Status, e.Key, e.Args = http.StatusUnprocessableEntity, i18n.MsgTxFailed, []any{reason}
	default:
		if reason := chain.RevertReason(err); reason != "" {
			e.Status, e.Key, e.Args = http.StatusUnprocessableEntity, i18n.MsgTxFailed, []any{reason}
		} else {
			e.Status, e.Key = http.StatusInternalServerError, i18n.MsgInternal
		}
	}
	return e
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status  int
		message string
	)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		message = fmt.Sprint(he.Message)
	} else {
		e := classify(err)
		status = e.Status
		message = s.deps.Bundle.Sprintf(langOf(c, s.deps.DefaultLang), e.Key, e.Args...)
	}

	if status >= http.StatusInternalServerError {
		s.log.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	} else {
		s.log.Debugf("%s %s: %v", c.Request().Method, c.Path(), err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrorEnvelope{Error: ErrorBody{Code: strconv.Itoa(status), Message: message}})
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return classify(err).Status
}
