package ebay

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/giantswarm/oauth2-ebay/internal/payload"
	"github.com/giantswarm/oauth2-ebay/internal/util"
)

var (
	// ErrMalformedTokenResponse is returned when a token endpoint response
	// lacks an access token.
	ErrMalformedTokenResponse = errors.New("malformed token response")

	// ErrProviderHTTP is returned when eBay answers with a non-2xx status or
	// a Trading API failure envelope.
	ErrProviderHTTP = errors.New("provider request failed")
)

// maxErrorBodyLen bounds how much of a response body is quoted in an error message.
const maxErrorBodyLen = 256

// MalformedTokenResponseError carries the raw fields and body of a token
// response that could not be turned into a Token. Values is empty when the
// body was not an object.
type MalformedTokenResponseError struct {
	Values map[string]any
	Body   string
}

func (e *MalformedTokenResponseError) Error() string {
	msg := fmt.Sprintf("%s: required field %q is missing", ErrMalformedTokenResponse, "access_token")
	if len(e.Values) == 0 && e.Body != "" {
		msg += ": " + util.SafeTruncate(e.Body, maxErrorBodyLen)
	}
	return msg
}

// Is reports whether target is ErrMalformedTokenResponse.
func (e *MalformedTokenResponseError) Is(target error) bool {
	return target == ErrMalformedTokenResponse
}

// ProviderError describes a failed eBay call. For token endpoint failures
// Code and Description hold eBay's "error" and "error_description" fields;
// for Trading API failures they hold the first error's code and long message.
type ProviderError struct {
	StatusCode  int
	Reason      string
	Body        string
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: status %d", ErrProviderHTTP, e.StatusCode)
	if e.Reason != "" {
		b.WriteString(" " + e.Reason)
	}
	switch {
	case e.Code != "" && e.Description != "":
		fmt.Fprintf(&b, ": %s: %s", e.Code, e.Description)
	case e.Code != "":
		b.WriteString(": " + e.Code)
	case e.Description != "":
		b.WriteString(": " + e.Description)
	case e.Body != "":
		b.WriteString(": " + util.SafeTruncate(e.Body, maxErrorBodyLen))
	}
	return b.String()
}

// Is reports whether target is ErrProviderHTTP.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderHTTP
}

// isSuccessStatus reports whether the first digit of status is 2.
func isSuccessStatus(status int) bool {
	return status/100 == 2
}

// reasonPhrase extracts the reason phrase from an http.Response status line
// such as "400 Bad Request", falling back to the standard text for code.
func reasonPhrase(status string, code int) string {
	if reason, ok := strings.CutPrefix(status, strconv.Itoa(code)+" "); ok && reason != "" {
		return reason
	}
	return http.StatusText(code)
}

// newProviderError builds a ProviderError from a failed response, exposing
// eBay's JSON error fields when the body carries them.
func newProviderError(resp *http.Response, body []byte) *ProviderError {
	pe := &ProviderError{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp.Status, resp.StatusCode),
		Body:       string(body),
	}

	if v, err := payload.Normalize(body, resp.Header.Get("Content-Type")); err == nil {
		pe.Code, _ = payload.LookupString(v, "error")
		pe.Description, _ = payload.LookupString(v, "error_description")
	}
	return pe
}

// tradingFailure inspects a normalized Trading API response and returns an
// error when its Ack reports a failure. Warnings are not failures.
func tradingFailure(root payload.Value, statusCode int, body []byte) error {
	ack, _ := payload.LookupString(root, "Ack")
	if ack != "Failure" && ack != "PartialFailure" {
		return nil
	}

	pe := &ProviderError{
		StatusCode: statusCode,
		Reason:     "Trading API " + ack,
		Body:       string(body),
	}

	errs, ok := payload.Lookup(root, "Errors")
	if !ok {
		return pe
	}
	// A single Errors element is a map; several collapse to the last one.
	if errs.Kind == payload.KindList && len(errs.Items) > 0 {
		errs = errs.Items[len(errs.Items)-1]
	}
	pe.Code, _ = payload.LookupString(errs, "ErrorCode")
	pe.Description, _ = payload.LookupString(errs, "LongMessage")
	if pe.Description == "" {
		pe.Description, _ = payload.LookupString(errs, "ShortMessage")
	}
	return pe
}
