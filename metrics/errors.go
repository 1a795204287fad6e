package metrics

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/vsem-svoim/basecap/api/types"

	"golang.org/x/net/http2"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

var (
	// errHTTP2ClientConnectionLost is used to track unexported http2 error.
	errHTTP2ClientConnectionLost = errors.New("http2: client connection lost")

	// errTLSHandshakeTimeout is used to track unexported tlsHandshakeTimeoutError from net/http.
	errTLSHandshakeTimeout = errors.New("net/http: TLS handshake timeout")
)

// HTTPStatusError carries a non-2xx HTTP status from a plain endpoint check.
type HTTPStatusError struct {
	Code int
}

// Error implements error interface.
func (e HTTPStatusError) Error() string {
	return http.StatusText(e.Code)
}

// codeFromHTTP parses error to get http code.
func codeFromHTTP(err error) int {
	if err == nil {
		return 0
	}

	var statusErr HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}

	switch {
	case apierrors.IsBadRequest(err):
		return http.StatusBadRequest // 400
	case apierrors.IsUnauthorized(err):
		return http.StatusUnauthorized // 401
	case apierrors.IsForbidden(err):
		return http.StatusForbidden // 403
	case apierrors.IsNotFound(err):
		return http.StatusNotFound // 404
	case apierrors.IsMethodNotSupported(err):
		return http.StatusMethodNotAllowed // 405
	case apierrors.IsNotAcceptable(err):
		return http.StatusNotAcceptable // 406
	case apierrors.IsAlreadyExists(err):
		return http.StatusConflict // 409
	case apierrors.IsGone(err):
		return http.StatusGone // 410
	case apierrors.IsRequestEntityTooLargeError(err):
		return http.StatusRequestEntityTooLarge // 413
	case apierrors.IsUnsupportedMediaType(err):
		return http.StatusUnsupportedMediaType // 415
	case apierrors.IsInvalid(err):
		return http.StatusUnprocessableEntity // 422
	case apierrors.IsTooManyRequests(err):
		return http.StatusTooManyRequests // 429
	case apierrors.IsInternalError(err):
		return http.StatusInternalServerError // 500
	case apierrors.IsServiceUnavailable(err):
		return http.StatusServiceUnavailable // 503
	case apierrors.IsTimeout(err):
		return http.StatusGatewayTimeout // 504
	default:
		if status, ok := err.(apierrors.APIStatus); ok || errors.As(err, &status) {
			return int(status.Status().Code)
		}
		return 0
	}
}

// isHTTP2Error returns true if it's related to http2 error.
func isHTTP2Error(err error) bool {
	if err == nil {
		return false
	}

	if connErr, ok := err.(http2.ConnectionError); ok || errors.As(err, &connErr) {
		return true
	}
	if streamErr, ok := err.(http2.StreamError); ok || errors.As(err, &streamErr) {
		return true
	}
	if goAwayErr, ok := err.(http2.GoAwayError); ok || errors.As(err, &goAwayErr) {
		return true
	}
	return strings.Contains(err.Error(), errHTTP2ClientConnectionLost.Error())
}

// updateHTTP2ErrorStats updates the stats for a classified http2 error.
func updateHTTP2ErrorStats(stats *types.HTTP2ErrorStats, err error) {
	if streamErr, ok := err.(http2.StreamError); ok || errors.As(err, &streamErr) {
		stats.StreamErrors[streamErr.Code.String()]++
		return
	}

	if connErr, ok := err.(http2.ConnectionError); ok || errors.As(err, &connErr) {
		stats.ConnectionErrors[(http2.ErrCode(connErr)).String()]++
		return
	}

	if goAwayErr, ok := err.(http2.GoAwayError); ok || errors.As(err, &goAwayErr) {
		key := "http2: server sent GOAWAY; ErrCode=" + goAwayErr.ErrCode.String()
		stats.ConnectionErrors[key]++
		return
	}

	stats.ConnectionErrors[errHTTP2ClientConnectionLost.Error()]++
}

// isNetRelatedError returns true if it's related to connection error.
func isNetRelatedError(err error) bool {
	if err == nil {
		return false
	}

	return isTimeoutError(err) ||
		isConnectionRefused(err) ||
		isConnectionResetByPeer(err) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		strings.Contains(err.Error(), errTLSHandshakeTimeout.Error())
}

// updateNetErrors updates counts for a classified net error.
func updateNetErrors(netErrors map[string]int32, err error) {
	switch {
	case isTimeoutError(err):
		netErrors[err.Error()]++
	case isConnectionRefused(err):
		netErrors[syscall.ECONNREFUSED.Error()]++
	case isConnectionResetByPeer(err):
		netErrors[syscall.ECONNRESET.Error()]++
	case errors.Is(err, io.ErrUnexpectedEOF):
		netErrors[io.ErrUnexpectedEOF.Error()]++
	case errors.Is(err, io.EOF):
		netErrors[io.EOF.Error()]++
	case strings.Contains(err.Error(), errTLSHandshakeTimeout.Error()):
		netErrors[errTLSHandshakeTimeout.Error()]++
	}
}

// isTimeoutError returns true if it's related to golang standard library
// net's timeout error.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	terr, ok := err.(net.Error)
	if !ok {
		if !errors.As(err, &terr) {
			return false
		}
	}
	return terr.Timeout()
}

// isConnectionRefused returns true if the error is connection refused.
func isConnectionRefused(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ECONNREFUSED
	}
	return false
}

// isConnectionResetByPeer returns true if the error is "connection reset by peer".
func isConnectionResetByPeer(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ECONNRESET
	}
	return false
}
