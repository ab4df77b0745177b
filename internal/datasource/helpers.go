package datasource

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type httpStatusError struct {
	Message string
	Code    int
}

func (e httpStatusError) Error() string {
	return e.Message
}

type malformedDataError struct {
	innerError error
}

func (e malformedDataError) Error() string {
	return e.innerError.Error()
}

// Tests whether an HTTP error status represents a condition that might resolve on its own if
// we retry, or at least should not make us permanently stop sending requests.
func isHTTPErrorRecoverable(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		switch statusCode {
		case 400: // bad request
			return true
		case 408: // request timeout
			return true
		case 429: // too many requests
			return true
		default:
			return false // all other 4xx errors are unrecoverable
		}
	}
	return true
}

func httpErrorDescription(statusCode int) string {
	message := ""
	if statusCode == 401 || statusCode == 403 {
		message = " (invalid authorization)"
	}
	return fmt.Sprintf("HTTP error %d%s", statusCode, message)
}

// Logs an HTTP error or network error at the appropriate level and determines whether it is
// recoverable (as defined by isHTTPErrorRecoverable).
func checkIfErrorIsRecoverableAndLog(
	logger *zap.Logger,
	errorDesc, errorContext string,
	statusCode int,
	recoverableMessage string,
) bool {
	if statusCode > 0 && !isHTTPErrorRecoverable(statusCode) {
		logger.Error(fmt.Sprintf("Error %s (giving up permanently): %s", errorContext, errorDesc))
		return false
	}
	logger.Warn(fmt.Sprintf("Error %s (%s): %s", errorContext, recoverableMessage, errorDesc))
	return true
}

func checkForHTTPError(statusCode int, url string) error {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return httpStatusError{
			Message: fmt.Sprintf("Authorization failed when accessing URL: %s. Verify that your credentials are correct.",
				url),
			Code: statusCode,
		}
	}

	if statusCode == http.StatusNotFound {
		return httpStatusError{
			Message: fmt.Sprintf("Resource not found when accessing URL: %s. Verify that this resource exists.", url),
			Code:    statusCode,
		}
	}

	if statusCode/100 != 2 {
		return httpStatusError{
			Message: fmt.Sprintf("Unexpected response code: %d when accessing URL: %s", statusCode, url),
			Code:    statusCode,
		}
	}
	return nil
}
