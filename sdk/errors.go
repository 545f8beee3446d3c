// SPDX-License-Identifier: MIT

package sdk

import (
	"fmt"
	"net/http"
)

// APIError is returned whenever the registry answers with a status in
// [400,600). The response body is preserved so callers can inspect
// whatever the server had to say. Transport-level failures (connection
// refused, cancelled context) are returned as-is, never wrapped into
// an APIError.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("eureka: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("eureka: server returned %d: %s", e.StatusCode, e.Body)
}

// NotFound reports whether the error is a 404. A 404 on renew means
// the lease already expired server-side and the instance needs to
// re-register.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
