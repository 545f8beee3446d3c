// SPDX-License-Identifier: MIT

package sdk

import (
	"fmt"

	"github.com/google/uuid"
)

// newInstanceID generates a unique instance identifier. The uuid is
// combined with the app name and port so the id stays readable in the
// registry dashboard.
func newInstanceID(appName string, port int) string {
	return fmt.Sprintf("%s:%s:%d", uuid.New().String(), appName, port)
}
