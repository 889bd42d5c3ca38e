package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSessionID returns an optimization session id of the form
// opt-YYYYMMDD-HHMMSS-xxxxxxxx
func NewSessionID() string {
	suffix, _, _ := strings.Cut(uuid.NewString(), "-")
	return "opt-" + time.Now().Format("20060102-150405") + "-" + suffix
}
