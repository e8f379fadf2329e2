package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRunID returns a run identifier of the form run_<yyyymmdd_hhmmss>_<6 hex>.
func NewRunID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("run_%s_%s", time.Now().Format("20060102_150405"), hex[:6])
}
