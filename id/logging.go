package id

import (
	"encoding/hex"

	"github.com/sirupsen/logrus"
)

// previewBytes formats the first few bytes of sensitive material for log
// lines, never the full value.
func previewBytes(b []byte) string {
	n := len(b)
	if n > 4 {
		n = 4
	}
	return hex.EncodeToString(b[:n]) + "..."
}

func logFields(op string) logrus.Fields {
	return logrus.Fields{"package": "id", "operation": op}
}
