package server

import (
	"fmt"
	"time"
)

const modTimeLayout = "2006-01-02 15:04:05"

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// formatBytes renders size in the largest binary unit that keeps the value
// below 1024, capped at TB.
func formatBytes(size int64) string {
	value := float64(size)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}

	return fmt.Sprintf("%.2f %s", value, sizeUnits[unit])
}

func formatModTime(t time.Time) string {
	return t.Local().Format(modTimeLayout)
}
