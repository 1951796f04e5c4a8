package review

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/jhogan/imagedup/internal/dedup"
)

// ReportHeader is the first line of every exported report.
const ReportHeader = "=== Image Duplicate Detector ==="

// ErrReportExists is returned when the export target already exists; the
// session never overwrites a file.
var ErrReportExists = errors.New("report file already exists")

// Export writes a plain-text report of the current groups: the header line,
// then one "=== GROUP <n> ===" delimiter per group followed by its paths in
// order.
func Export(path string, groups []*dedup.Group) error {
	if _, err := os.Stat(path); err == nil {
		return ErrReportExists
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report '%s': %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintln(w, ReportHeader)
	for i, group := range groups {
		fmt.Fprintf(w, "=== GROUP %d ===\n", i)
		for _, p := range group.Paths {
			fmt.Fprintln(w, p)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write report '%s': %w", path, err)
	}
	return nil
}
