// Package review drives the interactive loop over discovered duplicate
// groups: listing, drilling into a group, deleting, excluding, comparing
// on screen and exporting a report.
package review

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jhogan/imagedup/internal/dedup"
)

const (
	// DefaultMaxDimension is the initial bound on the larger side of a
	// compare window.
	DefaultMaxDimension = 1000

	// MinMaxDimension is the smallest value the bound can be set to.
	MinMaxDimension = 250
)

// Displayer renders images on screen for visual comparison.
type Displayer interface {
	// Size returns the native width and height of the image at path.
	Size(path string) (width, height int, err error)

	// Show displays every image at the given target size and blocks
	// until the user dismisses the windows.
	Show(paths []string, width, height int) error
}

// Config carries the session's collaborators. Zero fields get defaults:
// stdin/stdout, os.Remove and DefaultMaxDimension.
type Config struct {
	Display      Displayer
	Remove       func(path string) error
	Input        io.Reader
	Output       io.Writer
	MaxDimension int
}

// Session owns the group list for its lifetime and processes one command at
// a time: read, apply fully, redraw, repeat. The session is in the Browsing
// state when no group is selected and Inspecting otherwise.
type Session struct {
	groups   []*dedup.Group
	display  Displayer
	remove   func(string) error
	in       *bufio.Reader
	out      io.Writer
	maxDim   int
	selected int // index into groups, -1 while browsing
	status   string
}

// NewSession builds a session over the discovered groups.
func NewSession(groups []*dedup.Group, cfg Config) *Session {
	if cfg.Remove == nil {
		cfg.Remove = os.Remove
	}
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.MaxDimension == 0 {
		cfg.MaxDimension = DefaultMaxDimension
	}
	return &Session{
		groups:   groups,
		display:  cfg.Display,
		remove:   cfg.Remove,
		in:       bufio.NewReader(cfg.Input),
		out:      cfg.Output,
		maxDim:   cfg.MaxDimension,
		selected: -1,
	}
}

// Groups exposes the current group list, mainly for inspection after the
// session ends.
func (s *Session) Groups() []*dedup.Group {
	return s.groups
}

// Run processes commands until the user quits, input ends, or no groups are
// left to review.
func (s *Session) Run() error {
	for {
		if s.selected == -1 && len(s.groups) == 0 {
			fmt.Fprintln(s.out, "No duplicates left to review")
			return nil
		}
		s.render()

		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading command: %w", err)
		}

		if s.selected == -1 {
			if quit := s.handleBrowse(line); quit {
				return nil
			}
		} else {
			s.handleInspect(line)
		}
	}
}

func (s *Session) render() {
	fmt.Fprintln(s.out)
	if s.status != "" {
		fmt.Fprintln(s.out, s.status)
		s.status = ""
	}
	if s.selected == -1 {
		fmt.Fprintf(s.out, "Found %d %s of duplicates\n", len(s.groups), plural(len(s.groups), "group"))
		for i, group := range s.groups {
			fmt.Fprintf(s.out, "[%d] %d %s\n", i, len(group.Paths), plural(len(group.Paths), "item"))
		}
		fmt.Fprintln(s.out, "\nView group: <number>, Export report: e <path>, Set compare dimension (min 250): s <number>, Quit: q")
	} else {
		group := s.groups[s.selected]
		fmt.Fprintf(s.out, "Group %d (%d %s)\n", s.selected, len(group.Paths), plural(len(group.Paths), "member"))
		for i, path := range group.Paths {
			fmt.Fprintf(s.out, "[%d] %s\n", i, path)
		}
		fmt.Fprintln(s.out, "\nDelete item: d <number>, Delete all but first: d a, Not a duplicate: n <number>, Compare items: c <numbers>, Compare all: c a, Back: q")
	}
	fmt.Fprint(s.out, "Enter command: ")
}

// handleBrowse applies one Browsing-state command. It reports whether the
// session should terminate.
func (s *Session) handleBrowse(line string) bool {
	cmd, err := parseBrowse(line)
	if err != nil {
		s.status = "Invalid command"
		return false
	}
	switch cmd.kind {
	case browseQuit:
		return true
	case browseSelect:
		if cmd.index < 0 || cmd.index >= len(s.groups) {
			s.status = "Invalid selection"
			return false
		}
		s.selected = cmd.index
	case browseExport:
		if err := Export(cmd.path, s.groups); err != nil {
			if errors.Is(err, ErrReportExists) {
				s.status = "File already exists"
			} else {
				s.status = fmt.Sprintf("Failed to write report: %v", err)
			}
			return false
		}
		s.status = fmt.Sprintf("Report written to %s", cmd.path)
	case browseSetDimension:
		s.maxDim = cmd.dimension
		if s.maxDim < MinMaxDimension {
			s.maxDim = MinMaxDimension
		}
		s.status = fmt.Sprintf("Largest dimension set to %d", s.maxDim)
	}
	return false
}

// handleInspect applies one Inspecting-state command.
func (s *Session) handleInspect(line string) {
	cmd, err := parseInspect(line)
	if err != nil {
		s.status = "Invalid command"
		return
	}
	group := s.groups[s.selected]
	switch cmd.kind {
	case inspectBack:
		s.selected = -1
	case inspectDelete:
		if cmd.index < 0 || cmd.index >= len(group.Paths) {
			s.status = "Invalid selection"
			return
		}
		path := group.Paths[cmd.index]
		if err := s.remove(path); err != nil {
			// The file is still on disk, so it stays in the group.
			s.status = fmt.Sprintf("Failed to delete %s: %v", path, err)
			return
		}
		s.dropMember(cmd.index)
	case inspectDeleteAll:
		s.deleteAll(group)
	case inspectExclude:
		if cmd.index < 0 || cmd.index >= len(group.Paths) {
			s.status = "Invalid selection"
			return
		}
		s.dropMember(cmd.index)
	case inspectCompare:
		seen := make(map[int]bool, len(cmd.indices))
		paths := make([]string, 0, len(cmd.indices))
		for _, index := range cmd.indices {
			if index < 0 || index >= len(group.Paths) {
				s.status = "Invalid selection"
				return
			}
			if seen[index] {
				continue
			}
			seen[index] = true
			paths = append(paths, group.Paths[index])
		}
		s.compare(paths)
	case inspectCompareAll:
		s.compare(group.Paths)
	}
}

// dropMember removes one path from the selected group without touching the
// others. A group that would shrink to a single member is removed from the
// list entirely and the session returns to browsing.
func (s *Session) dropMember(index int) {
	group := s.groups[s.selected]
	group.Paths = append(group.Paths[:index], group.Paths[index+1:]...)
	if len(group.Paths) <= 1 {
		s.dropGroup()
	}
}

func (s *Session) dropGroup() {
	s.groups = append(s.groups[:s.selected], s.groups[s.selected+1:]...)
	s.selected = -1
}

// deleteAll deletes every file in the group except the first. Members whose
// delete fails stay in the group; the group is removed only once it is down
// to its first member.
func (s *Session) deleteAll(group *dedup.Group) {
	kept := []string{group.Paths[0]}
	var failed []string
	for _, path := range group.Paths[1:] {
		if err := s.remove(path); err != nil {
			kept = append(kept, path)
			failed = append(failed, fmt.Sprintf("%s (%v)", path, err))
		}
	}
	group.Paths = kept
	if len(failed) > 0 {
		s.status = fmt.Sprintf("Failed to delete: %s", strings.Join(failed, ", "))
	}
	if len(group.Paths) <= 1 {
		s.dropGroup()
	}
}

// compare shows the selected images side by side, all scaled so the larger
// dimension of the first image fits the configured bound.
func (s *Session) compare(paths []string) {
	width, height, err := s.display.Size(paths[0])
	if err != nil {
		s.reportDisplayError(err)
		return
	}
	targetWidth, targetHeight := fitToMax(width, height, s.maxDim)
	fmt.Fprintf(s.out, "Image size: %dx%d\n", width, height)
	fmt.Fprintf(s.out, "Resized size: %dx%d\n", targetWidth, targetHeight)
	if err := s.display.Show(paths, targetWidth, targetHeight); err != nil {
		s.reportDisplayError(err)
	}
}

// reportDisplayError tells the user the environment could not render and
// waits for an acknowledgement so the message is not lost in the redraw.
func (s *Session) reportDisplayError(err error) {
	fmt.Fprintf(s.out, "Display failed: %v\n", err)
	fmt.Fprint(s.out, "Press ENTER to continue")
	s.in.ReadString('\n')
}

// fitToMax scales width x height so the larger dimension equals max and the
// smaller one keeps the aspect ratio, floored to an integer.
func fitToMax(width, height, max int) (int, int) {
	switch {
	case height > width:
		return int(float64(max) * float64(width) / float64(height)), max
	case width > height:
		return max, int(float64(max) * float64(height) / float64(width))
	default:
		return max, max
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
