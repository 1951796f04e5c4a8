package review

import (
	"errors"
	"strconv"
	"strings"
)

// errBadCommand covers anything the per-state grammars cannot parse. The
// session reports it inline and keeps its state.
var errBadCommand = errors.New("invalid command")

type browseKind int

const (
	browseSelect browseKind = iota
	browseExport
	browseSetDimension
	browseQuit
)

// browseCommand is a parsed command in the Browsing state.
//
// Grammar: "<int>" select group, "e <path>" export report,
// "s <int>" set max compare dimension, "q" quit.
type browseCommand struct {
	kind      browseKind
	index     int
	path      string
	dimension int
}

func parseBrowse(line string) (browseCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return browseCommand{}, errBadCommand
	}
	switch fields[0] {
	case "q":
		if len(fields) != 1 {
			return browseCommand{}, errBadCommand
		}
		return browseCommand{kind: browseQuit}, nil
	case "e":
		if len(fields) < 2 {
			return browseCommand{}, errBadCommand
		}
		// Export paths may contain spaces.
		path := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "e"))
		return browseCommand{kind: browseExport, path: path}, nil
	case "s":
		if len(fields) != 2 {
			return browseCommand{}, errBadCommand
		}
		dim, err := strconv.Atoi(fields[1])
		if err != nil {
			return browseCommand{}, errBadCommand
		}
		return browseCommand{kind: browseSetDimension, dimension: dim}, nil
	default:
		if len(fields) != 1 {
			return browseCommand{}, errBadCommand
		}
		index, err := strconv.Atoi(fields[0])
		if err != nil {
			return browseCommand{}, errBadCommand
		}
		return browseCommand{kind: browseSelect, index: index}, nil
	}
}

type inspectKind int

const (
	inspectDelete inspectKind = iota
	inspectDeleteAll
	inspectExclude
	inspectCompare
	inspectCompareAll
	inspectBack
)

// inspectCommand is a parsed command in the Inspecting state.
//
// Grammar: "d <int>" delete one, "d a" delete all but the first,
// "n <int>" mark as non-duplicate, "c <int> [<int> ...]" compare listed,
// "c a" compare all, "q" back to browsing.
type inspectCommand struct {
	kind    inspectKind
	index   int
	indices []int
}

func parseInspect(line string) (inspectCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return inspectCommand{}, errBadCommand
	}
	switch fields[0] {
	case "q":
		if len(fields) != 1 {
			return inspectCommand{}, errBadCommand
		}
		return inspectCommand{kind: inspectBack}, nil
	case "d":
		if len(fields) != 2 {
			return inspectCommand{}, errBadCommand
		}
		if fields[1] == "a" {
			return inspectCommand{kind: inspectDeleteAll}, nil
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil {
			return inspectCommand{}, errBadCommand
		}
		return inspectCommand{kind: inspectDelete, index: index}, nil
	case "n":
		if len(fields) != 2 {
			return inspectCommand{}, errBadCommand
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil {
			return inspectCommand{}, errBadCommand
		}
		return inspectCommand{kind: inspectExclude, index: index}, nil
	case "c":
		if len(fields) < 2 {
			return inspectCommand{}, errBadCommand
		}
		if len(fields) == 2 && fields[1] == "a" {
			return inspectCommand{kind: inspectCompareAll}, nil
		}
		indices := make([]int, 0, len(fields)-1)
		for _, field := range fields[1:] {
			index, err := strconv.Atoi(field)
			if err != nil {
				return inspectCommand{}, errBadCommand
			}
			indices = append(indices, index)
		}
		return inspectCommand{kind: inspectCompare, indices: indices}, nil
	default:
		return inspectCommand{}, errBadCommand
	}
}
