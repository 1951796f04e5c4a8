package review

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhogan/imagedup/internal/dedup"
)

type showCall struct {
	paths         []string
	width, height int
}

type fakeDisplay struct {
	width, height int
	sizeErr       error
	showErr       error
	shows         []showCall
}

func (f *fakeDisplay) Size(path string) (int, int, error) {
	return f.width, f.height, f.sizeErr
}

func (f *fakeDisplay) Show(paths []string, width, height int) error {
	f.shows = append(f.shows, showCall{paths: append([]string(nil), paths...), width: width, height: height})
	return f.showErr
}

type fakeRemover struct {
	removed []string
	fail    map[string]bool
}

func (f *fakeRemover) remove(path string) error {
	if f.fail[path] {
		return errors.New("permission denied")
	}
	f.removed = append(f.removed, path)
	return nil
}

func group(paths ...string) *dedup.Group {
	return &dedup.Group{Paths: append([]string(nil), paths...)}
}

// runScript runs a session over groups, feeding script as user input, and
// returns the session plus everything written to the terminal.
func runScript(t *testing.T, groups []*dedup.Group, script string, display *fakeDisplay, remover *fakeRemover) (*Session, string) {
	t.Helper()
	if display == nil {
		display = &fakeDisplay{width: 100, height: 100}
	}
	if remover == nil {
		remover = &fakeRemover{}
	}
	var out strings.Builder
	session := NewSession(groups, Config{
		Display: display,
		Remove:  remover.remove,
		Input:   strings.NewReader(script),
		Output:  &out,
	})
	require.NoError(t, session.Run())
	return session, out.String()
}

func TestSessionQuitFromBrowsing(t *testing.T) {
	session, out := runScript(t, []*dedup.Group{group("a", "b")}, "q\n", nil, nil)
	assert.Len(t, session.Groups(), 1)
	assert.Contains(t, out, "Found 1 group of duplicates")
}

func TestSessionInvalidSelectionKeepsBrowsing(t *testing.T) {
	_, out := runScript(t, []*dedup.Group{group("a", "b")}, "5\nq\n", nil, nil)
	assert.Contains(t, out, "Invalid selection")
}

func TestSessionDeleteRemovesFileAndMember(t *testing.T) {
	remover := &fakeRemover{}
	session, _ := runScript(t, []*dedup.Group{group("a", "b", "c")}, "0\nd 1\nq\nq\n", nil, remover)

	assert.Equal(t, []string{"b"}, remover.removed)
	require.Len(t, session.Groups(), 1)
	assert.Equal(t, []string{"a", "c"}, session.Groups()[0].Paths)
}

func TestSessionDeleteCollapsesPairAndTerminates(t *testing.T) {
	remover := &fakeRemover{}
	// No trailing quit: once the pair collapses, the empty group list
	// ends the session on its own.
	session, out := runScript(t, []*dedup.Group{group("a", "b")}, "0\nd 1\n", nil, remover)

	assert.Equal(t, []string{"b"}, remover.removed)
	assert.Empty(t, session.Groups())
	assert.Contains(t, out, "No duplicates left to review")
}

func TestSessionDeleteAllKeepsFirstMember(t *testing.T) {
	remover := &fakeRemover{}
	session, _ := runScript(t, []*dedup.Group{group("a", "b", "c")}, "0\nd a\n", nil, remover)

	assert.Equal(t, []string{"b", "c"}, remover.removed)
	assert.Empty(t, session.Groups())
}

func TestSessionDeleteFailureLeavesGroupUnchanged(t *testing.T) {
	remover := &fakeRemover{fail: map[string]bool{"b": true}}
	session, out := runScript(t, []*dedup.Group{group("a", "b", "c")}, "0\nd 1\nq\nq\n", nil, remover)

	assert.Empty(t, remover.removed)
	require.Len(t, session.Groups(), 1)
	assert.Equal(t, []string{"a", "b", "c"}, session.Groups()[0].Paths)
	assert.Contains(t, out, "Failed to delete b")
}

func TestSessionDeleteAllPartialFailure(t *testing.T) {
	remover := &fakeRemover{fail: map[string]bool{"b": true}}
	session, out := runScript(t, []*dedup.Group{group("a", "b", "c")}, "0\nd a\nq\nq\n", nil, remover)

	assert.Equal(t, []string{"c"}, remover.removed)
	require.Len(t, session.Groups(), 1)
	assert.Equal(t, []string{"a", "b"}, session.Groups()[0].Paths)
	assert.Contains(t, out, "Failed to delete")
}

func TestSessionExcludeDoesNotTouchDisk(t *testing.T) {
	remover := &fakeRemover{}
	session, _ := runScript(t, []*dedup.Group{group("a", "b", "c")}, "0\nn 2\nq\nq\n", nil, remover)

	assert.Empty(t, remover.removed)
	require.Len(t, session.Groups(), 1)
	assert.Equal(t, []string{"a", "b"}, session.Groups()[0].Paths)
}

func TestSessionExcludeCollapsesPair(t *testing.T) {
	remover := &fakeRemover{}
	session, _ := runScript(t, []*dedup.Group{group("a", "b")}, "0\nn 0\n", nil, remover)

	assert.Empty(t, remover.removed)
	assert.Empty(t, session.Groups())
}

func TestSessionDeleteOutOfRangeReportsInvalidSelection(t *testing.T) {
	remover := &fakeRemover{}
	session, out := runScript(t, []*dedup.Group{group("a", "b")}, "0\nd 7\nq\nq\n", nil, remover)

	assert.Empty(t, remover.removed)
	assert.Len(t, session.Groups(), 1)
	assert.Contains(t, out, "Invalid selection")
}

func TestSessionCompareScalesToMaxDimension(t *testing.T) {
	display := &fakeDisplay{width: 2000, height: 1000}
	_, _ = runScript(t, []*dedup.Group{group("a", "b", "c")}, "0\nc a\nq\nq\n", display, nil)

	require.Len(t, display.shows, 1)
	assert.Equal(t, []string{"a", "b", "c"}, display.shows[0].paths)
	assert.Equal(t, 1000, display.shows[0].width)
	assert.Equal(t, 500, display.shows[0].height)
}

func TestSessionCompareSelectedHonorsConfiguredDimension(t *testing.T) {
	display := &fakeDisplay{width: 1000, height: 2000}
	_, out := runScript(t, []*dedup.Group{group("a", "b", "c")}, "s 400\n0\nc 0 2\nq\nq\n", display, nil)

	assert.Contains(t, out, "Largest dimension set to 400")
	require.Len(t, display.shows, 1)
	assert.Equal(t, []string{"a", "c"}, display.shows[0].paths)
	assert.Equal(t, 200, display.shows[0].width)
	assert.Equal(t, 400, display.shows[0].height)
}

func TestSessionSetDimensionClampsToMinimum(t *testing.T) {
	_, out := runScript(t, []*dedup.Group{group("a", "b")}, "s 100\nq\n", nil, nil)
	assert.Contains(t, out, "Largest dimension set to 250")
}

func TestSessionCompareIgnoresRepeatedIndices(t *testing.T) {
	display := &fakeDisplay{width: 100, height: 100}
	_, _ = runScript(t, []*dedup.Group{group("a", "b")}, "0\nc 0 0 1\nq\nq\n", display, nil)

	require.Len(t, display.shows, 1)
	assert.Equal(t, []string{"a", "b"}, display.shows[0].paths, "each selected image opens once")
}

func TestSessionCompareInvalidIndexShowsNothing(t *testing.T) {
	display := &fakeDisplay{width: 100, height: 100}
	_, out := runScript(t, []*dedup.Group{group("a", "b")}, "0\nc 0 9\nq\nq\n", display, nil)

	assert.Empty(t, display.shows)
	assert.Contains(t, out, "Invalid selection")
}

func TestSessionDisplayFailureResumes(t *testing.T) {
	display := &fakeDisplay{width: 100, height: 100, showErr: errors.New("no display server")}
	session, out := runScript(t, []*dedup.Group{group("a", "b")}, "0\nc a\n\nq\nq\n", display, nil)

	assert.Contains(t, out, "Display failed")
	assert.Contains(t, out, "Press ENTER to continue")
	assert.Len(t, session.Groups(), 1, "failed display must not mutate groups")
}

func TestSessionMalformedCommandReportsAndContinues(t *testing.T) {
	_, out := runScript(t, []*dedup.Group{group("a", "b")}, "bogus nonsense\nq\n", nil, nil)
	assert.Contains(t, out, "Invalid command")
}

func TestSessionExportRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0644))

	_, out := runScript(t, []*dedup.Group{group("a", "b")}, fmt.Sprintf("e %s\nq\n", path), nil, nil)

	assert.Contains(t, out, "File already exists")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data), "no data may be written")
}

func TestSessionExportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	groups := []*dedup.Group{group("a", "b", "c"), group("d", "e")}
	_, out := runScript(t, groups, fmt.Sprintf("e %s\nq\n", path), nil, nil)
	assert.Contains(t, out, "Report written")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Re-parse the report and check every path sits under the header of
	// the group it belongs to in memory.
	parsed := map[int][]string{}
	current := -1
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	require.True(t, scanner.Scan())
	assert.Equal(t, ReportHeader, scanner.Text())
	for scanner.Scan() {
		line := scanner.Text()
		var ordinal int
		if _, err := fmt.Sscanf(line, "=== GROUP %d ===", &ordinal); err == nil {
			current = ordinal
			continue
		}
		require.NotEqual(t, -1, current)
		parsed[current] = append(parsed[current], line)
	}
	require.Len(t, parsed, len(groups))
	for i, g := range groups {
		assert.Equal(t, g.Paths, parsed[i])
	}
}

func TestSessionTerminatesWhenNothingToReview(t *testing.T) {
	session, out := runScript(t, nil, "", nil, nil)
	assert.Empty(t, session.Groups())
	assert.Contains(t, out, "No duplicates left to review")
}

func TestFitToMax(t *testing.T) {
	tests := []struct {
		width, height, max    int
		wantWidth, wantHeight int
	}{
		{2000, 1000, 1000, 1000, 500},
		{1000, 2000, 500, 250, 500},
		{300, 300, 250, 250, 250},
		{3, 2, 100, 100, 66}, // smaller side floors
	}
	for _, tt := range tests {
		gotWidth, gotHeight := fitToMax(tt.width, tt.height, tt.max)
		assert.Equal(t, tt.wantWidth, gotWidth, "%dx%d max %d", tt.width, tt.height, tt.max)
		assert.Equal(t, tt.wantHeight, gotHeight, "%dx%d max %d", tt.width, tt.height, tt.max)
	}
}
