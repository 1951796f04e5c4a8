// Package imaging wraps the OpenCV bindings behind the small surface the
// rest of the tool needs: pairwise scoring, native sizes, on-screen display
// and per-channel signatures.
package imaging

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/jhogan/imagedup/internal/dedup"
)

// Ops performs image operations through OpenCV. The zero value is ready to
// use; Ops holds no state and is safe to reuse across calls.
type Ops struct{}

// NewOps returns an OpenCV-backed implementation of the image collaborator.
func NewOps() *Ops {
	return &Ops{}
}

// Score decodes both images with channel data preserved and returns the
// fraction of bytes that are identical across all pixels and channels.
// A failed decode yields dedup.ErrIncomparable. Images whose dimensions or
// element types differ score 0 without a byte-level diff.
func (o *Ops) Score(pathA, pathB string) (float64, error) {
	matA := gocv.IMRead(pathA, gocv.IMReadUnchanged)
	defer matA.Close()
	matB := gocv.IMRead(pathB, gocv.IMReadUnchanged)
	defer matB.Close()

	if matA.Empty() || matB.Empty() {
		return 0, dedup.ErrIncomparable
	}
	if matA.Rows() != matB.Rows() || matA.Cols() != matB.Cols() {
		return 0, nil
	}
	if matA.Type() != matB.Type() {
		// AbsDiff requires matching element types; a png with an alpha
		// channel can never be byte-identical to a jpg without one.
		return 0, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(matA, matB, &diff)

	data := diff.ToBytes()
	if len(data) == 0 {
		return 0, nil
	}
	identical := 0
	for _, b := range data {
		if b == 0 {
			identical++
		}
	}
	return float64(identical) / float64(len(data)), nil
}

// Size returns the native width and height of the image at path.
func (o *Ops) Size(path string) (width, height int, err error) {
	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer mat.Close()
	if mat.Empty() {
		return 0, 0, fmt.Errorf("failed to decode '%s'", path)
	}
	return mat.Cols(), mat.Rows(), nil
}

// Show opens one window per image, each resized to width x height, and
// blocks until a key is pressed. All windows share the same target size so
// the images display at comparable scale.
func (o *Ops) Show(paths []string, width, height int) error {
	mats := make([]gocv.Mat, 0, len(paths))
	defer func() {
		for i := range mats {
			mats[i].Close()
		}
	}()
	for _, path := range paths {
		mat := gocv.IMRead(path, gocv.IMReadUnchanged)
		if mat.Empty() {
			mat.Close()
			return fmt.Errorf("failed to decode '%s'", path)
		}
		mats = append(mats, mat)
	}

	windows := make([]*gocv.Window, 0, len(mats))
	defer func() {
		for _, w := range windows {
			w.Close()
		}
	}()
	for i, mat := range mats {
		w := gocv.NewWindow(fmt.Sprintf("Compare %d [press any key to close]", i))
		windows = append(windows, w)
		w.SetWindowProperty(gocv.WindowPropertyAutosize, gocv.WindowNormal)
		w.ResizeWindow(width, height)
		w.IMShow(mat)
	}
	windows[0].WaitKey(0)
	return nil
}

// Signature returns the per-channel mean of the decoded image as a 4-element
// vector (missing channels stay 0). It is recorded as scan metadata only and
// plays no part in duplicate detection.
func (o *Ops) Signature(path string) ([]float32, error) {
	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to decode '%s'", path)
	}
	mean := mat.Mean()
	return []float32{
		float32(mean.Val1),
		float32(mean.Val2),
		float32(mean.Val3),
		float32(mean.Val4),
	}, nil
}
