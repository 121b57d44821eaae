package layer

import "fmt"

// TargetKind tells how target values are read.
type TargetKind int

const (
	// TargetClasses holds one class id per position.
	TargetClasses TargetKind = iota
	// TargetOneHot holds one integral one-hot row per position.
	TargetOneHot
	// TargetDense holds one float row per position.
	TargetDense
)

// String returns the kind name.
func (k TargetKind) String() string {
	switch k {
	case TargetClasses:
		return "classes"
	case TargetOneHot:
		return "one-hot"
	case TargetDense:
		return "dense"
	}
	return fmt.Sprintf("TargetKind(%d)", int(k))
}

// Target holds the reference values of a loss layer for one batch.
//
// Positions are flattened time-major: position p = t·batch + b, matching the
// layout of a (T, B) index.
type Target struct {
	Kind    TargetKind
	Classes []int32   // TargetClasses: one id per position
	Values  []float32 // TargetOneHot, TargetDense: Width values per position
	Width   int
}

// ClassTarget returns a class-id target.
func ClassTarget(ids []int32) *Target {
	return &Target{Kind: TargetClasses, Classes: ids}
}

// OneHotTarget returns a one-hot target with rows of the given width.
func OneHotTarget(rows []float32, width int) *Target {
	return &Target{Kind: TargetOneHot, Values: rows, Width: width}
}

// DenseTarget returns a float target with rows of the given width.
func DenseTarget(rows []float32, width int) *Target {
	return &Target{Kind: TargetDense, Values: rows, Width: width}
}

// Positions returns the number of positions the target covers.
func (t *Target) Positions() int {
	if t.Kind == TargetClasses {
		return len(t.Classes)
	}
	if t.Width == 0 {
		return 0
	}
	return len(t.Values) / t.Width
}

// Class returns the class of position p: the id, or the arg-max of the row.
func (t *Target) Class(p int) int32 {
	if t.Kind == TargetClasses {
		return t.Classes[p]
	}
	row := t.Values[p*t.Width : (p+1)*t.Width]
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return int32(best)
}

func (t *Target) validate(positions, classes int) error {
	if t.Positions() != positions {
		return fmt.Errorf("%w: target covers %d positions, batch has %d", ErrWidthMismatch, t.Positions(), positions)
	}
	if t.Kind != TargetClasses {
		if t.Width != classes {
			return fmt.Errorf("%w: target width %d, layer width %d", ErrWidthMismatch, t.Width, classes)
		}
		if len(t.Values) != positions*t.Width {
			return fmt.Errorf("%w: target has %d values, expected %d", ErrWidthMismatch, len(t.Values), positions*t.Width)
		}
	}
	return nil
}
