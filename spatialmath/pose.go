// Package spatialmath defines the poses the waypoint follower reasons about and the geometry used
// to decide arrival.
package spatialmath

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Pose is a position in a local cartesian frame, in meters, with an optional heading.
type Pose struct {
	Point r3.Vector
	// Heading is in radians and only meaningful when HasHeading is set.
	Heading    float64
	HasHeading bool
}

// NewPose returns a pose without heading.
func NewPose(pt r3.Vector) Pose {
	return Pose{Point: pt}
}

// NewPoseWithHeading returns a pose with a heading in radians, normalized into (-pi, pi].
func NewPoseWithHeading(pt r3.Vector, heading float64) Pose {
	return Pose{Point: pt, Heading: NormalizeAngle(heading), HasHeading: true}
}

// PoseFromSlice builds a pose from [x, y, z] or [x, y, z, heading].
func PoseFromSlice(values []float64) (Pose, error) {
	switch len(values) {
	case 3:
		return NewPose(r3.Vector{X: values[0], Y: values[1], Z: values[2]}), nil
	case 4:
		return NewPoseWithHeading(r3.Vector{X: values[0], Y: values[1], Z: values[2]}, values[3]), nil
	default:
		return Pose{}, fmt.Errorf("pose needs 3 or 4 values, got %d", len(values))
	}
}

// Slice is the inverse of PoseFromSlice.
func (p Pose) Slice() []float64 {
	if p.HasHeading {
		return []float64{p.Point.X, p.Point.Y, p.Point.Z, p.Heading}
	}
	return []float64{p.Point.X, p.Point.Y, p.Point.Z}
}

// Distance is the euclidean distance between the positions of two poses.
func (p Pose) Distance(other Pose) float64 {
	return p.Point.Sub(other.Point).Norm()
}

// IsFinite reports whether every coordinate of p is finite.
func (p Pose) IsFinite() bool {
	return Finite(p.Slice()...)
}

// Within reports whether p has arrived at target: the position is at most `distTol` away and,
// when headingTol is positive and both poses carry a heading, the heading error is at most
// headingTol. A pose with a NaN coordinate is never within tolerance.
func (p Pose) Within(target Pose, distTol, headingTol float64) bool {
	if !(p.Distance(target) <= distTol) {
		return false
	}
	if headingTol <= 0 || !p.HasHeading || !target.HasHeading {
		return true
	}
	return math.Abs(HeadingError(p.Heading, target.Heading)) <= headingTol
}

func (p Pose) String() string {
	if p.HasHeading {
		return fmt.Sprintf("(%.3f, %.3f, %.3f | %.3f rad)", p.Point.X, p.Point.Y, p.Point.Z, p.Heading)
	}
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.Point.X, p.Point.Y, p.Point.Z)
}

type poseJSON struct {
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Z       float64  `json:"z"`
	Heading *float64 `json:"heading,omitempty"`
}

// MarshalJSON encodes the pose as {"x", "y", "z", "heading"}, leaving out a missing heading.
func (p Pose) MarshalJSON() ([]byte, error) {
	out := poseJSON{X: p.Point.X, Y: p.Point.Y, Z: p.Point.Z}
	if p.HasHeading {
		heading := p.Heading
		out.Heading = &heading
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a pose written by MarshalJSON.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var in poseJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	pt := r3.Vector{X: in.X, Y: in.Y, Z: in.Z}
	if in.Heading == nil {
		*p = NewPose(pt)
	} else {
		*p = NewPoseWithHeading(pt, *in.Heading)
	}
	return nil
}
