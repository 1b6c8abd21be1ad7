// Package waypoint loads the ordered, immutable sequence of goal poses a follower works through.
package waypoint

import (
	"fmt"
	"os"

	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"go.viam.com/waypointfollower/spatialmath"
)

// Waypoint is a single target pose and its position in the sequence.
type Waypoint struct {
	Index int
	Pose  spatialmath.Pose
}

// Config describes where waypoints come from. Exactly one of Rows or File must be set.
type Config struct {
	// Rows are [x, y, z] or [x, y, z, heading] in meters and radians.
	Rows [][]float64 `json:"rows,omitempty" yaml:"rows,omitempty"`
	// File is a YAML or JSON document with a top level `waypoints` list of rows.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	// Dimension is the required row length, 3 or 4. When zero the first row decides.
	Dimension int `json:"dimension,omitempty" yaml:"dimension,omitempty"`
	// Offset is added to every row.
	Offset []float64 `json:"offset,omitempty" yaml:"offset,omitempty"`
	// Origin, [lat, lng] or [lat, lng, alt] in degrees and meters, makes rows geodetic:
	// [lat, lng, alt] or [lat, lng, alt, heading]. They are converted to meters east, north and up
	// of the origin before the offset is applied.
	Origin []float64 `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// Validate ensures all parts of the config are valid. It does not read File.
func (cfg *Config) Validate(path string) error {
	if len(cfg.Rows) == 0 && cfg.File == "" {
		return newConfigError("%s: one of rows or file is required", path)
	}
	if len(cfg.Rows) != 0 && cfg.File != "" {
		return newConfigError("%s: only one of rows or file may be set", path)
	}
	if cfg.Dimension != 0 && cfg.Dimension != 3 && cfg.Dimension != 4 {
		return newConfigError("%s.dimension: must be 3 or 4, got %d", path, cfg.Dimension)
	}
	if len(cfg.Origin) != 0 {
		if len(cfg.Origin) != 2 && len(cfg.Origin) != 3 {
			return newConfigError("%s.origin: must have 2 or 3 values, got %d", path, len(cfg.Origin))
		}
		if !spatialmath.ValidLatLng(cfg.Origin[0], cfg.Origin[1]) || !spatialmath.Finite(cfg.Origin...) {
			return newConfigError("%s.origin: %v is not a valid latitude and longitude", path, cfg.Origin)
		}
	}
	return nil
}

type waypointFile struct {
	Waypoints [][]float64 `yaml:"waypoints"`
}

// Store is the immutable ordered sequence of waypoints. It is never empty.
type Store struct {
	waypoints []Waypoint
}

// Load builds a Store from cfg, reading cfg.File if set.
func Load(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, newConfigError("missing waypoint configuration")
	}
	if err := cfg.Validate("waypoints"); err != nil {
		return nil, err
	}
	rows := cfg.Rows
	if cfg.File != "" {
		var err error
		if rows, err = ReadRows(cfg.File); err != nil {
			return nil, err
		}
	}
	if len(cfg.Origin) != 0 {
		var err error
		if rows, err = GeoRowsToLocal(rows, cfg.Origin); err != nil {
			return nil, err
		}
	}
	return NewStore(rows, cfg.Dimension, cfg.Offset)
}

// GeoRowsToLocal converts [lat, lng, alt(, heading)] rows into [east, north, up(, heading)]
// meters relative to origin ([lat, lng] or [lat, lng, alt]). Malformed rows are returned as they
// are for NewStore to reject.
func GeoRowsToLocal(rows [][]float64, origin []float64) ([][]float64, error) {
	if len(origin) < 2 || !spatialmath.ValidLatLng(origin[0], origin[1]) {
		return nil, newConfigError("invalid geodetic origin %v", origin)
	}
	originAlt := 0.0
	if len(origin) > 2 {
		originAlt = origin[2]
	}
	originPoint := geo.NewPoint(origin[0], origin[1])

	local := make([][]float64, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 || !spatialmath.Finite(row...) {
			local = append(local, row)
			continue
		}
		if !spatialmath.ValidLatLng(row[0], row[1]) {
			return nil, newConfigError("waypoint %d: %v is not a valid latitude and longitude", i, row[:2])
		}
		pt := spatialmath.GeoPointToPoint(geo.NewPoint(row[0], row[1]), originPoint)
		converted := append([]float64{pt.X, pt.Y, row[2] - originAlt}, row[3:]...)
		local = append(local, converted)
	}
	return local, nil
}

// ReadRows reads the `waypoints` rows of a YAML (or JSON) file.
func ReadRows(path string) ([][]float64, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapConfigError(err, "cannot read waypoint file %q", path)
	}
	var parsed waypointFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, wrapConfigError(err, "malformed waypoint file %q", path)
	}
	return parsed.Waypoints, nil
}

// NewStore validates rows and returns a Store. dim is the required row length (3 or 4), or zero
// to take it from the first row. offset, when non-empty, must have the same length as the rows.
func NewStore(rows [][]float64, dim int, offset []float64) (*Store, error) {
	if len(rows) == 0 {
		return nil, newConfigError("no waypoints configured")
	}
	if dim == 0 {
		dim = len(rows[0])
	}
	if dim != 3 && dim != 4 {
		return nil, newConfigError("waypoints must have 3 or 4 values, got %d", dim)
	}
	if len(offset) != 0 && len(offset) != dim {
		return nil, newConfigError("offset has %d values but waypoints have %d", len(offset), dim)
	}
	if !spatialmath.Finite(offset...) {
		return nil, newConfigError("offset contains a non-finite value")
	}

	waypoints := make([]Waypoint, 0, len(rows))
	for i, row := range rows {
		if len(row) != dim {
			return nil, newConfigError("waypoint %d has %d values, expected %d", i, len(row), dim)
		}
		if !spatialmath.Finite(row...) {
			return nil, newConfigError("waypoint %d contains a non-finite value", i)
		}
		shifted := make([]float64, dim)
		copy(shifted, row)
		for j := range offset {
			shifted[j] += offset[j]
		}
		pose, err := spatialmath.PoseFromSlice(shifted)
		if err != nil {
			return nil, wrapConfigError(err, "waypoint %d", i)
		}
		waypoints = append(waypoints, Waypoint{Index: i, Pose: pose})
	}
	return &Store{waypoints: waypoints}, nil
}

// Count returns the number of waypoints. It is always at least one.
func (s *Store) Count() int {
	return len(s.waypoints)
}

// Last returns the index of the final waypoint.
func (s *Store) Last() int {
	return len(s.waypoints) - 1
}

// Get returns the waypoint at index. An out of range index is a programming error and panics.
func (s *Store) Get(index int) Waypoint {
	if index < 0 || index >= len(s.waypoints) {
		panic(errors.Errorf("waypoint index %d out of range [0, %d)", index, len(s.waypoints)))
	}
	return s.waypoints[index]
}

// Waypoints returns a copy of the whole sequence.
func (s *Store) Waypoints() []Waypoint {
	out := make([]Waypoint, len(s.waypoints))
	copy(out, s.waypoints)
	return out
}

func (s *Store) String() string {
	return fmt.Sprintf("waypoint.Store(%d waypoints)", len(s.waypoints))
}
