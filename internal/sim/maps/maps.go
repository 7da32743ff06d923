package maps

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rgsim/internal/sim/board"
)

// Map is the arena layout: board size plus immutable obstacle cells.
type Map struct {
	Size      int         `yaml:"size" json:"size"`
	Obstacles []board.Loc `yaml:"-" json:"-"`
}

// file is the on-disk form. Obstacles are listed under the "obstacle" key
// as [x, y] pairs; JSON documents parse the same way.
type file struct {
	Size     int      `yaml:"size"`
	Obstacle [][2]int `yaml:"obstacle"`
}

// Load reads a YAML or JSON map. A missing size falls back to defaultSize.
func Load(path string, defaultSize int) (Map, error) {
	var m Map
	if strings.TrimSpace(path) == "" {
		return Default(defaultSize), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	return Parse(raw, defaultSize)
}

func Parse(raw []byte, defaultSize int) (Map, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Map{}, fmt.Errorf("map: %w", err)
	}
	m := Map{Size: f.Size}
	if m.Size == 0 {
		m.Size = defaultSize
	}
	seen := map[board.Loc]struct{}{}
	for _, o := range f.Obstacle {
		loc := board.Loc{X: o[0], Y: o[1]}
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}
		m.Obstacles = append(m.Obstacles, loc)
	}
	board.SortLocs(m.Obstacles)
	if err := m.Validate(); err != nil {
		return Map{}, fmt.Errorf("map: %w", err)
	}
	return m, nil
}

func (m Map) Validate() error {
	if m.Size <= 0 {
		return fmt.Errorf("size must be positive, got %d", m.Size)
	}
	for _, o := range m.Obstacles {
		if o.X < 0 || o.Y < 0 || o.X >= m.Size || o.Y >= m.Size {
			return fmt.Errorf("obstacle %s outside %dx%d board", o, m.Size, m.Size)
		}
	}
	return nil
}

// Board builds a fresh board for the map.
func (m Map) Board() (*board.Board, error) {
	return board.New(m.Size, m.Obstacles)
}

// Default is the round arena of the robot game: every cell farther than
// size/2 from the centre is an obstacle.
func Default(size int) Map {
	if size <= 0 {
		size = 19
	}
	m := Map{Size: size}
	c := float64(size-1) / 2
	r := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy > r*r {
				m.Obstacles = append(m.Obstacles, board.Loc{X: x, Y: y})
			}
		}
	}
	return m
}

// Marshal renders the map in its file form.
func (m Map) Marshal() ([]byte, error) {
	f := file{Size: m.Size, Obstacle: make([][2]int, 0, len(m.Obstacles))}
	for _, o := range m.Obstacles {
		f.Obstacle = append(f.Obstacle, [2]int{o.X, o.Y})
	}
	return yaml.Marshal(f)
}
