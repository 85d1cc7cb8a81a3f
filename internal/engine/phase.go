package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Seasons.
const (
	Spring = "SPRING"
	Fall   = "FALL"
	Winter = "WINTER"
)

// Phase types.
const (
	Talk        = "T"
	Movement    = "M"
	Retreats    = "R"
	Adjustments = "A"
)

var typeNames = map[string]string{
	Talk:        "TALK",
	Movement:    "MOVEMENT",
	Retreats:    "RETREATS",
	Adjustments: "ADJUSTMENTS",
}

// Phase is one step of the game clock.
type Phase struct {
	Season string `json:"season"`
	Year   int    `json:"year"`
	Type   string `json:"type"`
}

// template is a (season, type) slot within a game year.
type template struct {
	season string
	ptype  string
}

// A full year cycles SPRING T,M,R then FALL T,M,R then WINTER A. The year
// rolls forward after WINTER A.
var yearTemplates = []template{
	{Spring, Talk},
	{Spring, Movement},
	{Spring, Retreats},
	{Fall, Talk},
	{Fall, Movement},
	{Fall, Retreats},
	{Winter, Adjustments},
}

// Abbr returns the short form, e.g. "S1901T".
func (p Phase) Abbr() string {
	return fmt.Sprintf("%c%04d%s", p.Season[0], p.Year, p.Type)
}

// String returns the long form, e.g. "SPRING 1901 TALK".
func (p Phase) String() string {
	return fmt.Sprintf("%s %d %s", p.Season, p.Year, typeNames[p.Type])
}

// ParsePhase accepts either form, case-insensitively: "S1901T" or
// "SPRING 1901 TALK".
func ParsePhase(s string) (Phase, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Phase{}, fmt.Errorf("empty phase")
	}

	if fields := strings.Fields(s); len(fields) == 3 {
		var season string
		switch fields[0] {
		case Spring, Fall, Winter:
			season = fields[0]
		default:
			return Phase{}, fmt.Errorf("unknown season %q", fields[0])
		}
		year, err := strconv.Atoi(fields[1])
		if err != nil {
			return Phase{}, fmt.Errorf("bad phase year %q", fields[1])
		}
		for ptype, name := range typeNames {
			if name == fields[2] {
				return validPhase(Phase{Season: season, Year: year, Type: ptype})
			}
		}
		return Phase{}, fmt.Errorf("unknown phase type %q", fields[2])
	}

	if len(s) != 6 {
		return Phase{}, fmt.Errorf("malformed phase %q", s)
	}
	var season string
	switch s[0] {
	case 'S':
		season = Spring
	case 'F':
		season = Fall
	case 'W':
		season = Winter
	default:
		return Phase{}, fmt.Errorf("unknown season letter %q", s[0])
	}
	year, err := strconv.Atoi(s[1:5])
	if err != nil {
		return Phase{}, fmt.Errorf("bad phase year in %q", s)
	}
	ptype := string(s[5])
	if _, ok := typeNames[ptype]; !ok {
		return Phase{}, fmt.Errorf("unknown phase type letter %q", s[5])
	}
	return validPhase(Phase{Season: season, Year: year, Type: ptype})
}

func validPhase(p Phase) (Phase, error) {
	if templateIndex(p) < 0 {
		return Phase{}, fmt.Errorf("phase %s %s does not occur", p.Season, typeNames[p.Type])
	}
	return p, nil
}

func templateIndex(p Phase) int {
	for i, t := range yearTemplates {
		if t.season == p.Season && t.ptype == p.Type {
			return i
		}
	}
	return -1
}

// Compare orders phases chronologically: -1 when a precedes b, 0 when
// equal, 1 when a follows b.
func Compare(a, b Phase) int {
	if a.Year != b.Year {
		if a.Year < b.Year {
			return -1
		}
		return 1
	}
	ai, bi := templateIndex(a), templateIndex(b)
	if ai < bi {
		return -1
	}
	if ai > bi {
		return 1
	}
	return 0
}

// Calendar is the active phase sequence for one game. With talk disabled
// the TALK slots are dropped entirely.
type Calendar struct {
	templates []template
}

// NewCalendar builds the calendar for a rules set.
func NewCalendar(noTalk bool) Calendar {
	if !noTalk {
		return Calendar{templates: yearTemplates}
	}
	var ts []template
	for _, t := range yearTemplates {
		if t.ptype != Talk {
			ts = append(ts, t)
		}
	}
	return Calendar{templates: ts}
}

// First returns the opening phase of a game starting in the given year.
func (c Calendar) First(year int) Phase {
	t := c.templates[0]
	return Phase{Season: t.season, Year: year, Type: t.ptype}
}

// Next returns the phase following p. If typeFilter is non-empty, it keeps
// advancing until a phase of that type is reached.
func (c Calendar) Next(p Phase, typeFilter string) Phase {
	cur := p
	for {
		cur = c.step(cur, 1)
		if typeFilter == "" || cur.Type == typeFilter {
			return cur
		}
	}
}

// Previous returns the phase preceding p, with the same optional filter.
func (c Calendar) Previous(p Phase, typeFilter string) Phase {
	cur := p
	for {
		cur = c.step(cur, -1)
		if typeFilter == "" || cur.Type == typeFilter {
			return cur
		}
	}
}

// step moves one slot in the canonical year sequence, skipping slots the
// calendar excludes. This keeps phases comparable across rule sets: a T
// phase fed to a no-talk calendar still steps to the correct neighbor.
func (c Calendar) step(p Phase, dir int) Phase {
	idx := templateIndex(p)
	year := p.Year
	for {
		idx += dir
		if idx >= len(yearTemplates) {
			idx = 0
			year++
		} else if idx < 0 {
			idx = len(yearTemplates) - 1
			year--
		}
		t := yearTemplates[idx]
		if c.includes(t) {
			return Phase{Season: t.season, Year: year, Type: t.ptype}
		}
	}
}

func (c Calendar) includes(t template) bool {
	for _, ct := range c.templates {
		if ct == t {
			return true
		}
	}
	return false
}
