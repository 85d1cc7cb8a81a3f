package engine

import (
	"sort"
	"strings"
)

// GameMap is the parsed province graph for one map. Only "standard" is
// shipped; the lookup keeps the door open for variants.
type GameMap struct {
	Name string

	armyAdj  map[string][]string
	fleetAdj map[string][]string
	seas     map[string]bool
	centers  map[string]bool
	homes    map[string][]string
	starts   map[string][]string
	powers   []string
}

var standardMap = buildStandardMap()

// MapByName returns the map registered under name. The empty string
// selects the standard map; unknown names report false.
func MapByName(name string) (*GameMap, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standard":
		return standardMap, true
	}
	return nil, false
}

func buildStandardMap() *GameMap {
	m := &GameMap{
		Name:     "standard",
		armyAdj:  make(map[string][]string),
		fleetAdj: make(map[string][]string),
		seas:     make(map[string]bool),
		centers:  make(map[string]bool),
		homes:    make(map[string][]string),
		starts:   make(map[string][]string),
		powers:   powerOrder,
	}
	for loc, adj := range armyAdjacency {
		m.armyAdj[loc] = strings.Fields(adj)
	}
	for loc, adj := range fleetAdjacency {
		m.fleetAdj[loc] = strings.Fields(adj)
	}
	for _, sea := range strings.Fields(seaZones) {
		m.seas[sea] = true
	}
	for _, sc := range strings.Fields(supplyCenterList) {
		m.centers[sc] = true
	}
	for power, homes := range homeCenters {
		m.homes[power] = strings.Fields(homes)
	}
	for power, units := range startingUnits {
		m.starts[power] = strings.Split(units, ",")
	}
	return m
}

// Powers returns the playable power names in canonical order.
func (m *GameMap) Powers() []string {
	return m.powers
}

// Homes returns a power's home supply centers.
func (m *GameMap) Homes(power string) []string {
	return m.homes[power]
}

// StartingUnits returns a power's opening units.
func (m *GameMap) StartingUnits(power string) []string {
	return m.starts[power]
}

// IsSea reports whether a province is a sea zone.
func (m *GameMap) IsSea(loc string) bool {
	return m.seas[rootProvince(loc)]
}

// IsSupplyCenter reports whether a province is one of the 34 centers.
func (m *GameMap) IsSupplyCenter(loc string) bool {
	return m.centers[rootProvince(loc)]
}

// HasProvince reports whether loc names a province or coast on this map.
func (m *GameMap) HasProvince(loc string) bool {
	if _, ok := m.armyAdj[rootProvince(loc)]; ok {
		return true
	}
	_, ok := m.fleetAdj[loc]
	return ok
}

// ArmyNeighbors returns the provinces an army at loc can march to.
func (m *GameMap) ArmyNeighbors(loc string) []string {
	return m.armyAdj[rootProvince(loc)]
}

// FleetNeighbors returns the fleet locations reachable from loc in one move.
func (m *GameMap) FleetNeighbors(loc string) []string {
	return m.fleetAdj[loc]
}

// CanMove reports whether a unit of the given type can move loc → dest in
// one step (convoys excluded).
func (m *GameMap) CanMove(unitType, loc, dest string) bool {
	var neighbors []string
	if unitType == "A" {
		neighbors = m.ArmyNeighbors(loc)
	} else {
		neighbors = m.FleetNeighbors(loc)
	}
	for _, n := range neighbors {
		if n == dest {
			return true
		}
	}
	return false
}

// FleetLocations returns every fleet location within a province: the
// province itself, or its named coasts when it has them.
func (m *GameMap) FleetLocations(province string) []string {
	province = rootProvince(province)
	if _, ok := m.fleetAdj[province]; ok {
		return []string{province}
	}
	var locs []string
	for loc := range m.fleetAdj {
		if rootProvince(loc) == province {
			locs = append(locs, loc)
		}
	}
	sort.Strings(locs)
	return locs
}

// rootProvince strips a coast suffix: "SPA/NC" → "SPA".
func rootProvince(loc string) string {
	if i := strings.IndexByte(loc, '/'); i >= 0 {
		return loc[:i]
	}
	return loc
}
