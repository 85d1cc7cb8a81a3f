package engine

import (
	"fmt"
	"sort"
	"strings"
)

// OrderKind discriminates parsed orders.
type OrderKind int

const (
	OrderHold OrderKind = iota
	OrderMove
	OrderSupportHold
	OrderSupportMove
	OrderConvoy
	OrderRetreat
	OrderDisband
	OrderBuild
	OrderWaive
)

// Order is one parsed order string.
type Order struct {
	Kind     OrderKind
	UnitType string // "A" or "F"
	Loc      string
	Dest     string // move or retreat destination
	SubType  string // supported or convoyed unit type
	SubLoc   string
	SubDest  string // support-move or convoy destination
	Raw      string
}

// ParseOrder parses one order string per the transported grammar:
//
//	A/F LOC H|D|B
//	A/F LOC - LOC
//	A/F LOC S A/F LOC [- LOC]
//	F LOC C A LOC - LOC
//	A/F LOC R LOC
//	WAIVE
func ParseOrder(s string) (Order, error) {
	raw := strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	if raw == "" {
		return Order{}, fmt.Errorf("empty order")
	}
	if raw == "WAIVE" {
		return Order{Kind: OrderWaive, Raw: raw}, nil
	}

	f := strings.Fields(raw)
	if len(f) < 3 || (f[0] != "A" && f[0] != "F") {
		return Order{}, fmt.Errorf("malformed order %q", s)
	}
	o := Order{UnitType: f[0], Loc: f[1], Raw: raw}

	switch f[2] {
	case "H", "D", "B":
		if len(f) != 3 {
			return Order{}, fmt.Errorf("malformed order %q", s)
		}
		switch f[2] {
		case "H":
			o.Kind = OrderHold
		case "D":
			o.Kind = OrderDisband
		case "B":
			o.Kind = OrderBuild
		}
		return o, nil
	case "-":
		if len(f) != 4 {
			return Order{}, fmt.Errorf("malformed move %q", s)
		}
		o.Kind = OrderMove
		o.Dest = f[3]
		return o, nil
	case "R":
		if len(f) != 4 {
			return Order{}, fmt.Errorf("malformed retreat %q", s)
		}
		o.Kind = OrderRetreat
		o.Dest = f[3]
		return o, nil
	case "S":
		if len(f) != 5 && len(f) != 7 {
			return Order{}, fmt.Errorf("malformed support %q", s)
		}
		if f[3] != "A" && f[3] != "F" {
			return Order{}, fmt.Errorf("malformed support %q", s)
		}
		o.SubType = f[3]
		o.SubLoc = f[4]
		if len(f) == 5 {
			o.Kind = OrderSupportHold
			return o, nil
		}
		if f[5] != "-" {
			return Order{}, fmt.Errorf("malformed support %q", s)
		}
		o.Kind = OrderSupportMove
		o.SubDest = f[6]
		return o, nil
	case "C":
		if len(f) != 7 || f[3] != "A" || f[5] != "-" {
			return Order{}, fmt.Errorf("malformed convoy %q", s)
		}
		o.Kind = OrderConvoy
		o.SubType = f[3]
		o.SubLoc = f[4]
		o.SubDest = f[6]
		return o, nil
	default:
		return Order{}, fmt.Errorf("unknown order action %q in %q", f[2], s)
	}
}

func splitUnit(u string) (unitType, loc string) {
	f := strings.Fields(u)
	if len(f) != 2 {
		return "", ""
	}
	return f[0], f[1]
}

// unitAt finds the unit occupying a province (coast-insensitive).
func (g *Game) unitAt(province string) (power, unitType, loc string, ok bool) {
	root := rootProvince(province)
	for _, name := range g.powerNames {
		for _, u := range g.Powers[name].Units {
			ut, ul := splitUnit(u)
			if rootProvince(ul) == root {
				return name, ut, ul, true
			}
		}
	}
	return "", "", "", false
}

// OrderableLocations returns, per power, the locations that accept an
// order in the current phase.
func (g *Game) OrderableLocations() map[string][]string {
	out := make(map[string][]string)
	for _, name := range g.powerNames {
		p := g.Powers[name]
		var locs []string
		switch g.Phase.Type {
		case Movement, Talk:
			for _, u := range p.Units {
				_, loc := splitUnit(u)
				locs = append(locs, loc)
			}
		case Retreats:
			for u := range p.Retreats {
				_, loc := splitUnit(u)
				locs = append(locs, loc)
			}
		case Adjustments:
			delta := len(p.Centers) - len(p.Units)
			if delta > 0 {
				locs = append(locs, g.openHomeCenters(name)...)
			} else if delta < 0 {
				for _, u := range p.Units {
					_, loc := splitUnit(u)
					locs = append(locs, loc)
				}
			}
		}
		sort.Strings(locs)
		out[name] = locs
	}
	return out
}

// AllPossibleOrders enumerates every legal order keyed by origin location.
// Order validation is set membership against these lists.
func (g *Game) AllPossibleOrders() map[string][]string {
	out := make(map[string][]string)
	add := func(loc, order string) {
		out[loc] = append(out[loc], order)
	}

	switch g.Phase.Type {
	case Movement, Talk:
		for _, name := range g.powerNames {
			for _, u := range g.Powers[name].Units {
				ut, loc := splitUnit(u)
				for _, o := range g.possibleUnitOrders(ut, loc) {
					add(loc, o)
				}
			}
		}
	case Retreats:
		for _, name := range g.powerNames {
			for u, options := range g.Powers[name].Retreats {
				ut, loc := splitUnit(u)
				for _, dest := range options {
					add(loc, fmt.Sprintf("%s %s R %s", ut, loc, dest))
				}
				add(loc, fmt.Sprintf("%s %s D", ut, loc))
			}
		}
	case Adjustments:
		for _, name := range g.powerNames {
			p := g.Powers[name]
			delta := len(p.Centers) - len(p.Units)
			if delta > 0 {
				for _, home := range g.openHomeCenters(name) {
					add(home, fmt.Sprintf("A %s B", home))
					for _, fl := range g.gameMap.FleetLocations(home) {
						if len(g.gameMap.FleetNeighbors(fl)) > 0 {
							add(home, fmt.Sprintf("F %s B", fl))
						}
					}
					add(home, "WAIVE")
				}
			} else if delta < 0 {
				for _, u := range p.Units {
					ut, loc := splitUnit(u)
					add(loc, fmt.Sprintf("%s %s D", ut, loc))
				}
			}
		}
	}

	for loc := range out {
		sort.Strings(out[loc])
		out[loc] = dedupe(out[loc])
	}
	return out
}

// possibleUnitOrders enumerates movement-phase orders for one unit.
func (g *Game) possibleUnitOrders(unitType, loc string) []string {
	m := g.gameMap
	var orders []string
	orders = append(orders, fmt.Sprintf("%s %s H", unitType, loc))

	var neighbors []string
	if unitType == "A" {
		neighbors = m.ArmyNeighbors(loc)
	} else {
		neighbors = m.FleetNeighbors(loc)
	}
	for _, dest := range neighbors {
		orders = append(orders, fmt.Sprintf("%s %s - %s", unitType, loc, dest))
	}

	// Supports: hold support for any occupied reachable province, move
	// support for any other unit that can also reach it.
	for _, dest := range neighbors {
		if _, ot, ol, ok := g.unitAt(dest); ok && rootProvince(ol) != rootProvince(loc) {
			orders = append(orders, fmt.Sprintf("%s %s S %s %s", unitType, loc, ot, ol))
		}
		for _, name := range g.powerNames {
			for _, u := range g.Powers[name].Units {
				ot, ol := splitUnit(u)
				if rootProvince(ol) == rootProvince(loc) || rootProvince(ol) == rootProvince(dest) {
					continue
				}
				if g.canReach(ot, ol, rootProvince(dest)) {
					orders = append(orders, fmt.Sprintf("%s %s S %s %s - %s", unitType, loc, ot, ol, rootProvince(dest)))
				}
			}
		}
	}

	if unitType == "A" {
		orders = append(orders, g.convoyMoves(loc)...)
	} else if m.IsSea(loc) {
		orders = append(orders, g.convoyOrders(loc)...)
	}
	return orders
}

// canReach reports whether a unit could enter a province in one step,
// trying every coast for fleets.
func (g *Game) canReach(unitType, loc, province string) bool {
	if unitType == "A" {
		return g.gameMap.CanMove("A", loc, province)
	}
	for _, n := range g.gameMap.FleetNeighbors(loc) {
		if rootProvince(n) == province {
			return true
		}
	}
	return false
}

// convoyMoves enumerates single-hop convoyed moves for an army: across one
// adjacent sea zone holding a fleet, to any other coastal province on it.
func (g *Game) convoyMoves(loc string) []string {
	m := g.gameMap
	var orders []string
	for sea := range m.seas {
		if !coastTouchesSea(m, loc, sea) {
			continue
		}
		if _, _, _, occupied := g.unitAt(sea); !occupied {
			continue
		}
		for _, dest := range m.FleetNeighbors(sea) {
			root := rootProvince(dest)
			if m.IsSea(dest) || root == loc {
				continue
			}
			if _, hasArmyAdj := m.armyAdj[root]; !hasArmyAdj {
				continue
			}
			if m.CanMove("A", loc, root) {
				continue // plain march already listed
			}
			orders = append(orders, fmt.Sprintf("A %s - %s", loc, root))
		}
	}
	return dedupe(orders)
}

// convoyOrders enumerates convoy orders for a fleet in a sea zone.
func (g *Game) convoyOrders(sea string) []string {
	m := g.gameMap
	var orders []string
	for _, from := range m.FleetNeighbors(sea) {
		fromRoot := rootProvince(from)
		if m.IsSea(from) {
			continue
		}
		_, ut, _, ok := g.unitAt(fromRoot)
		if !ok || ut != "A" {
			continue
		}
		for _, to := range m.FleetNeighbors(sea) {
			toRoot := rootProvince(to)
			if m.IsSea(to) || toRoot == fromRoot {
				continue
			}
			if _, hasArmyAdj := m.armyAdj[toRoot]; !hasArmyAdj {
				continue
			}
			orders = append(orders, fmt.Sprintf("F %s C A %s - %s", sea, fromRoot, toRoot))
		}
	}
	return dedupe(orders)
}

// coastTouchesSea reports whether any fleet location of a coastal province
// borders the sea zone.
func coastTouchesSea(m *GameMap, province, sea string) bool {
	for _, fl := range m.FleetLocations(province) {
		for _, n := range m.FleetNeighbors(fl) {
			if n == sea {
				return true
			}
		}
	}
	return false
}

// openHomeCenters returns a power's owned, unoccupied home supply centers.
func (g *Game) openHomeCenters(power string) []string {
	p := g.Powers[power]
	var open []string
	for _, home := range p.Homes {
		owned := false
		for _, c := range p.Centers {
			if c == home {
				owned = true
				break
			}
		}
		if !owned {
			continue
		}
		if _, _, _, occupied := g.unitAt(home); occupied {
			continue
		}
		open = append(open, home)
	}
	return open
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
