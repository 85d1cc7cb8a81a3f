package engine

import "sort"

// Unit result annotations recorded in the result history. An empty list
// means the order succeeded.
const (
	ResultBounce    = "bounce"
	ResultCut       = "cut"
	ResultVoid      = "void"
	ResultDislodged = "dislodged"
	ResultDisband   = "disband"
)

type moveUnit struct {
	power string
	utype string
	loc   string

	order    Order
	hasOrder bool

	moveValid bool
	dest      string // destination root province
	destLoc   string // exact destination location (may name a coast)

	supportValid bool
	supportCut   bool

	strength     int // attack strength for movers
	holdStrength int

	succeeded bool
	resolved  bool
	dislodged bool
	attacker  string // origin root of the dislodging unit
	results   []string
}

// resolveMovement adjudicates the current movement phase and applies the
// outcome to unit positions and retreat sets. Returns results per unit.
func (g *Game) resolveMovement() map[string][]string {
	units, byLoc := g.collectUnits()
	g.assignOrders(units, byLoc)
	g.validateMoves(units, byLoc)
	g.validateSupports(units, byLoc)
	g.cutSupports(units, byLoc)
	g.computeStrengths(units, byLoc)
	contested := g.resolveMoves(units, byLoc)
	return g.applyMovement(units, byLoc, contested)
}

func (g *Game) collectUnits() ([]*moveUnit, map[string]*moveUnit) {
	var units []*moveUnit
	byLoc := make(map[string]*moveUnit)
	for _, name := range g.powerNames {
		for _, u := range g.Powers[name].Units {
			ut, loc := splitUnit(u)
			mu := &moveUnit{power: name, utype: ut, loc: loc}
			units = append(units, mu)
			byLoc[rootProvince(loc)] = mu
		}
	}
	return units, byLoc
}

func (g *Game) assignOrders(units []*moveUnit, byLoc map[string]*moveUnit) {
	for _, name := range g.powerNames {
		for _, raw := range g.Powers[name].Orders {
			o, err := ParseOrder(raw)
			if err != nil || o.Kind == OrderWaive {
				continue
			}
			mu, ok := byLoc[rootProvince(o.Loc)]
			if !ok || mu.power != name {
				continue
			}
			mu.order = o
			mu.hasOrder = true
		}
	}
}

func (g *Game) validateMoves(units []*moveUnit, byLoc map[string]*moveUnit) {
	for _, mu := range units {
		if !mu.hasOrder || mu.order.Kind != OrderMove {
			continue
		}
		dest := mu.order.Dest
		if g.gameMap.CanMove(mu.utype, mu.loc, dest) ||
			(mu.utype == "F" && g.fleetCanReachCoast(mu.loc, dest)) {
			mu.moveValid = true
			mu.dest = rootProvince(dest)
			mu.destLoc = dest
			continue
		}
		if mu.utype == "A" && g.convoyExists(mu.loc, rootProvince(dest), byLoc) {
			mu.moveValid = true
			mu.dest = rootProvince(dest)
			mu.destLoc = rootProvince(dest)
			continue
		}
		mu.results = append(mu.results, ResultVoid)
	}
}

// fleetCanReachCoast accepts a fleet move written without a coast when
// exactly one coast of the destination is reachable.
func (g *Game) fleetCanReachCoast(loc, dest string) bool {
	if dest != rootProvince(dest) {
		return false
	}
	n := 0
	for _, adj := range g.gameMap.FleetNeighbors(loc) {
		if rootProvince(adj) == dest {
			n++
		}
	}
	return n == 1
}

// convoyExists checks for a fleet in a sea zone bordering both shores
// whose order convoys exactly this move.
func (g *Game) convoyExists(from, to string, byLoc map[string]*moveUnit) bool {
	for sea := range g.gameMap.seas {
		fleet, ok := byLoc[sea]
		if !ok || fleet.utype != "F" || !fleet.hasOrder || fleet.order.Kind != OrderConvoy {
			continue
		}
		if rootProvince(fleet.order.SubLoc) != from || rootProvince(fleet.order.SubDest) != to {
			continue
		}
		if coastTouchesSea(g.gameMap, from, sea) && coastTouchesSea(g.gameMap, to, sea) {
			return true
		}
	}
	return false
}

func (g *Game) validateSupports(units []*moveUnit, byLoc map[string]*moveUnit) {
	for _, mu := range units {
		if !mu.hasOrder {
			continue
		}
		switch mu.order.Kind {
		case OrderSupportMove:
			target := rootProvince(mu.order.SubDest)
			mover, ok := byLoc[rootProvince(mu.order.SubLoc)]
			if ok && mover.moveValid && mover.dest == target && g.canReach(mu.utype, mu.loc, target) {
				mu.supportValid = true
			} else {
				mu.results = append(mu.results, ResultVoid)
			}
		case OrderSupportHold:
			held, ok := byLoc[rootProvince(mu.order.SubLoc)]
			if ok && !held.moveValid && g.canReach(mu.utype, mu.loc, rootProvince(mu.order.SubLoc)) {
				mu.supportValid = true
			} else {
				mu.results = append(mu.results, ResultVoid)
			}
		}
	}
}

func (g *Game) cutSupports(units []*moveUnit, byLoc map[string]*moveUnit) {
	for _, mu := range units {
		if !mu.supportValid {
			continue
		}
		directedAt := rootProvince(mu.order.SubDest)
		if mu.order.Kind == OrderSupportHold {
			directedAt = ""
		}
		for _, attacker := range units {
			if !attacker.moveValid || attacker.power == mu.power {
				continue
			}
			if attacker.dest != rootProvince(mu.loc) {
				continue
			}
			// Support is not cut by an attack coming from the very
			// province the support is directed against.
			if directedAt != "" && rootProvince(attacker.loc) == directedAt {
				continue
			}
			mu.supportCut = true
			mu.results = append(mu.results, ResultCut)
			break
		}
	}
}

func (g *Game) computeStrengths(units []*moveUnit, byLoc map[string]*moveUnit) {
	for _, mu := range units {
		mu.strength = 1
		mu.holdStrength = 1
	}
	for _, sup := range units {
		if !sup.supportValid || sup.supportCut {
			continue
		}
		target, ok := byLoc[rootProvince(sup.order.SubLoc)]
		if !ok {
			continue
		}
		if sup.order.Kind == OrderSupportMove {
			if target.moveValid && target.dest == rootProvince(sup.order.SubDest) {
				target.strength++
			}
		} else {
			target.holdStrength++
		}
	}
}

// resolveMoves decides which movers enter their destinations. Returns the
// set of provinces where a standoff occurred (no unit may retreat there).
func (g *Game) resolveMoves(units []*moveUnit, byLoc map[string]*moveUnit) map[string]bool {
	contested := make(map[string]bool)

	// Per destination, only the unique strongest mover stays a candidate.
	candidates := make(map[string]*moveUnit)
	for _, mu := range units {
		if !mu.moveValid {
			continue
		}
		cur, ok := candidates[mu.dest]
		if !ok {
			candidates[mu.dest] = mu
			continue
		}
		if mu.strength > cur.strength {
			cur.results = append(cur.results, ResultBounce)
			cur.resolved = true
			candidates[mu.dest] = mu
		} else if mu.strength < cur.strength {
			mu.results = append(mu.results, ResultBounce)
			mu.resolved = true
		} else {
			contested[mu.dest] = true
			mu.results = append(mu.results, ResultBounce)
			mu.resolved = true
			if !cur.resolved {
				cur.results = append(cur.results, ResultBounce)
				cur.resolved = true
			}
		}
	}

	pending := func() []*moveUnit {
		var out []*moveUnit
		for _, mu := range candidates {
			if !mu.resolved {
				out = append(out, mu)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].loc < out[j].loc })
		return out
	}

	for pass := 0; pass <= len(units); pass++ {
		progress := false
		for _, mu := range pending() {
			occ, occupied := byLoc[mu.dest]
			if !occupied || occ == mu {
				mu.succeeded = true
				mu.resolved = true
				progress = true
				continue
			}
			if occ.resolved && occ.succeeded {
				// Occupant vacated.
				mu.succeeded = true
				mu.resolved = true
				progress = true
				continue
			}
			if occ.moveValid && occ.dest == rootProvince(mu.loc) {
				// Head to head: strictly stronger side dislodges.
				if mu.strength > occ.strength && occ.power != mu.power {
					mu.succeeded = true
					mu.resolved = true
					occ.resolved = true
					occ.dislodged = true
					occ.attacker = rootProvince(mu.loc)
					occ.results = append(occ.results, ResultBounce, ResultDislodged)
				} else {
					mu.resolved = true
					mu.results = append(mu.results, ResultBounce)
					if mu.strength >= occ.strength && !occ.resolved {
						occ.resolved = true
						occ.results = append(occ.results, ResultBounce)
					}
				}
				progress = true
				continue
			}
			if occ.moveValid && !occ.resolved {
				// Occupant may still vacate; wait for it.
				continue
			}
			// Occupant is staying (holding, supporting, or bounced).
			if mu.strength > occ.holdStrength && occ.power != mu.power {
				mu.succeeded = true
				mu.resolved = true
				occ.dislodged = true
				occ.attacker = rootProvince(mu.loc)
				occ.results = append(occ.results, ResultDislodged)
			} else {
				mu.resolved = true
				mu.results = append(mu.results, ResultBounce)
			}
			progress = true
		}
		if !progress {
			break
		}
	}

	// Whatever is left forms a rotation (A→B→C→A): all moves succeed.
	for _, mu := range pending() {
		mu.succeeded = true
		mu.resolved = true
	}
	return contested
}

func (g *Game) applyMovement(units []*moveUnit, byLoc map[string]*moveUnit, contested map[string]bool) map[string][]string {
	results := make(map[string][]string)
	occupied := make(map[string]bool)
	for _, mu := range units {
		if mu.succeeded {
			occupied[mu.dest] = true
		} else if !mu.dislodged {
			occupied[rootProvince(mu.loc)] = true
		}
	}

	for _, name := range g.powerNames {
		p := g.Powers[name]
		var kept []string
		for _, u := range p.Units {
			_, loc := splitUnit(u)
			mu := byLoc[rootProvince(loc)]
			key := u
			if mu.results == nil {
				results[key] = []string{}
			} else {
				results[key] = mu.results
			}
			switch {
			case mu.dislodged:
				options := g.retreatOptions(mu, occupied, contested)
				p.Retreats[u] = options
			case mu.succeeded:
				kept = append(kept, mu.utype+" "+mu.destLoc)
			default:
				kept = append(kept, u)
			}
		}
		p.Units = kept
		p.Orders = nil
		p.OrderIsSet = false
	}
	return results
}

func (g *Game) retreatOptions(mu *moveUnit, occupied, contested map[string]bool) []string {
	var neighbors []string
	if mu.utype == "A" {
		neighbors = g.gameMap.ArmyNeighbors(mu.loc)
	} else {
		neighbors = g.gameMap.FleetNeighbors(mu.loc)
	}
	var options []string
	for _, n := range neighbors {
		root := rootProvince(n)
		if root == mu.attacker || occupied[root] || contested[root] {
			continue
		}
		options = append(options, n)
	}
	sort.Strings(options)
	return options
}

// resolveRetreats applies retreat/disband orders for dislodged units. Two
// units retreating to the same province both disband.
func (g *Game) resolveRetreats() map[string][]string {
	results := make(map[string][]string)

	type retreat struct {
		power string
		unit  string
		dest  string
	}
	var retreats []retreat

	for _, name := range g.powerNames {
		p := g.Powers[name]
		ordered := make(map[string]Order)
		for _, raw := range p.Orders {
			o, err := ParseOrder(raw)
			if err != nil {
				continue
			}
			ordered[rootProvince(o.Loc)] = o
		}
		for unit := range p.Retreats {
			ut, loc := splitUnit(unit)
			o, ok := ordered[rootProvince(loc)]
			if !ok || o.Kind == OrderDisband || o.UnitType != ut {
				results[unit] = []string{ResultDisband}
				continue
			}
			if o.Kind != OrderRetreat || !containsLoc(p.Retreats[unit], o.Dest) {
				results[unit] = []string{ResultVoid, ResultDisband}
				continue
			}
			retreats = append(retreats, retreat{power: name, unit: unit, dest: o.Dest})
		}
	}

	destCount := make(map[string]int)
	for _, r := range retreats {
		destCount[rootProvince(r.dest)]++
	}
	for _, r := range retreats {
		ut, _ := splitUnit(r.unit)
		if destCount[rootProvince(r.dest)] > 1 {
			results[r.unit] = []string{ResultBounce, ResultDisband}
			continue
		}
		results[r.unit] = []string{}
		p := g.Powers[r.power]
		p.Units = append(p.Units, ut+" "+r.dest)
	}

	for _, name := range g.powerNames {
		p := g.Powers[name]
		p.Retreats = make(map[string][]string)
		p.Orders = nil
		p.OrderIsSet = false
		sort.Strings(p.Units)
	}
	return results
}

// resolveAdjustments applies builds and disbands. Shortfalls in required
// disbands fall back to removing units in location order (civil disorder).
func (g *Game) resolveAdjustments() map[string][]string {
	results := make(map[string][]string)

	for _, name := range g.powerNames {
		p := g.Powers[name]
		delta := len(p.Centers) - len(p.Units)

		switch {
		case delta > 0:
			open := make(map[string]bool)
			for _, home := range g.openHomeCenters(name) {
				open[home] = true
			}
			builds := 0
			for _, raw := range p.Orders {
				o, err := ParseOrder(raw)
				if err != nil || o.Kind == OrderWaive {
					continue
				}
				if o.Kind != OrderBuild || builds >= delta || !open[rootProvince(o.Loc)] {
					continue
				}
				if o.UnitType == "F" && len(g.gameMap.FleetNeighbors(o.Loc)) == 0 {
					results[o.Raw] = []string{ResultVoid}
					continue
				}
				open[rootProvince(o.Loc)] = false
				p.Units = append(p.Units, o.UnitType+" "+o.Loc)
				results[o.UnitType+" "+o.Loc] = []string{}
				builds++
			}
		case delta < 0:
			need := -delta
			removed := make(map[string]bool)
			for _, raw := range p.Orders {
				if need == 0 {
					break
				}
				o, err := ParseOrder(raw)
				if err != nil || o.Kind != OrderDisband {
					continue
				}
				unit := o.UnitType + " " + o.Loc
				if removed[unit] || !containsLoc(p.Units, o.Loc) {
					continue
				}
				removed[unit] = true
				results[unit] = []string{ResultDisband}
				need--
			}
			// Civil disorder: disband remaining excess in location order.
			if need > 0 {
				sorted := append([]string(nil), p.Units...)
				sort.Strings(sorted)
				for _, unit := range sorted {
					if need == 0 {
						break
					}
					if removed[unit] {
						continue
					}
					removed[unit] = true
					results[unit] = []string{ResultDisband}
					need--
				}
			}
			var kept []string
			for _, unit := range p.Units {
				if !removed[unit] {
					kept = append(kept, unit)
				}
			}
			p.Units = kept
		}

		p.Orders = nil
		p.OrderIsSet = false
		sort.Strings(p.Units)
	}
	return results
}

func containsLoc(list []string, loc string) bool {
	root := rootProvince(loc)
	for _, item := range list {
		candidate := item
		if _, l := splitUnit(item); l != "" {
			candidate = l
		}
		if rootProvince(candidate) == root {
			return true
		}
	}
	return false
}

// updateCenters transfers ownership of every supply center occupied by a
// foreign unit. Called when the fall season closes, before adjustments.
func (g *Game) updateCenters() {
	occupant := make(map[string]string) // center root → power
	for _, name := range g.powerNames {
		for _, u := range g.Powers[name].Units {
			_, loc := splitUnit(u)
			root := rootProvince(loc)
			if g.gameMap.IsSupplyCenter(root) {
				occupant[root] = name
			}
		}
	}

	owned := make(map[string]string)
	for _, name := range g.powerNames {
		for _, c := range g.Powers[name].Centers {
			owned[c] = name
		}
	}
	for center, power := range occupant {
		owned[center] = power
	}

	for _, name := range g.powerNames {
		var centers []string
		for center, power := range owned {
			if power == name {
				centers = append(centers, center)
			}
		}
		sort.Strings(centers)
		g.Powers[name].Centers = centers
	}
}

// buildInfluence refreshes the influence list: provinces a power touches
// through units or owned centers.
func (p *Power) buildInfluence() {
	seen := make(map[string]struct{})
	var inf []string
	for _, u := range p.Units {
		_, loc := splitUnit(u)
		root := rootProvince(loc)
		if _, dup := seen[root]; !dup {
			seen[root] = struct{}{}
			inf = append(inf, root)
		}
	}
	for _, c := range p.Centers {
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			inf = append(inf, c)
		}
	}
	sort.Strings(inf)
	p.Influence = inf
}

func (g *Game) hasRetreats() bool {
	for _, name := range g.powerNames {
		if len(g.Powers[name].Retreats) > 0 {
			return true
		}
	}
	return false
}

func (g *Game) hasAdjustments() bool {
	for _, name := range g.powerNames {
		p := g.Powers[name]
		if len(p.Centers) != len(p.Units) {
			return true
		}
	}
	return false
}
