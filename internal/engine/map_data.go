package engine

// Standard map data. Province codes are uppercase three-letter
// abbreviations; split coasts are suffixed fleet locations (SPA/NC,
// SPA/SC, STP/NC, STP/SC, BUL/EC, BUL/SC).

// armyAdjacency lists, per land province, the provinces an army can march to.
var armyAdjacency = map[string]string{
	"ALB": "GRE SER TRI",
	"ANK": "ARM CON SMY",
	"APU": "NAP ROM VEN",
	"ARM": "ANK SEV SMY SYR",
	"BEL": "BUR HOL PIC RUH",
	"BER": "KIE MUN PRU SIL",
	"BOH": "GAL MUN SIL TYR VIE",
	"BRE": "GAS PAR PIC",
	"BUD": "GAL RUM SER TRI VIE",
	"BUL": "CON GRE RUM SER",
	"BUR": "BEL GAS MAR MUN PAR PIC RUH",
	"CLY": "EDI LVP",
	"CON": "ANK BUL SMY",
	"DEN": "KIE SWE",
	"EDI": "CLY LVP YOR",
	"FIN": "NWY STP SWE",
	"GAL": "BOH BUD RUM SIL UKR VIE WAR",
	"GAS": "BRE BUR MAR PAR SPA",
	"GRE": "ALB BUL SER",
	"HOL": "BEL KIE RUH",
	"KIE": "BER DEN HOL MUN RUH",
	"LON": "WAL YOR",
	"LVN": "MOS PRU STP WAR",
	"LVP": "CLY EDI WAL YOR",
	"MAR": "BUR GAS PIE SPA",
	"MOS": "LVN SEV STP UKR WAR",
	"MUN": "BER BOH BUR KIE RUH SIL TYR",
	"NAF": "TUN",
	"NAP": "APU ROM",
	"NWY": "FIN STP SWE",
	"PAR": "BRE BUR GAS PIC",
	"PIC": "BEL BRE BUR PAR",
	"PIE": "MAR TUS TYR VEN",
	"POR": "SPA",
	"PRU": "BER LVN SIL WAR",
	"ROM": "APU NAP TUS VEN",
	"RUH": "BEL BUR HOL KIE MUN",
	"RUM": "BUD BUL GAL SER SEV UKR",
	"SER": "ALB BUD BUL GRE RUM TRI",
	"SEV": "ARM MOS RUM UKR",
	"SIL": "BER BOH GAL MUN PRU WAR",
	"SMY": "ANK ARM CON SYR",
	"SPA": "GAS MAR POR",
	"STP": "FIN LVN MOS NWY",
	"SWE": "DEN FIN NWY",
	"SYR": "ARM SMY",
	"TRI": "ALB BUD SER TYR VEN VIE",
	"TUN": "NAF",
	"TUS": "PIE ROM VEN",
	"TYR": "BOH MUN PIE TRI VEN VIE",
	"UKR": "GAL MOS RUM SEV WAR",
	"VEN": "APU PIE ROM TRI TUS TYR",
	"VIE": "BOH BUD GAL TRI TYR",
	"WAL": "LON LVP YOR",
	"WAR": "GAL LVN MOS PRU SIL UKR",
	"YOR": "EDI LON LVP WAL",
}

// fleetAdjacency lists, per fleet location (sea zone, coastal province,
// or named coast), the fleet locations reachable in one move.
var fleetAdjacency = map[string]string{
	"ADR":    "ALB APU ION TRI VEN",
	"AEG":    "BUL/SC CON EAS GRE ION SMY",
	"ALB":    "ADR GRE ION TRI",
	"ANK":    "ARM BLA CON",
	"APU":    "ADR ION NAP VEN",
	"ARM":    "ANK BLA SEV",
	"BAL":    "BER BOT DEN KIE LVN PRU SWE",
	"BAR":    "NWG NWY STP/NC",
	"BEL":    "ENG HOL NTH PIC",
	"BER":    "BAL KIE PRU",
	"BLA":    "ANK ARM BUL/EC CON RUM SEV",
	"BOT":    "BAL FIN LVN STP/SC SWE",
	"BRE":    "ENG GAS MAO PIC",
	"BUL/EC": "BLA CON RUM",
	"BUL/SC": "AEG CON GRE",
	"CLY":    "EDI LVP NAO NWG",
	"CON":    "AEG ANK BLA BUL/EC BUL/SC SMY",
	"DEN":    "BAL HEL KIE NTH SKA SWE",
	"EAS":    "AEG ION SMY SYR",
	"EDI":    "CLY NTH NWG YOR",
	"ENG":    "BEL BRE IRI LON MAO NTH PIC WAL",
	"FIN":    "BOT STP/SC SWE",
	"GAS":    "BRE MAO SPA/NC",
	"GRE":    "AEG ALB BUL/SC ION",
	"HEL":    "DEN HOL KIE NTH",
	"HOL":    "BEL HEL KIE NTH",
	"ION":    "ADR AEG ALB APU EAS GRE NAP TUN TYS",
	"IRI":    "ENG LVP MAO NAO WAL",
	"KIE":    "BAL BER DEN HEL HOL",
	"LON":    "ENG NTH WAL YOR",
	"LVN":    "BAL BOT PRU STP/SC",
	"LVP":    "CLY IRI NAO WAL",
	"LYO":    "MAR PIE SPA/SC TUS TYS WES",
	"MAO":    "BRE ENG GAS IRI NAF NAO POR SPA/NC SPA/SC WES",
	"MAR":    "LYO PIE SPA/SC",
	"NAF":    "MAO TUN WES",
	"NAO":    "CLY IRI LVP MAO NWG",
	"NAP":    "APU ION ROM TYS",
	"NTH":    "BEL DEN EDI ENG HEL HOL LON NWG NWY SKA YOR",
	"NWG":    "BAR CLY EDI NAO NTH NWY",
	"NWY":    "BAR NTH NWG SKA STP/NC SWE",
	"PIC":    "BEL BRE ENG",
	"PIE":    "LYO MAR TUS",
	"POR":    "MAO SPA/NC SPA/SC",
	"PRU":    "BAL BER LVN",
	"ROM":    "NAP TUS TYS",
	"RUM":    "BLA BUL/EC SEV",
	"SEV":    "ARM BLA RUM",
	"SKA":    "DEN NTH NWY SWE",
	"SMY":    "AEG CON EAS SYR",
	"SPA/NC": "GAS MAO POR",
	"SPA/SC": "LYO MAO MAR POR WES",
	"STP/NC": "BAR NWY",
	"STP/SC": "BOT FIN LVN",
	"SWE":    "BAL BOT DEN FIN NWY SKA",
	"SYR":    "EAS SMY",
	"TRI":    "ADR ALB VEN",
	"TUN":    "ION NAF TYS WES",
	"TUS":    "LYO PIE ROM TYS",
	"TYS":    "ION LYO NAP ROM TUN TUS WES",
	"VEN":    "ADR APU TRI",
	"WAL":    "ENG IRI LON LVP",
	"WES":    "LYO MAO NAF SPA/SC TUN TYS",
	"YOR":    "EDI LON NTH",
}

// seaZones are provinces only fleets may occupy. Armies cross them by convoy.
var seaZones = "ADR AEG BAL BAR BLA BOT EAS ENG HEL ION IRI LYO MAO NAO NTH NWG SKA TYS WES"

// supplyCenterList names the 34 supply centers.
var supplyCenterList = "ANK BEL BER BRE BUD BUL CON DEN EDI GRE HOL KIE LON LVP MAR MOS MUN NAP NWY PAR POR ROM RUM SER SEV SMY SPA STP SWE TRI TUN VEN VIE WAR"

// homeCenters maps each power to its home supply centers.
var homeCenters = map[string]string{
	"AUSTRIA": "BUD TRI VIE",
	"ENGLAND": "EDI LON LVP",
	"FRANCE":  "BRE MAR PAR",
	"GERMANY": "BER KIE MUN",
	"ITALY":   "NAP ROM VEN",
	"RUSSIA":  "MOS SEV STP WAR",
	"TURKEY":  "ANK CON SMY",
}

// startingUnits maps each power to its 1901 opening position.
var startingUnits = map[string]string{
	"AUSTRIA": "A VIE,A BUD,F TRI",
	"ENGLAND": "F LON,F EDI,A LVP",
	"FRANCE":  "A PAR,A MAR,F BRE",
	"GERMANY": "A BER,A MUN,F KIE",
	"ITALY":   "A ROM,A VEN,F NAP",
	"RUSSIA":  "A MOS,A WAR,F SEV,F STP/SC",
	"TURKEY":  "A CON,A SMY,F ANK",
}

// powerOrder fixes the canonical power listing for the standard map.
var powerOrder = []string{
	"AUSTRIA", "ENGLAND", "FRANCE", "GERMANY", "ITALY", "RUSSIA", "TURKEY",
}
