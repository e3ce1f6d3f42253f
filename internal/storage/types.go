package storage

import "strconv"

// PlayerMatchRow is one participant of one accepted match: the crawler's unit
// of output. An accepted match always yields ten rows sharing MatchID.
type PlayerMatchRow struct {
	// Match identifiers
	MatchID      string `json:"matchId"`
	Region       string `json:"region"`
	MatchLength  int    `json:"matchLength"` // seconds
	Win          bool   `json:"win"`
	TeamPosition string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY

	// End-of-game counting stats
	Kills   int `json:"kills"`
	Deaths  int `json:"deaths"`
	Assists int `json:"assists"`

	// 15-minute snapshot
	GoldAt15 int `json:"goldAt15"`
	CSAt15   int `json:"csAt15"`

	// First-objective flags of the participant's team
	TeamFirstTower     bool `json:"teamFirstTower"`
	TeamFirstDragon    bool `json:"teamFirstDragon"`
	TeamFirstBaron     bool `json:"teamFirstBaron"`
	TeamFirstInhibitor bool `json:"teamFirstInhibitor"`

	TotalGold   int `json:"totalGold"`
	TotalDamage int `json:"totalDamage"`
	TotalCS     int `json:"totalCs"`

	// Objective kills credited to the participant
	DragonKills    int `json:"dragonKills"`
	BaronKills     int `json:"baronKills"`
	TowerKills     int `json:"towerKills"`
	InhibitorKills int `json:"inhibitorKills"`
}

// MatchIDColumn is the header name the ledger reads back on resume.
const MatchIDColumn = "matchId"

// Header is the output column order. Downstream feature scripts address
// columns by these exact names.
var Header = []string{
	MatchIDColumn,
	"region",
	"match_length",
	"win",
	"teamposition",
	"kills",
	"deaths",
	"assists",
	"gold at 15",
	"cs at 15",
	"team_first_tower",
	"team_first_dragon",
	"team_first_baron",
	"team_first_inhibitor",
	"total_gold",
	"total_damage",
	"total_cs",
	"dragon kills",
	"baron kills",
	"tower kills",
	"inhib kills",
}

// Record renders the row in Header order. Booleans are written as 1/0.
func (r PlayerMatchRow) Record() []string {
	return []string{
		r.MatchID,
		r.Region,
		strconv.Itoa(r.MatchLength),
		flag(r.Win),
		r.TeamPosition,
		strconv.Itoa(r.Kills),
		strconv.Itoa(r.Deaths),
		strconv.Itoa(r.Assists),
		strconv.Itoa(r.GoldAt15),
		strconv.Itoa(r.CSAt15),
		flag(r.TeamFirstTower),
		flag(r.TeamFirstDragon),
		flag(r.TeamFirstBaron),
		flag(r.TeamFirstInhibitor),
		strconv.Itoa(r.TotalGold),
		strconv.Itoa(r.TotalDamage),
		strconv.Itoa(r.TotalCS),
		strconv.Itoa(r.DragonKills),
		strconv.Itoa(r.BaronKills),
		strconv.Itoa(r.TowerKills),
		strconv.Itoa(r.InhibitorKills),
	}
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
