package db

import "match-crawler/internal/storage"

// Table is the mirror table both backends write to.
const Table = "player_match_rows"

// columns mirrors storage.Header in SQL-friendly names, in the same order.
var columns = []string{
	"match_id",
	"region",
	"match_length",
	"win",
	"team_position",
	"kills",
	"deaths",
	"assists",
	"gold_at_15",
	"cs_at_15",
	"team_first_tower",
	"team_first_dragon",
	"team_first_baron",
	"team_first_inhibitor",
	"total_gold",
	"total_damage",
	"total_cs",
	"dragon_kills",
	"baron_kills",
	"tower_kills",
	"inhibitor_kills",
}

func rowValues(r storage.PlayerMatchRow) []any {
	return []any{
		r.MatchID,
		r.Region,
		r.MatchLength,
		r.Win,
		r.TeamPosition,
		r.Kills,
		r.Deaths,
		r.Assists,
		r.GoldAt15,
		r.CSAt15,
		r.TeamFirstTower,
		r.TeamFirstDragon,
		r.TeamFirstBaron,
		r.TeamFirstInhibitor,
		r.TotalGold,
		r.TotalDamage,
		r.TotalCS,
		r.DragonKills,
		r.BaronKills,
		r.TowerKills,
		r.InhibitorKills,
	}
}
