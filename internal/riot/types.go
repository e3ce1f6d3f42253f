package riot

// Region pairs a platform code (ladder and summoner queries) with the routing
// cluster that serves match queries for it.
type Region struct {
	ID    string `mapstructure:"id"`    // NA1, EUW1, EUN1, KR, ...
	Route string `mapstructure:"route"` // americas, europe, asia, sea
}

// LeagueEntry represents one row of /lol/league/v4/entries/{queue}/{tier}/{division}
type LeagueEntry struct {
	LeagueID     string `json:"leagueId"`
	SummonerID   string `json:"summonerId"`
	PUUID        string `json:"puuid"`
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// SummonerResponse represents the response from /lol/summoner/v4/summoners/{summonerId}
type SummonerResponse struct {
	ID            string `json:"id"`
	PUUID         string `json:"puuid"`
	ProfileIconID int    `json:"profileIconId"`
	SummonerLevel int    `json:"summonerLevel"`
}

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     *MatchInfo    `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation int64              `json:"gameCreation"`
	GameDuration int                `json:"gameDuration"` // seconds
	GameVersion  string             `json:"gameVersion"`
	QueueID      int                `json:"queueId"`
	Participants []MatchParticipant `json:"participants"`
	Teams        []MatchTeam        `json:"teams"`
}

type MatchTeam struct {
	TeamID     int            `json:"teamId"`
	Win        bool           `json:"win"`
	Objectives TeamObjectives `json:"objectives"`
}

type TeamObjectives struct {
	Baron     Objective `json:"baron"`
	Dragon    Objective `json:"dragon"`
	Inhibitor Objective `json:"inhibitor"`
	Tower     Objective `json:"tower"`
}

type Objective struct {
	First bool `json:"first"`
	Kills int  `json:"kills"`
}

type MatchParticipant struct {
	ParticipantID               int    `json:"participantId"`
	TeamID                      int    `json:"teamId"`
	PUUID                       string `json:"puuid"`
	TeamPosition                string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY
	Win                         bool   `json:"win"`
	Kills                       int    `json:"kills"`
	Deaths                      int    `json:"deaths"`
	Assists                     int    `json:"assists"`
	GoldEarned                  int    `json:"goldEarned"`
	TotalDamageDealtToChampions int    `json:"totalDamageDealtToChampions"`
	TotalMinionsKilled          int    `json:"totalMinionsKilled"`
	NeutralMinionsKilled        int    `json:"neutralMinionsKilled"`
	DragonKills                 int    `json:"dragonKills"`
	BaronKills                  int    `json:"baronKills"`
	TurretKills                 int    `json:"turretKills"`
	InhibitorKills              int    `json:"inhibitorKills"`
}

// TimelineResponse represents the response from /lol/match/v5/matches/{matchId}/timeline
type TimelineResponse struct {
	Metadata TimelineMetadata `json:"metadata"`
	Info     *TimelineInfo    `json:"info"`
}

type TimelineMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type TimelineInfo struct {
	FrameInterval int             `json:"frameInterval"`
	Frames        []TimelineFrame `json:"frames"`
}

// TimelineFrame is one per-minute snapshot. ParticipantFrames is keyed by the
// participant id rendered as a string ("1".."10").
type TimelineFrame struct {
	Timestamp         int                         `json:"timestamp"`
	ParticipantFrames map[string]ParticipantFrame `json:"participantFrames"`
}

type ParticipantFrame struct {
	ParticipantID       int `json:"participantId"`
	Level               int `json:"level"`
	XP                  int `json:"xp"`
	CurrentGold         int `json:"currentGold"`
	TotalGold           int `json:"totalGold"`
	MinionsKilled       int `json:"minionsKilled"`
	JungleMinionsKilled int `json:"jungleMinionsKilled"`
}

// Tier order for comparison (higher index = higher rank)
var TierOrder = map[string]int{
	"IRON":        0,
	"BRONZE":      1,
	"SILVER":      2,
	"GOLD":        3,
	"PLATINUM":    4,
	"EMERALD":     5,
	"DIAMOND":     6,
	"MASTER":      7,
	"GRANDMASTER": 8,
	"CHALLENGER":  9,
}

// Division order (higher index = higher rank within tier)
var DivisionOrder = map[string]int{
	"IV":  0,
	"III": 1,
	"II":  2,
	"I":   3,
}

// IsLadderTier reports whether the tier is served by the paginated entries
// endpoint. Apex tiers (Master+) only list division I.
func IsLadderTier(tier string) bool {
	_, ok := TierOrder[tier]
	return ok
}

// IsApexTier reports whether tier is Master or above, where the ladder has
// only division I.
func IsApexTier(tier string) bool {
	return TierOrder[tier] >= TierOrder["MASTER"]
}

// IsDivision reports whether division is a known ladder division.
func IsDivision(division string) bool {
	_, ok := DivisionOrder[division]
	return ok
}
