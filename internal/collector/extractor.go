package collector

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"match-crawler/internal/metrics"
	"match-crawler/internal/riot"
	"match-crawler/internal/storage"
)

const (
	// DefaultMinDurationSeconds keeps only games long enough to have a
	// complete 15-minute frame.
	DefaultMinDurationSeconds = 910

	// DefaultSnapshotMinute is the timeline frame index of the snapshot.
	DefaultSnapshotMinute = 15

	participantsPerMatch = 10
)

// Rejection reasons, used as the metrics label and log field.
const (
	RejectNoMatch         = "no_match"
	RejectShortGame       = "short_game"
	RejectNoTimeline      = "no_timeline"
	RejectShortTimeline   = "short_timeline"
	RejectParticipants    = "participant_count"
	RejectUnknownTeam     = "unknown_team"
	RejectMissingSnapshot = "missing_snapshot"
)

// MatchSource fetches the two payloads a match row is built from.
type MatchSource interface {
	GetMatch(ctx context.Context, route, matchID string) (*riot.MatchResponse, error)
	GetTimeline(ctx context.Context, route, matchID string) (*riot.TimelineResponse, error)
}

// ExtractorConfig holds the acceptance thresholds.
type ExtractorConfig struct {
	MinDurationSeconds int
	SnapshotMinute     int
}

// Extractor turns a match id into ten PlayerMatchRows, or none.
type Extractor struct {
	source MatchSource
	cfg    ExtractorConfig
	logger *zap.Logger
}

// NewExtractor creates an Extractor. Zero thresholds take the defaults.
func NewExtractor(source MatchSource, cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	if cfg.MinDurationSeconds <= 0 {
		cfg.MinDurationSeconds = DefaultMinDurationSeconds
	}
	if cfg.SnapshotMinute <= 0 {
		cfg.SnapshotMinute = DefaultSnapshotMinute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{source: source, cfg: cfg, logger: logger}
}

type teamFirsts struct {
	tower, dragon, baron, inhibitor bool
}

// Extract fetches and validates one match. A rejected or unavailable match
// yields no rows and a nil error; the error is reserved for conditions that
// must stop the crawl (credential rejection, cancellation).
func (e *Extractor) Extract(ctx context.Context, matchID string, region riot.Region) ([]storage.PlayerMatchRow, error) {
	match, err := e.source.GetMatch(ctx, region.Route, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil || match.Info == nil {
		return e.reject(matchID, RejectNoMatch), nil
	}
	info := match.Info

	if info.GameDuration < e.cfg.MinDurationSeconds {
		return e.reject(matchID, RejectShortGame, zap.Int("duration", info.GameDuration)), nil
	}
	if len(info.Participants) != participantsPerMatch {
		return e.reject(matchID, RejectParticipants, zap.Int("participants", len(info.Participants))), nil
	}

	timeline, err := e.source.GetTimeline(ctx, region.Route, matchID)
	if err != nil {
		return nil, err
	}
	if timeline == nil || timeline.Info == nil {
		return e.reject(matchID, RejectNoTimeline), nil
	}
	if len(timeline.Info.Frames) <= e.cfg.SnapshotMinute {
		return e.reject(matchID, RejectShortTimeline, zap.Int("frames", len(timeline.Info.Frames))), nil
	}
	snapshot := timeline.Info.Frames[e.cfg.SnapshotMinute].ParticipantFrames

	teams := make(map[int]teamFirsts, len(info.Teams))
	for _, t := range info.Teams {
		teams[t.TeamID] = teamFirsts{
			tower:     t.Objectives.Tower.First,
			dragon:    t.Objectives.Dragon.First,
			baron:     t.Objectives.Baron.First,
			inhibitor: t.Objectives.Inhibitor.First,
		}
	}

	rows := make([]storage.PlayerMatchRow, 0, participantsPerMatch)
	for _, p := range info.Participants {
		team, ok := teams[p.TeamID]
		if !ok {
			return e.reject(matchID, RejectUnknownTeam, zap.Int("team_id", p.TeamID)), nil
		}
		frame, ok := snapshot[strconv.Itoa(p.ParticipantID)]
		if !ok {
			return e.reject(matchID, RejectMissingSnapshot, zap.Int("participant_id", p.ParticipantID)), nil
		}

		rows = append(rows, storage.PlayerMatchRow{
			MatchID:            matchID,
			Region:             region.ID,
			MatchLength:        info.GameDuration,
			Win:                p.Win,
			TeamPosition:       p.TeamPosition,
			Kills:              p.Kills,
			Deaths:             p.Deaths,
			Assists:            p.Assists,
			GoldAt15:           frame.TotalGold,
			CSAt15:             frame.MinionsKilled + frame.JungleMinionsKilled,
			TeamFirstTower:     team.tower,
			TeamFirstDragon:    team.dragon,
			TeamFirstBaron:     team.baron,
			TeamFirstInhibitor: team.inhibitor,
			TotalGold:          p.GoldEarned,
			TotalDamage:        p.TotalDamageDealtToChampions,
			TotalCS:            p.TotalMinionsKilled + p.NeutralMinionsKilled,
			DragonKills:        p.DragonKills,
			BaronKills:         p.BaronKills,
			TowerKills:         p.TurretKills,
			InhibitorKills:     p.InhibitorKills,
		})
	}
	return rows, nil
}

func (e *Extractor) reject(matchID, reason string, fields ...zap.Field) []storage.PlayerMatchRow {
	metrics.MatchRejected(reason)
	e.logger.Debug("Match rejected",
		append([]zap.Field{zap.String("match_id", matchID), zap.String("reason", reason)}, fields...)...,
	)
	return nil
}
