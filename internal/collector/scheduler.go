package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"match-crawler/internal/metrics"
	"match-crawler/internal/riot"
	"match-crawler/internal/storage"
)

const (
	DefaultTargetMatches  = 30000
	DefaultDivisionCap    = 1500
	DefaultHistoryCount   = 20
	DefaultEmptyPageLimit = 2
	DefaultPacingDelay    = 1200 * time.Millisecond
)

// Player skip reasons.
const (
	SkipNoPUUID   = "no_puuid"
	SkipNoHistory = "no_history"
)

// LadderSource lists ladder players and their recent ranked matches.
type LadderSource interface {
	GetLeagueEntries(ctx context.Context, platform, tier, division string, page int) ([]riot.LeagueEntry, error)
	GetSummoner(ctx context.Context, platform, summonerID string) (*riot.SummonerResponse, error)
	GetMatchHistory(ctx context.Context, route, puuid string, count int) ([]string, error)
}

// MatchExtractor produces the rows of one match: ten when accepted, none
// when rejected.
type MatchExtractor interface {
	Extract(ctx context.Context, matchID string, region riot.Region) ([]storage.PlayerMatchRow, error)
}

// Plan is the crawl's iteration space, walked tier first, then region, then
// division.
type Plan struct {
	Tiers     []string
	Regions   []riot.Region
	Divisions []string
}

// SchedulerConfig is the full set of run parameters for one crawl.
type SchedulerConfig struct {
	Plan           Plan
	TargetMatches  int
	DivisionCap    int
	HistoryCount   int
	EmptyPageLimit int
	PacingDelay    time.Duration
}

// SegmentSummary describes the crawl of one tier/region/division segment.
type SegmentSummary struct {
	Tier      string
	Region    string
	Division  string
	Accepted  int
	Pages     int
	QuotaMet  bool
	Exhausted bool
}

// Summary is what a crawl run produced.
type Summary struct {
	Resumed  int // matches already in the destination at startup
	Accepted int // matches accepted by this run
	Total    int
	Segments []SegmentSummary
	Elapsed  time.Duration
}

// Scheduler walks the ladder and drives extraction until the global target
// is met or the plan is exhausted. It runs on a single goroutine.
type Scheduler struct {
	cfg       SchedulerConfig
	ladder    LadderSource
	extractor MatchExtractor
	ledger    *storage.Ledger
	buffer    *storage.Buffer
	pauser    riot.Pauser
	logger    *zap.Logger

	accepted  int
	resumed   int
	startTime time.Time
}

// NewScheduler creates a Scheduler. The global accepted count starts at the
// ledger size so a resumed crawl honors the same target.
func NewScheduler(cfg SchedulerConfig, ladder LadderSource, extractor MatchExtractor, ledger *storage.Ledger, buffer *storage.Buffer, pauser riot.Pauser, logger *zap.Logger) *Scheduler {
	if cfg.TargetMatches <= 0 {
		cfg.TargetMatches = DefaultTargetMatches
	}
	if cfg.DivisionCap <= 0 {
		cfg.DivisionCap = DefaultDivisionCap
	}
	if cfg.HistoryCount <= 0 {
		cfg.HistoryCount = DefaultHistoryCount
	}
	if cfg.EmptyPageLimit <= 0 {
		cfg.EmptyPageLimit = DefaultEmptyPageLimit
	}
	if cfg.PacingDelay < 0 {
		cfg.PacingDelay = 0
	}
	if pauser == nil {
		pauser = riot.TimerPauser()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:       cfg,
		ladder:    ladder,
		extractor: extractor,
		ledger:    ledger,
		buffer:    buffer,
		pauser:    pauser,
		logger:    logger,
		accepted:  ledger.Len(),
		resumed:   ledger.Len(),
	}
}

// Accepted returns the global accepted-match count, resumed matches included.
func (s *Scheduler) Accepted() int {
	return s.accepted
}

// Run crawls the plan. Buffered rows are flushed before Run returns on every
// path, including credential rejection and cancellation.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	s.startTime = time.Now()
	summary := Summary{Resumed: s.resumed}

	if s.resumed > 0 {
		s.logger.Info("Resuming crawl",
			zap.Int("already_collected", s.resumed),
			zap.Int("target", s.cfg.TargetMatches),
		)
	}

	runErr := s.walk(ctx, &summary)

	// The crawl context may already be cancelled here.
	pending := s.buffer.Pending()
	flushErr := s.buffer.Flush(context.WithoutCancel(ctx))
	if flushErr == nil && pending > 0 {
		s.logger.Info("Final save",
			zap.String("runtime", s.runtime()),
			zap.Int("total", s.accepted),
			zap.Int("target", s.cfg.TargetMatches),
		)
	}

	summary.Accepted = s.accepted - s.resumed
	summary.Total = s.accepted
	summary.Elapsed = time.Since(s.startTime)
	return summary, errors.Join(runErr, flushErr)
}

func (s *Scheduler) walk(ctx context.Context, summary *Summary) error {
	for _, tier := range s.cfg.Plan.Tiers {
		if s.targetMet() {
			return nil
		}
		for _, region := range s.cfg.Plan.Regions {
			if s.targetMet() {
				return nil
			}
			for _, division := range s.cfg.Plan.Divisions {
				if s.targetMet() {
					return nil
				}
				seg := SegmentSummary{Tier: tier, Region: region.ID, Division: division}
				err := s.crawlDivision(ctx, region, &seg)
				summary.Segments = append(summary.Segments, seg)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Scheduler) crawlDivision(ctx context.Context, region riot.Region, seg *SegmentSummary) error {
	log := s.logger.With(
		zap.String("region", region.ID),
		zap.String("tier", seg.Tier),
		zap.String("division", seg.Division),
	)
	log.Info("Switching segment")

	page := 1
	emptyPages := 0
	for {
		if s.targetMet() {
			return nil
		}
		if seg.Accepted >= s.cfg.DivisionCap {
			seg.QuotaMet = true
			log.Info("Quota met, moving on", zap.Int("accepted", seg.Accepted))
			return nil
		}
		if emptyPages >= s.cfg.EmptyPageLimit {
			seg.Exhausted = true
			log.Info("No more players found, moving on", zap.Int("last_page", page-1))
			return nil
		}

		players, err := s.ladder.GetLeagueEntries(ctx, region.ID, seg.Tier, seg.Division, page)
		if err != nil {
			return fmt.Errorf("ladder page %d: %w", page, err)
		}
		seg.Pages++
		if len(players) == 0 {
			emptyPages++
			metrics.EmptyPage(region.ID)
			log.Debug("Empty ladder page", zap.Int("page", page), zap.Int("consecutive", emptyPages))
			page++
			continue
		}
		emptyPages = 0

		log.Info("Scanning page",
			zap.Int("page", page),
			zap.Int("players", len(players)),
			zap.Int("division_matches", seg.Accepted),
			zap.Int("division_cap", s.cfg.DivisionCap),
		)

		for _, player := range players {
			if s.targetMet() || seg.Accepted >= s.cfg.DivisionCap {
				break
			}
			if err := s.crawlPlayer(ctx, region, player, seg, log); err != nil {
				return err
			}
		}
		page++
	}
}

func (s *Scheduler) crawlPlayer(ctx context.Context, region riot.Region, player riot.LeagueEntry, seg *SegmentSummary, log *zap.Logger) error {
	puuid, err := s.resolvePUUID(ctx, region, player)
	if err != nil {
		return err
	}
	if puuid == "" {
		metrics.PlayerSkipped(SkipNoPUUID)
		log.Debug("Skipping player without puuid", zap.String("summoner_id", player.SummonerID))
		return nil
	}

	matchIDs, err := s.ladder.GetMatchHistory(ctx, region.Route, puuid, s.cfg.HistoryCount)
	if err != nil {
		return fmt.Errorf("match history: %w", err)
	}
	if len(matchIDs) == 0 {
		metrics.PlayerSkipped(SkipNoHistory)
		return nil
	}

	for _, matchID := range matchIDs {
		if s.targetMet() || seg.Accepted >= s.cfg.DivisionCap {
			return nil
		}
		if s.ledger.Contains(matchID) {
			continue
		}

		rows, err := s.extractor.Extract(ctx, matchID, region)
		if err != nil {
			return fmt.Errorf("extract %s: %w", matchID, err)
		}
		if len(rows) > 0 {
			if err := s.accept(ctx, matchID, rows, seg); err != nil {
				return err
			}
		}

		if err := s.pauser.Pause(ctx, s.cfg.PacingDelay); err != nil {
			return err
		}
	}
	return nil
}

// resolvePUUID prefers the puuid on the ladder entry and falls back to one
// summoner lookup. An empty result means the player is skipped.
func (s *Scheduler) resolvePUUID(ctx context.Context, region riot.Region, player riot.LeagueEntry) (string, error) {
	if player.PUUID != "" {
		return player.PUUID, nil
	}
	if player.SummonerID == "" {
		return "", nil
	}
	summoner, err := s.ladder.GetSummoner(ctx, region.ID, player.SummonerID)
	if err != nil {
		return "", fmt.Errorf("summoner lookup: %w", err)
	}
	if summoner == nil {
		return "", nil
	}
	return summoner.PUUID, nil
}

// accept records one extracted match. Ledger insert and both counters move
// together so a match can never be counted without being recorded.
func (s *Scheduler) accept(ctx context.Context, matchID string, rows []storage.PlayerMatchRow, seg *SegmentSummary) error {
	s.ledger.Add(matchID)
	s.accepted++
	seg.Accepted++
	metrics.MatchAccepted(seg.Tier, seg.Region, seg.Division)

	flushed, err := s.buffer.Add(ctx, rows, s.accepted)
	if err != nil {
		return fmt.Errorf("save rows: %w", err)
	}
	if flushed {
		s.logger.Info("Saved data",
			zap.String("runtime", s.runtime()),
			zap.Int("total", s.accepted),
			zap.Int("target", s.cfg.TargetMatches),
		)
	}
	return nil
}

func (s *Scheduler) targetMet() bool {
	return s.accepted >= s.cfg.TargetMatches
}

// runtime formats elapsed crawl time as HH:MM.
func (s *Scheduler) runtime() string {
	elapsed := time.Since(s.startTime)
	return fmt.Sprintf("%02d:%02d", int(elapsed.Hours()), int(elapsed.Minutes())%60)
}
