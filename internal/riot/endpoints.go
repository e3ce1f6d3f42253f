package riot

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultHostTemplate resolves a platform or routing value to its API host.
	DefaultHostTemplate = "https://{host}.api.riotgames.com"

	DefaultQueue         = "RANKED_SOLO_5x5"
	DefaultRankedQueueID = 420

	hostPlaceholder = "{host}"
	statusEndpoint  = "/lol/status/v4/platform-data"
)

// Endpoints builds request URLs for the platform (ladder, summoner) and
// regional (match) APIs. The credential is not part of the built URL; the
// Requester attaches it at send time.
type Endpoints struct {
	hostTemplate  string
	queue         string
	rankedQueueID int
}

// NewEndpoints creates an endpoint builder. Empty values fall back to the
// public Riot hosts and the ranked solo queue.
func NewEndpoints(hostTemplate, queue string, rankedQueueID int) Endpoints {
	if hostTemplate == "" {
		hostTemplate = DefaultHostTemplate
	}
	if queue == "" {
		queue = DefaultQueue
	}
	if rankedQueueID <= 0 {
		rankedQueueID = DefaultRankedQueueID
	}
	return Endpoints{
		hostTemplate:  strings.TrimRight(hostTemplate, "/"),
		queue:         queue,
		rankedQueueID: rankedQueueID,
	}
}

func (e Endpoints) base(host string) string {
	return strings.ReplaceAll(e.hostTemplate, hostPlaceholder, strings.ToLower(host))
}

// LeagueEntries lists one page of a tier/division ladder on a platform.
func (e Endpoints) LeagueEntries(platform, tier, division string, page int) string {
	return fmt.Sprintf("%s/lol/league/v4/entries/%s/%s/%s?page=%d",
		e.base(platform), e.queue, url.PathEscape(tier), url.PathEscape(division), page)
}

// Summoner resolves an encrypted summoner id on a platform.
func (e Endpoints) Summoner(platform, summonerID string) string {
	return fmt.Sprintf("%s/lol/summoner/v4/summoners/%s", e.base(platform), url.PathEscape(summonerID))
}

// MatchHistory lists the most recent ranked match ids of a player.
func (e Endpoints) MatchHistory(route, puuid string, count int) string {
	return fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?queue=%d&start=0&count=%d",
		e.base(route), url.PathEscape(puuid), e.rankedQueueID, count)
}

// Match fetches full match detail.
func (e Endpoints) Match(route, matchID string) string {
	return fmt.Sprintf("%s/lol/match/v5/matches/%s", e.base(route), url.PathEscape(matchID))
}

// Timeline fetches per-minute match frames.
func (e Endpoints) Timeline(route, matchID string) string {
	return e.Match(route, matchID) + "/timeline"
}

// PlatformStatus is a lightweight endpoint used to check the credential.
func (e Endpoints) PlatformStatus(platform string) string {
	return e.base(platform) + statusEndpoint
}
