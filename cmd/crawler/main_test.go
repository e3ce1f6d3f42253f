package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"match-crawler/internal/discord"
	"match-crawler/internal/riot"
	"match-crawler/internal/storage"
)

func init() {
	setupSignals = func(*zap.Logger, func(context.Context)) context.Context {
		return context.Background()
	}
}

// fakeRiot serves one NA1 Diamond I player with a single accepted match.
type fakeRiot struct {
	rejectKey atomic.Bool
	requests  atomic.Int32
}

func (f *fakeRiot) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.requests.Add(1)
			if f.rejectKey.Load() || req.URL.Query().Get("api_key") != "RGAPI-test-key-0001" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/lol/status/v4/platform-data", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"id": "NA1"})
	})
	r.Get("/lol/league/v4/entries/{queue}/{tier}/{division}", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("page") != "1" {
			writeJSON(w, []riot.LeagueEntry{})
			return
		}
		writeJSON(w, []riot.LeagueEntry{{SummonerID: "s1", PUUID: "p1", Tier: "DIAMOND", Rank: "I"}})
	})
	r.Get("/lol/match/v5/matches/by-puuid/{puuid}/ids", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []string{"NA1_100"})
	})
	r.Get("/lol/match/v5/matches/{matchID}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, matchPayload(chi.URLParam(req, "matchID")))
	})
	r.Get("/lol/match/v5/matches/{matchID}/timeline", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, timelinePayload(20))
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func matchPayload(id string) riot.MatchResponse {
	participants := make([]riot.MatchParticipant, 0, 10)
	for i := 1; i <= 10; i++ {
		team := 100
		if i > 5 {
			team = 200
		}
		participants = append(participants, riot.MatchParticipant{
			ParticipantID: i,
			TeamID:        team,
			TeamPosition:  "TOP",
			Win:           team == 100,
			Kills:         i,
			GoldEarned:    12000,
		})
	}
	return riot.MatchResponse{
		Metadata: riot.MatchMetadata{MatchID: id},
		Info: &riot.MatchInfo{
			GameDuration: 1800,
			QueueID:      riot.DefaultRankedQueueID,
			Participants: participants,
			Teams: []riot.MatchTeam{
				{TeamID: 100, Win: true, Objectives: riot.TeamObjectives{Tower: riot.Objective{First: true}}},
				{TeamID: 200},
			},
		},
	}
}

func timelinePayload(frames int) riot.TimelineResponse {
	out := make([]riot.TimelineFrame, frames)
	for f := range out {
		pf := make(map[string]riot.ParticipantFrame, 10)
		for i := 1; i <= 10; i++ {
			pf[strconv.Itoa(i)] = riot.ParticipantFrame{ParticipantID: i, TotalGold: 400 * f, MinionsKilled: 7 * f}
		}
		out[f] = riot.TimelineFrame{Timestamp: f * 60000, ParticipantFrames: pf}
	}
	return riot.TimelineResponse{Info: &riot.TimelineInfo{FrameInterval: 60000, Frames: out}}
}

// writeConfig writes a YAML config for a one-segment crawl against apiURL and
// returns its path plus the output CSV path.
func writeConfig(t *testing.T, apiURL, webhookURL string) (string, string) {
	t.Helper()
	t.Setenv("CRAWLER_API_KEY", "RGAPI-test-key-0001")
	t.Setenv("RIOT_API_KEY", "")

	dir := t.TempDir()
	output := filepath.Join(dir, "out", "dataset.csv")
	content := fmt.Sprintf(`api:
  host_template: %q
  timeout: 5s
  default_retry_after: 1s
  requests_per_two_minutes: 0
crawl:
  target_matches: 1
  pacing_delay: 0s
  tiers: [DIAMOND]
  divisions: [I]
  regions:
    - id: NA1
      route: americas
output:
  path: %q
notify:
  discord_webhook_url: %q
logging:
  development: false
`, apiURL, output, webhookURL)

	path := filepath.Join(dir, "crawler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, output
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type webhookRecorder struct {
	server   *httptest.Server
	payloads chan discord.WebhookPayload
}

func newWebhookRecorder(t *testing.T) *webhookRecorder {
	t.Helper()
	rec := &webhookRecorder{payloads: make(chan discord.WebhookPayload, 4)}
	rec.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p discord.WebhookPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		rec.payloads <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(rec.server.Close)
	return rec
}

func TestCrawlCommand_CollectsAndResumes(t *testing.T) {
	api := &fakeRiot{}
	server := httptest.NewServer(api.handler())
	defer server.Close()
	hook := newWebhookRecorder(t)

	cfgPath, output := writeConfig(t, server.URL, hook.server.URL)

	_, err := execute(t, "crawl", "--config", cfgPath)
	require.NoError(t, err)

	ids, rows, err := storage.ReadMatchIDs(output)
	require.NoError(t, err)
	assert.Equal(t, []string{"NA1_100"}, ids)
	assert.Equal(t, 10, rows)

	require.Len(t, hook.payloads, 1)
	done := <-hook.payloads
	require.NotEmpty(t, done.Embeds)
	assert.Contains(t, done.Embeds[0].Title, "Crawl Complete")

	// The target is already met on restart; only the pre-flight check runs.
	before := api.requests.Load()
	_, err = execute(t, "crawl", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, before+1, api.requests.Load())

	_, rows, err = storage.ReadMatchIDs(output)
	require.NoError(t, err)
	assert.Equal(t, 10, rows)
}

func TestCrawlCommand_RejectedKeyNotifies(t *testing.T) {
	api := &fakeRiot{}
	api.rejectKey.Store(true)
	server := httptest.NewServer(api.handler())
	defer server.Close()
	hook := newWebhookRecorder(t)

	cfgPath, output := writeConfig(t, server.URL, hook.server.URL)

	_, err := execute(t, "crawl", "--config", cfgPath)
	require.ErrorIs(t, err, riot.ErrCredentialRejected)

	require.Len(t, hook.payloads, 1)
	alert := <-hook.payloads
	assert.Contains(t, alert.Content, "@here")
	require.NotEmpty(t, alert.Embeds)
	assert.Contains(t, alert.Embeds[0].Title, "API Key Rejected")

	_, err = os.Stat(output)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCrawlCommand_RequiresKey(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:0", "")
	t.Setenv("CRAWLER_API_KEY", "")

	_, err := execute(t, "crawl", "--config", cfgPath)
	assert.ErrorContains(t, err, "api.key must be set")
}

func TestValidateKeyCommand(t *testing.T) {
	api := &fakeRiot{}
	server := httptest.NewServer(api.handler())
	defer server.Close()

	cfgPath, _ := writeConfig(t, server.URL, "")

	out, err := execute(t, "validate-key", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "API key accepted")

	api.rejectKey.Store(true)
	_, err = execute(t, "validate-key", "--config", cfgPath)
	assert.ErrorIs(t, err, riot.ErrCredentialRejected)
}

func TestLedgerCommand(t *testing.T) {
	cfgPath, output := writeConfig(t, "http://127.0.0.1:0", "")

	out, err := execute(t, "ledger", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "matches:   0")
	assert.Contains(t, out, "remaining: 1")

	records := make([]storage.PlayerMatchRow, 10)
	for i := range records {
		records[i] = storage.PlayerMatchRow{MatchID: "NA1_7", Region: "NA1", Kills: i}
	}
	require.NoError(t, storage.NewCSVFile(output).Append(records))

	out, err = execute(t, "ledger", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "matches:   1")
	assert.Contains(t, out, "rows:      10")
	assert.Contains(t, out, "remaining: 0")
}

func TestBadConfigFails(t *testing.T) {
	_, err := execute(t, "ledger", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "load config")
}

func TestValidateKeyCommand_Inconclusive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfgPath, _ := writeConfig(t, server.URL, "")

	_, err := execute(t, "validate-key", "--config", cfgPath)
	require.Error(t, err)
	assert.NotErrorIs(t, err, riot.ErrCredentialRejected)
	assert.ErrorContains(t, err, "503")
}
