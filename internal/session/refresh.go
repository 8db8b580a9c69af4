package session

import (
	"context"
	"errors"

	"github.com/cj3636/kahva/internal/diff"
	"github.com/cj3636/kahva/internal/graph"
)

// RefreshTask reads one revision set. Run it off the owner goroutine and
// hand the result to ApplyRefresh.
type RefreshTask struct {
	Token  uint64
	Stamp  uint64
	Preset Preset
	Revset string

	ctx    context.Context
	reader Reader
}

// RefreshResult is what a RefreshTask produced.
type RefreshResult struct {
	Token   uint64
	Stamp   uint64
	Preset  Preset
	History graph.History
	Err     error
}

// Run queries the reader.
func (t *RefreshTask) Run() RefreshResult {
	h, err := t.reader.Query(t.ctx, t.Revset)
	return RefreshResult{Token: t.Token, Stamp: t.Stamp, Preset: t.Preset, History: h, Err: err}
}

// Refresh starts a new read of the current preset. Any read still running is
// cancelled and its result will be ignored: the latest request wins.
func (s *Session) Refresh(ctx context.Context) *RefreshTask {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.token++

	t := &RefreshTask{
		Token:  s.token,
		Stamp:  s.rec.Stamp(),
		Preset: s.preset,
		Revset: s.Revset(),
		ctx:    ctx,
		reader: s.reader,
	}
	s.logger.Debug("refresh issued", "token", t.Token, "preset", t.Preset.String(), "revset", t.Revset)
	return t
}

// SetPreset switches the revision set and returns the read for it. Gestures
// are disabled under read-only presets.
func (s *Session) SetPreset(ctx context.Context, p Preset) *RefreshTask {
	s.preset = p
	s.resolver.SetEnabled(p.Editable())
	return s.Refresh(ctx)
}

// TogglePreset switches between the two presets.
func (s *Session) TogglePreset(ctx context.Context) *RefreshTask {
	if s.preset == Log {
		return s.SetPreset(ctx, KahvaLog)
	}
	return s.SetPreset(ctx, Log)
}

// ApplyRefresh installs the result of the latest refresh. It reports false
// for results that were superseded. A failed query keeps the snapshot on
// screen and records the error.
func (s *Session) ApplyRefresh(res RefreshResult) bool {
	if res.Token != s.token {
		s.logger.Debug("stale refresh dropped", "token", res.Token, "latest", s.token)
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if res.Err != nil {
		if errors.Is(res.Err, context.Canceled) {
			return false
		}
		s.lastErr = res.Err
		s.logger.Warn("history query failed", "preset", res.Preset.String(), "error", res.Err)
		return true
	}

	before := s.rec.View()
	s.generation++
	snap := s.builder.Build(s.generation, res.History)
	s.rec.Accept(snap, res.Stamp)
	s.relayout()
	s.lastErr = nil

	s.drift = diff.Compare(before, s.rec.View())
	if s.drift.HasChanges() && before.Len() > 0 {
		s.logger.Info("history changed", "from", s.drift.From, "to", s.drift.To, "rows", s.drift.Summary())
	}
	if issues := snap.Issues(); len(issues) > 0 {
		s.logger.Warn("snapshot has integrity issues", "generation", s.generation, "count", len(issues))
	}
	return true
}
