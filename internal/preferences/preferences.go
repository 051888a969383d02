// Package preferences holds the small per-session choices that outlive a
// single page: delivery area, subscription plan and search history.
package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/storage"
)

const MaxSearchHistory = 10

type Preferences struct {
	storage   storage.Store
	sessionID string
	log       *slog.Logger
}

func New(s storage.Store, sessionID string, log *slog.Logger) *Preferences {
	return &Preferences{
		storage:   s,
		sessionID: sessionID,
		log:       log.With(slog.String("component", "preferences"), slog.String("session_id", sessionID)),
	}
}

// SelectedArea returns nil when nothing usable is stored.
func (p *Preferences) SelectedArea(ctx context.Context) *domain.SelectedArea {
	var area domain.SelectedArea
	if !p.read(ctx, storage.KeySelectedArea, &area) || area.LocationID == "" {
		return nil
	}
	return &area
}

func (p *Preferences) SetSelectedArea(ctx context.Context, area domain.SelectedArea) error {
	if area.LocationID == "" {
		return errors.New("location id is required")
	}
	return p.write(ctx, storage.KeySelectedArea, area)
}

func (p *Preferences) SelectedPlan(ctx context.Context) *domain.SelectedPlan {
	var plan domain.SelectedPlan
	if !p.read(ctx, storage.KeySelectedPlan, &plan) || plan.PackageID == "" {
		return nil
	}
	return &plan
}

func (p *Preferences) SetSelectedPlan(ctx context.Context, plan domain.SelectedPlan) error {
	if plan.PackageID == "" {
		return errors.New("package id is required")
	}
	return p.write(ctx, storage.KeySelectedPlan, plan)
}

// SearchHistory is most recent first.
func (p *Preferences) SearchHistory(ctx context.Context) []string {
	var history []string
	if !p.read(ctx, storage.KeySearchHistory, &history) || history == nil {
		return []string{}
	}
	return history
}

// RecordSearch moves query to the front of the history, ignoring case when
// de-duplicating, and trims the list to MaxSearchHistory.
func (p *Preferences) RecordSearch(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	previous, err := p.loadHistory(ctx)
	if err != nil {
		return err
	}
	history := []string{query}
	for _, h := range previous {
		if strings.EqualFold(h, query) {
			continue
		}
		history = append(history, h)
		if len(history) == MaxSearchHistory {
			break
		}
	}
	return p.write(ctx, storage.KeySearchHistory, history)
}

// loadHistory is SearchHistory for writers: a backend failure is returned
// instead of read as an empty history, so the stored list is not overwritten.
func (p *Preferences) loadHistory(ctx context.Context) ([]string, error) {
	data, err := p.storage.Get(ctx, p.sessionID, storage.KeySearchHistory)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load search history failed: %w", err)
	}
	var history []string
	if err := json.Unmarshal(data, &history); err != nil {
		p.log.WarnContext(ctx, "preference data is corrupt", slog.String("key", storage.KeySearchHistory), slog.Any("error", err))
		return nil, nil
	}
	return history, nil
}

func (p *Preferences) ClearSearchHistory(ctx context.Context) error {
	if err := p.storage.Delete(ctx, p.sessionID, storage.KeySearchHistory); err != nil {
		return fmt.Errorf("clear search history failed: %w", err)
	}
	return nil
}

func (p *Preferences) read(ctx context.Context, key string, dst any) bool {
	data, err := p.storage.Get(ctx, p.sessionID, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		p.log.WarnContext(ctx, "preference read failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		p.log.WarnContext(ctx, "preference data is corrupt", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (p *Preferences) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	if err := p.storage.Set(ctx, p.sessionID, key, data); err != nil {
		return fmt.Errorf("save %s failed: %w", key, err)
	}
	return nil
}
