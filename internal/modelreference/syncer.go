package modelreference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	modelsDevURL   = "https://models.dev/api.json"
	syncInterval   = 6 * time.Hour
	fetchTimeout   = 15 * time.Second
	maxPayloadSize = 16 << 20
)

var errEmptyCatalog = errors.New("modelreference: sync: catalog has no models")

// Syncer refreshes context windows from models.dev into the database and the live Table.
type Syncer struct {
	db       *gorm.DB
	table    *Table
	url      string
	interval time.Duration
	client   *http.Client
	now      func() time.Time
}

// NewSyncer returns a syncer that publishes every successful sync to table.
func NewSyncer(db *gorm.DB, table *Table) *Syncer {
	return &Syncer{
		db:       db,
		table:    table,
		url:      modelsDevURL,
		interval: syncInterval,
		client:   &http.Client{Timeout: fetchTimeout},
		now:      time.Now,
	}
}

// Warm publishes the references persisted by an earlier sync.
func (s *Syncer) Warm(ctx context.Context) error {
	refs, err := LoadReferences(ctx, s.db)
	if err != nil {
		return err
	}
	s.table.Replace(refs)
	log.WithField("models", s.table.Len()).Debug("modelreference: table warmed")
	return nil
}

// Start syncs immediately and then every interval until ctx is done.
func (s *Syncer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			if errSync := s.SyncOnce(ctx); errSync != nil {
				log.WithError(errSync).Warn("modelreference: sync failed, keeping previous table")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	log.Infof("modelreference: syncing from %s every %s", s.url, s.interval)
}

// SyncOnce fetches the catalog, persists it and replaces the live table. The table is
// left untouched when any step fails.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	payload, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	refs, err := ParseModelsPayload(payload)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return errEmptyCatalog
	}
	if errStore := StoreReferences(ctx, s.db, refs, s.now().UTC()); errStore != nil {
		return errStore
	}
	s.table.Replace(refs)
	log.WithField("models", len(refs)).Info("modelreference: sync complete")
	return nil
}

func (s *Syncer) fetch(ctx context.Context) ([]byte, error) {
	ctxFetch, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxFetch, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("modelreference: sync: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("modelreference: sync: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("modelreference: sync: upstream status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("modelreference: sync: read body: %w", err)
	}
	return body, nil
}
