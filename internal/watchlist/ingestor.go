package watchlist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"listscreen/internal/audit"
	"listscreen/internal/domain"
	"listscreen/internal/watchlist/metrics"
	"listscreen/internal/watchlist/normalize"
	platstrings "listscreen/pkg/platform/strings"
)

// Ingestion failure kinds. The prior current snapshot is untouched whenever
// Ingest returns an error; a partially built snapshot is never published.
var (
	ErrEmptySource         = errors.New("ingest: source produced no records")
	ErrBelowMinimumEntries = errors.New("ingest: entry count below configured minimum")
	ErrSourceUnreachable   = errors.New("ingest: source unreachable")
)

var tracer = otel.Tracer("listscreen/watchlist")

// DefaultMinEntries guards against publishing a truncated list when the
// upstream feed is degraded rather than empty.
const DefaultMinEntries = 1

// Ingestor consumes raw records from a list source, normalizes and
// deduplicates them, and atomically publishes the result as a new snapshot.
type Ingestor struct {
	store      SnapshotStore
	auditor    *audit.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	minEntries int
	now        func() time.Time
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithLogger sets the ingestion logger.
func WithLogger(logger *slog.Logger) IngestorOption {
	return func(i *Ingestor) {
		i.logger = logger
	}
}

// WithAuditor sets the audit publisher for snapshot lifecycle events.
func WithAuditor(auditor *audit.Publisher) IngestorOption {
	return func(i *Ingestor) {
		i.auditor = auditor
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) IngestorOption {
	return func(i *Ingestor) {
		i.metrics = m
	}
}

// WithMinEntries overrides the minimum published entry count.
func WithMinEntries(n int) IngestorOption {
	return func(i *Ingestor) {
		i.minEntries = n
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) IngestorOption {
	return func(i *Ingestor) {
		i.now = now
	}
}

func NewIngestor(store SnapshotStore, opts ...IngestorOption) *Ingestor {
	ing := &Ingestor{
		store:      store,
		logger:     slog.Default(),
		minEntries: DefaultMinEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Ingest drains the source, builds the snapshot fully off to the side, and
// publishes it in a single store call. Records with the same normalized
// (primary name, category, address) collapse into one entry; their alternate
// names accumulate.
func (i *Ingestor) Ingest(ctx context.Context, source ListSource) (*domain.WatchlistSnapshot, error) {
	ctx, span := tracer.Start(ctx, "watchlist.Ingest")
	defer span.End()

	start := i.now()

	entries, collapsed, err := i.collect(ctx, source)
	if err != nil {
		i.metrics.IncrementFailure("source_unreachable")
		i.auditor.Emit(ctx, audit.Event{
			Action:  audit.ActionIngestionFailed,
			Outcome: "source_unreachable",
			Detail:  err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	if len(entries) == 0 {
		i.metrics.IncrementFailure("empty_source")
		i.auditor.Emit(ctx, audit.Event{
			Action:  audit.ActionIngestionFailed,
			Outcome: "empty_source",
		})
		return nil, ErrEmptySource
	}
	if len(entries) < i.minEntries {
		i.metrics.IncrementFailure("below_minimum")
		i.auditor.Emit(ctx, audit.Event{
			Action:  audit.ActionIngestionFailed,
			Outcome: "below_minimum",
			Detail:  fmt.Sprintf("got %d entries, minimum %d", len(entries), i.minEntries),
		})
		return nil, fmt.Errorf("%w: got %d, minimum %d", ErrBelowMinimumEntries, len(entries), i.minEntries)
	}

	published := i.now()
	snap := &domain.WatchlistSnapshot{
		ID:         uuid.NewString(),
		ListDate:   domain.ListDateFrom(published),
		Checksum:   checksum(entries),
		IngestedAt: published,
		EntryCount: len(entries),
		Entries:    entries,
	}

	if err := i.store.Publish(ctx, snap); err != nil {
		i.metrics.IncrementFailure("store")
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}

	i.metrics.IncrementPublished()
	i.metrics.AddEntries(len(entries))
	i.metrics.AddCollapsed(collapsed)
	i.metrics.ObserveIngest(i.now().Sub(start))

	i.auditor.Emit(ctx, audit.Event{
		Action:   audit.ActionSnapshotPublished,
		ListDate: snap.ListDate,
		Subject:  snap.ID,
		Outcome:  fmt.Sprintf("%d entries", snap.EntryCount),
		Detail:   snap.Checksum,
	})
	i.logger.Info("watchlist snapshot published",
		"snapshot_id", snap.ID,
		"list_date", snap.ListDate,
		"entries", snap.EntryCount,
		"collapsed", collapsed)

	return snap, nil
}

// collect drains the source into deduplicated entries. collapsed counts the
// raw records that merged into an existing entry.
func (i *Ingestor) collect(ctx context.Context, source ListSource) ([]domain.WatchlistEntry, int, error) {
	byKey := make(map[string]*domain.WatchlistEntry)
	var order []string
	collapsed := 0

	for {
		raw, ok, err := source.Next(ctx)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			break
		}

		entry := normalizeRecord(raw)
		if entry.NormalizedName == "" {
			// a record with no usable name can never match anything
			collapsed++
			continue
		}

		key := dedupeKey(entry)
		existing, seen := byKey[key]
		if !seen {
			byKey[key] = &entry
			order = append(order, key)
			continue
		}

		collapsed++
		existing.AlternateNames = platstrings.DedupeAndTrim(append(existing.AlternateNames, raw.AltNames...))
		existing.NormalizedAltNames = mergeNormalized(existing.NormalizedAltNames, entry.NormalizedAltNames)
		if existing.Remarks == "" {
			existing.Remarks = entry.Remarks
		}
	}

	entries := make([]domain.WatchlistEntry, 0, len(order))
	for _, key := range order {
		entries = append(entries, *byKey[key])
	}
	return entries, collapsed, nil
}

// normalizeRecord builds an entry carrying both original and matching-ready
// text. The original form is what operators see; the normalized form is what
// the screening engine compares.
func normalizeRecord(raw RawListRecord) domain.WatchlistEntry {
	category := domain.EntryCategory(strings.ToLower(strings.TrimSpace(raw.Category)))
	if !category.IsValid() {
		category = domain.CategoryEntity
	}

	entry := domain.WatchlistEntry{
		ID:             uuid.NewString(),
		PrimaryName:    strings.TrimSpace(raw.PrimaryName),
		AlternateNames: platstrings.DedupeAndTrim(raw.AltNames),
		Street:         strings.TrimSpace(raw.Address),
		City:           strings.TrimSpace(raw.City),
		Country:        strings.TrimSpace(raw.Country),
		Category:       category,
		Remarks:        strings.TrimSpace(raw.Remarks),

		NormalizedName:    normalize.Text(raw.PrimaryName),
		NormalizedStreet:  normalize.Text(raw.Address),
		NormalizedCity:    normalize.Text(raw.City),
		NormalizedCountry: normalize.Text(raw.Country),
	}
	for _, alt := range entry.AlternateNames {
		if n := normalize.Text(alt); n != "" {
			entry.NormalizedAltNames = append(entry.NormalizedAltNames, n)
		}
	}
	entry.NormalizedAltNames = platstrings.DedupeAndTrim(entry.NormalizedAltNames)
	return entry
}

func dedupeKey(e domain.WatchlistEntry) string {
	return strings.Join([]string{
		e.NormalizedName,
		string(e.Category),
		e.NormalizedStreet,
		e.NormalizedCity,
		e.NormalizedCountry,
	}, "|")
}

func mergeNormalized(into, extra []string) []string {
	return platstrings.DedupeAndTrim(append(into, extra...))
}

// checksum fingerprints the normalized content of a snapshot so re-ingesting
// an unchanged upstream list is detectable. Keys are sorted first; the hash
// must not depend on source order.
func checksum(entries []domain.WatchlistEntry) string {
	keys := make([]string, len(entries))
	for idx, e := range entries {
		keys[idx] = dedupeKey(e) + "|" + strings.Join(e.NormalizedAltNames, ",")
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
