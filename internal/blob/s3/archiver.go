package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/poolbook/internal/domain"
)

// archivePrefix is where settlement exports live in the bucket.
const archivePrefix = "archive/settlements/"

// settledSource lists settled markets for export.
type settledSource interface {
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.MarketAggregate, error)
}

// Archiver exports settled markets to object storage as monthly JSONL
// files. The primary store keeps its rows; the export is a cold copy, so
// re-running an archive overwrites the month files with the same content.
type Archiver struct {
	source settledSource
	blobs  *Writer
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver reading from source and writing through
// the blob writer.
func NewArchiver(source settledSource, blobs *Writer, audit domain.AuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		source: source,
		blobs:  blobs,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// archivedMarket is one JSONL line in a month file. Amounts are decimal
// strings so the export round-trips values beyond float precision.
type archivedMarket struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	CreatorID       string           `json:"creator_id"`
	TotalPool       string           `json:"total_pool"`
	CorrectOptionID string           `json:"correct_option_id"`
	CreatedAt       time.Time        `json:"created_at"`
	SettledAt       time.Time        `json:"settled_at"`
	Options         []archivedOption `json:"options"`
	Stakes          []archivedStake  `json:"stakes"`
}

type archivedOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TotalAmount string `json:"total_amount"`
}

type archivedStake struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	OptionID  string    `json:"option_id"`
	Amount    string    `json:"amount"`
	Reward    *string   `json:"reward,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ArchiveSettlements exports every market settled before the cutoff, grouped
// into one JSONL object per settlement month, and returns the number of
// markets exported.
func (a *Archiver) ArchiveSettlements(ctx context.Context, before time.Time) (int64, error) {
	aggregates, err := a.source.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive: load settled markets: %w", err)
	}
	if len(aggregates) == 0 {
		a.logger.InfoContext(ctx, "nothing to archive",
			slog.Time("cutoff", before),
		)
		return 0, nil
	}

	months := make(map[string][]domain.MarketAggregate)
	for _, agg := range aggregates {
		key := agg.Market.UpdatedAt.UTC().Format("2006-01")
		months[key] = append(months[key], agg)
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var archived int64
	for _, month := range keys {
		group := months[month]
		buf, err := encodeMonth(group)
		if err != nil {
			return archived, err
		}

		path := archivePrefix + month + ".jsonl"
		if err := a.upload(ctx, path, buf); err != nil {
			return archived, err
		}

		archived += int64(len(group))
		a.logger.InfoContext(ctx, "archived month",
			slog.String("path", path),
			slog.Int("markets", len(group)),
			slog.Int("bytes", buf.Len()),
		)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.settlements", map[string]any{
			"cutoff":  before.UTC().Format(time.RFC3339),
			"months":  len(months),
			"markets": archived,
		}); err != nil {
			a.logger.WarnContext(ctx, "audit log failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return archived, nil
}

// upload picks the single-shot or multipart path based on payload size.
func (a *Archiver) upload(ctx context.Context, path string, buf *bytes.Buffer) error {
	if int64(buf.Len()) >= minPartSize {
		if err := a.blobs.PutMultipart(ctx, path, buf, minPartSize); err != nil {
			return fmt.Errorf("s3blob: archive: %w", err)
		}
		return nil
	}
	if err := a.blobs.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive: %w", err)
	}
	return nil
}

// encodeMonth renders one month's markets as JSONL, oldest settlement first.
func encodeMonth(group []domain.MarketAggregate) (*bytes.Buffer, error) {
	sort.Slice(group, func(i, j int) bool {
		return group[i].Market.UpdatedAt.Before(group[j].Market.UpdatedAt)
	})

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, agg := range group {
		if err := enc.Encode(toArchived(agg)); err != nil {
			return nil, fmt.Errorf("s3blob: archive: encode market %s: %w", agg.Market.ID, err)
		}
	}
	return &buf, nil
}

func toArchived(agg domain.MarketAggregate) archivedMarket {
	m := agg.Market
	out := archivedMarket{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		CreatorID:   m.CreatorID,
		TotalPool:   m.TotalPool.String(),
		CreatedAt:   m.CreatedAt,
		SettledAt:   m.UpdatedAt,
		Options:     make([]archivedOption, 0, len(agg.Options)),
		Stakes:      make([]archivedStake, 0, len(agg.Stakes)),
	}
	if m.CorrectOptionID != nil {
		out.CorrectOptionID = *m.CorrectOptionID
	}
	for _, o := range agg.Options {
		out.Options = append(out.Options, archivedOption{
			ID:          o.ID,
			Name:        o.Name,
			TotalAmount: o.TotalAmount.String(),
		})
	}
	for _, s := range agg.Stakes {
		st := archivedStake{
			ID:        s.ID,
			AccountID: s.AccountID,
			OptionID:  s.OptionID,
			Amount:    s.Amount.String(),
			CreatedAt: s.CreatedAt,
		}
		if s.Reward != nil {
			reward := s.Reward.String()
			st.Reward = &reward
		}
		out.Stakes = append(out.Stakes, st)
	}
	return out
}
