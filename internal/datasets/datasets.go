// Package datasets persists uploaded dataset files per owner.
package datasets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cache/keys"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cache/redisstore"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/observability"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/events"
)

var (
	ErrUnauthorized = errors.New("Unauthorized")
	ErrNotFound     = errors.New("File not found")
	ErrNotCSV       = errors.New("File must be a CSV")
)

// Handle describes one stored dataset without its content.
type Handle struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FileName  string    `json:"fileName"`
	FileSize  int       `json:"fileSize"`
	CreatedAt time.Time `json:"createdAt"`
}

// Backend is the subset of redisstore.Client the store needs.
type Backend interface {
	HSetWithIndex(ctx context.Context, key string, fields map[string]any, index string, score float64, member string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HMGetMany(ctx context.Context, keys []string, fields ...string) ([]map[string]string, error)
	ZRevRange(ctx context.Context, key string) ([]string, error)
	DelWithIndex(ctx context.Context, key, index, member string) error
}

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type Options struct {
	Prefix    string
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

type Store struct {
	be     Backend
	prefix string
	pub    Publisher
	log    *slog.Logger
	now    func() time.Time
}

const (
	fOwner     = "owner"
	fName      = "name"
	fFileName  = "file_name"
	fFileSize  = "file_size"
	fCreatedAt = "created_at"
	fData      = "data"
)

var metaFields = []string{fOwner, fName, fFileName, fFileSize, fCreatedAt}

func New(be Backend, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Prefix == "" {
		opts.Prefix = "geoinsights"
	}
	return &Store{be: be, prefix: opts.Prefix, pub: opts.Publisher, log: opts.Logger, now: opts.Now}
}

// Save stores data for owner. An empty name defaults to the file name
// without its .csv extension.
func (s *Store) Save(ctx context.Context, owner, name, fileName string, data []byte) (h Handle, err error) {
	defer func() { observability.ObserveDatasetOp("save", err) }()

	if strings.TrimSpace(owner) == "" {
		return Handle{}, ErrUnauthorized
	}
	if !strings.HasSuffix(strings.ToLower(fileName), ".csv") {
		return Handle{}, ErrNotCSV
	}
	if strings.TrimSpace(name) == "" {
		name = strings.Replace(fileName, ".csv", "", 1)
	}

	h = Handle{
		ID:        uuid.NewString(),
		Name:      name,
		FileName:  fileName,
		FileSize:  len(data),
		CreatedAt: s.now().UTC(),
	}
	fields := map[string]any{
		fOwner:     owner,
		fName:      h.Name,
		fFileName:  h.FileName,
		fFileSize:  h.FileSize,
		fCreatedAt: h.CreatedAt.Format(time.RFC3339Nano),
		fData:      data,
	}
	score := float64(h.CreatedAt.UnixMicro())
	if err := s.be.HSetWithIndex(ctx, keys.Dataset(s.prefix, h.ID), fields, keys.OwnerIndex(s.prefix, owner), score, h.ID); err != nil {
		return Handle{}, fmt.Errorf("save dataset: %w", err)
	}
	s.publish(ctx, events.OpSaved, owner, h.ID)
	return h, nil
}

// ListFor returns owner's datasets, newest first.
func (s *Store) ListFor(ctx context.Context, owner string) (out []Handle, err error) {
	defer func() { observability.ObserveDatasetOp("list", err) }()

	if strings.TrimSpace(owner) == "" {
		return nil, ErrUnauthorized
	}
	ids, err := s.be.ZRevRange(ctx, keys.OwnerIndex(s.prefix, owner))
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	ks := make([]string, len(ids))
	for i, id := range ids {
		ks[i] = keys.Dataset(s.prefix, id)
	}
	rows, err := s.be.HMGetMany(ctx, ks, metaFields...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	out = make([]Handle, 0, len(rows))
	for i, row := range rows {
		// index entries can outlive a hash removed out of band
		if row == nil || row[fOwner] != owner {
			continue
		}
		out = append(out, toHandle(ids[i], row))
	}
	return out, nil
}

// Fetch returns the stored bytes of id. A dataset owned by someone else is
// reported as not found.
func (s *Store) Fetch(ctx context.Context, owner, id string) (data []byte, h Handle, err error) {
	defer func() { observability.ObserveDatasetOp("fetch", err) }()

	row, err := s.lookup(ctx, owner, id)
	if err != nil {
		return nil, Handle{}, err
	}
	return []byte(row[fData]), toHandle(id, row), nil
}

func (s *Store) Delete(ctx context.Context, owner, id string) (err error) {
	defer func() { observability.ObserveDatasetOp("delete", err) }()

	if _, err := s.lookup(ctx, owner, id); err != nil {
		return err
	}
	if err := s.be.DelWithIndex(ctx, keys.Dataset(s.prefix, id), keys.OwnerIndex(s.prefix, owner), id); err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	s.publish(ctx, events.OpDeleted, owner, id)
	return nil
}

func (s *Store) lookup(ctx context.Context, owner, id string) (map[string]string, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	row, err := s.be.HGetAll(ctx, keys.Dataset(s.prefix, id))
	if errors.Is(err, redisstore.ErrNil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	if row[fOwner] != owner {
		return nil, ErrNotFound
	}
	return row, nil
}

// publish is best effort: the mutation is already committed.
func (s *Store) publish(ctx context.Context, op, owner, id string) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, events.New(op, owner, id, s.now())); err != nil {
		s.log.Warn("dataset event publish failed", "op", op, "handle", id, "err", err)
	}
}

func toHandle(id string, row map[string]string) Handle {
	size, _ := strconv.Atoi(row[fFileSize])
	created, _ := time.Parse(time.RFC3339Nano, row[fCreatedAt])
	return Handle{
		ID:        id,
		Name:      row[fName],
		FileName:  row[fFileName],
		FileSize:  size,
		CreatedAt: created,
	}
}
