// Package ruz decodes RegisterUZ classification codes and maintains the code dictionary.
package ruz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Proton-105/ruz-auth/internal/domain"
	"github.com/Proton-105/ruz-auth/internal/repository"
	"github.com/Proton-105/ruz-auth/pkg/metrics"
)

const (
	DefaultTTL  = 6 * time.Hour
	keyPrefix   = "ruz.decode."
	dateLayout  = "2006-01-02"
	loadTimeout = 10 * time.Second
)

// typeEscaper keeps the type segment of a cache key free of dots.
var typeEscaper = strings.NewReplacer("%", "%25", ".", "%2E")

// Store resolves a single dictionary entry. It returns repository.ErrNotFound for unknown codes.
type Store interface {
	FindEntry(ctx context.Context, dictType, code string) (*domain.DictionaryEntry, error)
}

// Item is one element of a batch decode request.
type Item struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// Decoder is a read-through cache over the dictionary store.
type Decoder struct {
	store       Store
	cache       Cache
	ttl         time.Duration
	negativeTTL time.Duration
	group       singleflight.Group
	log         *slog.Logger
}

// NewDecoder creates a Decoder. A zero ttl uses DefaultTTL; a zero negativeTTL disables caching of misses.
func NewDecoder(store Store, cache Cache, ttl, negativeTTL time.Duration, log *slog.Logger) *Decoder {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if negativeTTL < 0 {
		negativeTTL = 0
	}
	if log == nil {
		log = slog.Default()
	}

	return &Decoder{
		store:       store,
		cache:       cache,
		ttl:         ttl,
		negativeTTL: negativeTTL,
		log:         log.With(slog.String("component", "ruz_decoder")),
	}
}

// CacheKey returns the cache key of a normalised (type, code) pair. Dots in the type are
// escaped, so the first dot after the prefix always separates type from code.
func CacheKey(dictType, code string) string {
	return keyPrefix + typeEscaper.Replace(dictType) + "." + code
}

// Decode resolves code within dictType. It returns nil when code is empty or unknown.
func (d *Decoder) Decode(ctx context.Context, dictType, code string) (*domain.Decoded, error) {
	dictType = strings.ToLower(strings.TrimSpace(dictType))
	code = strings.TrimSpace(code)

	if code == "" {
		return nil, nil
	}

	key := CacheKey(dictType, code)

	entry, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		metrics.RecordDecodeLookup("cache_error")
		d.log.Warn("decode cache read failed", slog.String("key", key), slog.Any("error", err))
	}
	if ok {
		if entry.Found {
			metrics.RecordDecodeLookup("hit")
		} else {
			metrics.RecordDecodeLookup("negative_hit")
		}
		return entry.decoded(), nil
	}

	// The shared load ignores the cancellation of whichever caller started it.
	ch := d.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return d.load(loadCtx, key, dictType, code)
	})

	select {
	case <-ctx.Done():
		metrics.RecordDecodeLookup("error")
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			metrics.RecordDecodeLookup("error")
			return nil, res.Err
		}
		metrics.RecordDecodeLookup("miss")
		return res.Val.(Entry).decoded(), nil
	}
}

func (d *Decoder) load(ctx context.Context, key, dictType, code string) (Entry, error) {
	row, err := d.store.FindEntry(ctx, dictType, code)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		d.log.Debug("dictionary code not found", slog.String("type", dictType), slog.String("code", code))
		entry := Entry{Found: false, Code: code}
		d.put(ctx, key, entry, d.negativeTTL)
		return entry, nil
	case err != nil:
		d.log.Error("dictionary lookup failed",
			slog.String("type", dictType),
			slog.String("code", code),
			slog.Any("error", err),
		)
		return Entry{}, fmt.Errorf("decode %s/%s: %w", dictType, code, err)
	}

	nameSk := row.NameSk
	entry := Entry{Found: true, Code: row.Code, NameSk: &nameSk, NameEn: row.NameEn}
	d.put(ctx, key, entry, d.ttl)

	return entry, nil
}

func (d *Decoder) put(ctx context.Context, key string, entry Entry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	if err := d.cache.Set(ctx, key, entry, ttl); err != nil {
		d.log.Warn("decode cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// DecodeBatch decodes items independently. The result has the same length and order as items;
// a failed or unknown item yields nil at its position.
func (d *Decoder) DecodeBatch(ctx context.Context, items []Item) []*domain.Decoded {
	out := make([]*domain.Decoded, len(items))
	for i, it := range items {
		decoded, err := d.Decode(ctx, it.Type, it.Code)
		if err != nil {
			d.log.Warn("batch item decode failed",
				slog.String("type", it.Type),
				slog.String("code", it.Code),
				slog.Any("error", err),
			)
			continue
		}
		out[i] = decoded
	}

	return out
}

// DecodeCompany resolves every classification field of c. Lookup failures leave the field nil.
func (d *Decoder) DecodeCompany(ctx context.Context, c *domain.Company) *domain.DecodedCompany {
	if c == nil {
		return nil
	}

	field := func(dictType string, code *string) *domain.Decoded {
		if code == nil {
			return nil
		}
		decoded, err := d.Decode(ctx, dictType, *code)
		if err != nil {
			d.log.Warn("company field decode failed",
				slog.Int64("company_id", c.ID),
				slog.String("type", dictType),
				slog.Any("error", err),
			)
			return nil
		}
		return decoded
	}

	return &domain.DecodedCompany{
		ICO:                  c.ICO,
		NazovUJ:              c.NazovUJ,
		PravnaForma:          field(domain.DictPravnaForma, c.PravnaForma),
		SkNace:               field(domain.DictSkNace, c.SkNace),
		VelkostOrganizacie:   field(domain.DictVelkostOrganizacie, c.VelkostOrganizacie),
		DruhVlastnictva:      field(domain.DictDruhVlastnictva, c.DruhVlastnictva),
		Kraj:                 field(domain.DictKraj, c.Kraj),
		Okres:                field(domain.DictOkres, c.Okres),
		Sidlo:                field(domain.DictSidlo, c.Sidlo),
		ZdrojDat:             field(domain.DictZdrojDat, c.ZdrojDat),
		DatumZalozenia:       formatDate(c.DatumZalozenia),
		DatumPoslednejUpravy: formatDate(c.DatumPoslednejUpravy),
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
