package ruz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Proton-105/ruz-auth/internal/domain"
	"github.com/Proton-105/ruz-auth/internal/registry"
	"github.com/Proton-105/ruz-auth/pkg/metrics"
)

// Source maps a dictionary type to its registry endpoint.
type Source struct {
	Type     string
	Endpoint string
}

// DefaultSources lists every code list published by the registry.
var DefaultSources = []Source{
	{Type: domain.DictPravnaForma, Endpoint: "pravne-formy"},
	{Type: domain.DictSkNace, Endpoint: "sk-nace"},
	{Type: domain.DictDruhVlastnictva, Endpoint: "druhy-vlastnictva"},
	{Type: domain.DictVelkostOrganizacie, Endpoint: "velkosti-organizacie"},
	{Type: domain.DictKraj, Endpoint: "kraje"},
	{Type: domain.DictOkres, Endpoint: "okresy"},
	{Type: domain.DictSidlo, Endpoint: "sidla"},
}

// DataSources are the zdroj_dat codes. The registry has no endpoint for them.
var DataSources = []domain.DictionaryEntry{
	dataSource("SUSR", "Štatistický úrad Slovenskej republiky", "Statistical Office of the Slovak Republic"),
	dataSource("SP", "Systém štátnej pokladnice", "State Treasury System"),
	dataSource("DC", "DataCentrum", "DataCentre"),
	dataSource("FRSR", "Finančné riaditeľstvo Slovenskej republiky", "Financial Directorate of the Slovak Republic"),
	dataSource("JUS", "Jednotné účtovníctvo štátu", "Unified Accounting of the State"),
	dataSource("OVSR", "Obchodný vestník Slovenskej republiky", "Commercial Bulletin of the Slovak Republic"),
	dataSource("CKS", "Centrálny konsolidačný systém", "Central Consolidation System"),
	dataSource("SAM", "Rozpočtový informačný systém pre samosprávu", "Budget Information System for Self-Government"),
}

func dataSource(code, sk, en string) domain.DictionaryEntry {
	return domain.DictionaryEntry{Type: domain.DictZdrojDat, Code: code, NameSk: sk, NameEn: &en}
}

// Fetcher downloads a registry code list.
type Fetcher interface {
	FetchClassifiers(ctx context.Context, endpoint string) ([]registry.Classifier, error)
}

// Writer persists dictionary entries.
type Writer interface {
	Upsert(ctx context.Context, entry domain.DictionaryEntry) (bool, error)
	InsertIfAbsent(ctx context.Context, entry domain.DictionaryEntry) (bool, error)
}

// SourceResult is the outcome of importing one source.
type SourceResult struct {
	Type     string
	Fetched  int
	Imported int
	Err      error
}

// Report summarises an import run.
type Report struct {
	Sources []SourceResult
	Seeded  int
}

// Imported returns the number of inserted or changed rows across all sources.
func (r Report) Imported() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Imported
	}
	return total
}

// Failed returns the sources that could not be imported.
func (r Report) Failed() []SourceResult {
	var out []SourceResult
	for _, s := range r.Sources {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Importer copies registry code lists into the dictionary table.
type Importer struct {
	fetcher Fetcher
	writer  Writer
	sources []Source
	log     *slog.Logger
}

// NewImporter creates an Importer. Nil sources means DefaultSources.
func NewImporter(fetcher Fetcher, writer Writer, sources []Source, log *slog.Logger) *Importer {
	if sources == nil {
		sources = DefaultSources
	}
	if log == nil {
		log = slog.Default()
	}

	return &Importer{
		fetcher: fetcher,
		writer:  writer,
		sources: sources,
		log:     log.With(slog.String("component", "ruz_importer")),
	}
}

// Import fetches every source in turn. A failing source is recorded in the report
// and the run continues; only context cancellation aborts it.
func (i *Importer) Import(ctx context.Context) (Report, error) {
	var report Report

	for _, src := range i.sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := i.importSource(ctx, src)
		report.Sources = append(report.Sources, res)
		metrics.RecordDictionaryImport(src.Type, res.Imported)
	}

	seeded, err := i.SeedSources(ctx)
	report.Seeded = seeded
	if err != nil {
		return report, err
	}

	i.log.Info("dictionary import finished",
		slog.Int("imported", report.Imported()),
		slog.Int("seeded", report.Seeded),
		slog.Int("failed_sources", len(report.Failed())),
	)

	return report, nil
}

func (i *Importer) importSource(ctx context.Context, src Source) SourceResult {
	res := SourceResult{Type: src.Type}

	items, err := i.fetcher.FetchClassifiers(ctx, src.Endpoint)
	if err != nil {
		i.log.Error("failed to fetch dictionary",
			slog.String("type", src.Type),
			slog.String("endpoint", src.Endpoint),
			slog.Any("error", err),
		)
		res.Err = fmt.Errorf("fetch %s: %w", src.Type, err)
		return res
	}
	res.Fetched = len(items)

	for _, item := range items {
		changed, err := i.writer.Upsert(ctx, domain.DictionaryEntry{
			Type:   src.Type,
			Code:   item.Code,
			NameSk: item.NameSk,
			NameEn: item.NameEn,
		})
		if err != nil {
			i.log.Error("failed to store dictionary entry",
				slog.String("type", src.Type),
				slog.String("code", item.Code),
				slog.Any("error", err),
			)
			res.Err = fmt.Errorf("store %s/%s: %w", src.Type, item.Code, err)
			return res
		}
		if changed {
			res.Imported++
		}
	}

	i.log.Info("dictionary imported",
		slog.String("type", src.Type),
		slog.Int("fetched", res.Fetched),
		slog.Int("imported", res.Imported),
	)

	return res
}

// SeedSources inserts the fixed zdroj_dat entries that are not stored yet.
func (i *Importer) SeedSources(ctx context.Context) (int, error) {
	inserted := 0
	for _, entry := range DataSources {
		ok, err := i.writer.InsertIfAbsent(ctx, entry)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", entry.Code, err)
		}
		if ok {
			inserted++
		}
	}

	metrics.RecordDictionaryImport(domain.DictZdrojDat, inserted)
	return inserted, nil
}
