package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Proton-105/ruz-auth/internal/domain"
)

// CompanyRepository defines persistence operations for registry companies.
type CompanyRepository interface {
	FindByUserID(ctx context.Context, userID int64) (*domain.Company, error)
	FindByID(ctx context.Context, id int64) (*domain.Company, error)
	// Create inserts company. ErrDuplicatedEntry when the user already owns one.
	Create(ctx context.Context, company *domain.Company) error
}

type companyRow struct {
	ID                   int64         `db:"id"`
	UserID               int64         `db:"user_id"`
	RuzID                *int64        `db:"ruz_id"`
	ICO                  string        `db:"ico"`
	DIC                  *string       `db:"dic"`
	SID                  *string       `db:"sid"`
	NazovUJ              string        `db:"nazov_uj"`
	Mesto                *string       `db:"mesto"`
	Ulica                *string       `db:"ulica"`
	PSC                  *string       `db:"psc"`
	DatumZalozenia       *time.Time    `db:"datum_zalozenia"`
	DatumZrusenia        *time.Time    `db:"datum_zrusenia"`
	PravnaForma          *string       `db:"pravna_forma"`
	SkNace               *string       `db:"sk_nace"`
	VelkostOrganizacie   *string       `db:"velkost_organizacie"`
	DruhVlastnictva      *string       `db:"druh_vlastnictva"`
	Kraj                 *string       `db:"kraj"`
	Okres                *string       `db:"okres"`
	Sidlo                *string       `db:"sidlo"`
	Konsolidovana        *bool         `db:"konsolidovana"`
	IDUctovnychZavierok  pq.Int64Array `db:"id_uctovnych_zavierok"`
	IDVyrocnychSprav     pq.Int64Array `db:"id_vyrocnych_sprav"`
	ZdrojDat             *string       `db:"zdroj_dat"`
	DatumPoslednejUpravy *time.Time    `db:"datum_poslednej_upravy"`
	CreatedAt            time.Time     `db:"created_at"`
}

func (r companyRow) toDomain() *domain.Company {
	return &domain.Company{
		ID:                   r.ID,
		UserID:               r.UserID,
		RuzID:                r.RuzID,
		ICO:                  r.ICO,
		DIC:                  r.DIC,
		SID:                  r.SID,
		NazovUJ:              r.NazovUJ,
		Mesto:                r.Mesto,
		Ulica:                r.Ulica,
		PSC:                  r.PSC,
		DatumZalozenia:       r.DatumZalozenia,
		DatumZrusenia:        r.DatumZrusenia,
		PravnaForma:          r.PravnaForma,
		SkNace:               r.SkNace,
		VelkostOrganizacie:   r.VelkostOrganizacie,
		DruhVlastnictva:      r.DruhVlastnictva,
		Kraj:                 r.Kraj,
		Okres:                r.Okres,
		Sidlo:                r.Sidlo,
		Konsolidovana:        r.Konsolidovana,
		IDUctovnychZavierok:  []int64(r.IDUctovnychZavierok),
		IDVyrocnychSprav:     []int64(r.IDVyrocnychSprav),
		ZdrojDat:             r.ZdrojDat,
		DatumPoslednejUpravy: r.DatumPoslednejUpravy,
		CreatedAt:            r.CreatedAt,
	}
}

func rowFromCompany(c *domain.Company) companyRow {
	return companyRow{
		UserID:               c.UserID,
		RuzID:                c.RuzID,
		ICO:                  c.ICO,
		DIC:                  c.DIC,
		SID:                  c.SID,
		NazovUJ:              c.NazovUJ,
		Mesto:                c.Mesto,
		Ulica:                c.Ulica,
		PSC:                  c.PSC,
		DatumZalozenia:       c.DatumZalozenia,
		DatumZrusenia:        c.DatumZrusenia,
		PravnaForma:          c.PravnaForma,
		SkNace:               c.SkNace,
		VelkostOrganizacie:   c.VelkostOrganizacie,
		DruhVlastnictva:      c.DruhVlastnictva,
		Kraj:                 c.Kraj,
		Okres:                c.Okres,
		Sidlo:                c.Sidlo,
		Konsolidovana:        c.Konsolidovana,
		IDUctovnychZavierok:  pq.Int64Array(c.IDUctovnychZavierok),
		IDVyrocnychSprav:     pq.Int64Array(c.IDVyrocnychSprav),
		ZdrojDat:             c.ZdrojDat,
		DatumPoslednejUpravy: c.DatumPoslednejUpravy,
	}
}

type companyRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewCompanyRepository creates a new SQL-backed company repository.
func NewCompanyRepository(db *sqlx.DB, log *slog.Logger) CompanyRepository {
	if log == nil {
		log = slog.Default()
	}

	return &companyRepository{
		db:  db,
		log: log,
	}
}

const companyColumns = `id, user_id, ruz_id, ico, dic, sid, nazov_uj, mesto, ulica, psc,
	datum_zalozenia, datum_zrusenia, pravna_forma, sk_nace, velkost_organizacie,
	druh_vlastnictva, kraj, okres, sidlo, konsolidovana, id_uctovnych_zavierok,
	id_vyrocnych_sprav, zdroj_dat, datum_poslednej_upravy, created_at`

func (r *companyRepository) FindByUserID(ctx context.Context, userID int64) (*domain.Company, error) {
	return r.findOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE user_id = $1`, userID)
}

func (r *companyRepository) FindByID(ctx context.Context, id int64) (*domain.Company, error) {
	return r.findOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
}

func (r *companyRepository) findOne(ctx context.Context, query string, arg int64) (*domain.Company, error) {
	var row companyRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select company: %w", err)
	}

	return row.toDomain(), nil
}

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	const query = `
		INSERT INTO companies (
			user_id, ruz_id, ico, dic, sid, nazov_uj, mesto, ulica, psc,
			datum_zalozenia, datum_zrusenia, pravna_forma, sk_nace, velkost_organizacie,
			druh_vlastnictva, kraj, okres, sidlo, konsolidovana, id_uctovnych_zavierok,
			id_vyrocnych_sprav, zdroj_dat, datum_poslednej_upravy
		) VALUES (
			:user_id, :ruz_id, :ico, :dic, :sid, :nazov_uj, :mesto, :ulica, :psc,
			:datum_zalozenia, :datum_zrusenia, :pravna_forma, :sk_nace, :velkost_organizacie,
			:druh_vlastnictva, :kraj, :okres, :sidlo, :konsolidovana, :id_uctovnych_zavierok,
			:id_vyrocnych_sprav, :zdroj_dat, :datum_poslednej_upravy
		)
		RETURNING id, created_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, rowFromCompany(company))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatedEntry
		}

		if r.log != nil {
			r.log.Error("failed to create company",
				slog.Int64("user_id", company.UserID),
				slog.String("ico", company.ICO),
				slog.Any("error", err),
			)
		}
		return fmt.Errorf("insert company: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&company.ID, &company.CreatedAt); err != nil {
			return fmt.Errorf("scan inserted company: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatedEntry
		}
		return fmt.Errorf("insert company: %w", err)
	}

	return nil
}
