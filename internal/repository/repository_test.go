package repository

import (
	"context"
	"database/sql/driver"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/ruz-auth/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return sqlx.NewDb(db, "postgres"), mock
}

var userCols = []string{"id", "phone", "password_hash", "first_name", "last_name", "status", "is_verified", "created_at", "updated_at"}

func TestUserRepository_FindByPhone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, testLogger())
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE phone = $1")).
		WithArgs("+421900111222").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(7, "+421900111222", "hash", "Jana", "Nova", "pending", false, now, now))

	user, err := repo.FindByPhone(context.Background(), "+421900111222")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, domain.UserStatusPending, user.Status)
	assert.False(t, user.IsVerified)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE phone = $1")).
		WithArgs("+421900000000").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err = repo.FindByPhone(context.Background(), "+421900000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_CreateMapsUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("+421900111222", "hash", "Jana", "Nova", "pending", false).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uniq_users_phone"})

	err := repo.Create(context.Background(), domain.NewPendingUser("+421900111222", "hash", "Jana", "Nova"))
	assert.ErrorIs(t, err, ErrDuplicatedEntry)
}

func TestUserRepository_CreateFillsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, testLogger())
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, now, now))

	user := domain.NewPendingUser("+421900111222", "hash", "Jana", "Nova")
	require.NoError(t, repo.Create(context.Background(), user))
	assert.Equal(t, int64(11), user.ID)
	assert.Equal(t, now, user.CreatedAt)
}

func TestUserRepository_CompareAndSetStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, testLogger())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs(int64(7), "pending", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs(int64(7), "pending", "active").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.CompareAndSetStatus(context.Background(), 7, domain.UserStatusPending, domain.UserStatusActive)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.CompareAndSetStatus(context.Background(), 7, domain.UserStatusPending, domain.UserStatusActive)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUserRepository_UpdatePasswordHashUnknownUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, testLogger())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash")).
		WithArgs(int64(99), "newhash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePasswordHash(context.Background(), 99, "newhash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompanyRepository_FindByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCompanyRepository(db, testLogger())
	founded := time.Date(2010, 5, 4, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	cols := []string{
		"id", "user_id", "ruz_id", "ico", "dic", "sid", "nazov_uj", "mesto", "ulica", "psc",
		"datum_zalozenia", "datum_zrusenia", "pravna_forma", "sk_nace", "velkost_organizacie",
		"druh_vlastnictva", "kraj", "okres", "sidlo", "konsolidovana", "id_uctovnych_zavierok",
		"id_vyrocnych_sprav", "zdroj_dat", "datum_poslednej_upravy", "created_at",
	}
	values := []driver.Value{
		3, 7, 1234, "12345678", nil, nil, "ACME s.r.o.", "Bratislava", nil, nil,
		founded, nil, "112", "62010", nil,
		nil, "1", nil, nil, true, []byte("{10,20}"),
		nil, "SUSR", nil, now,
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM companies WHERE user_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(values...))

	company, err := repo.FindByUserID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "ACME s.r.o.", company.NazovUJ)
	require.NotNil(t, company.RuzID)
	assert.Equal(t, int64(1234), *company.RuzID)
	assert.Nil(t, company.DIC)
	assert.Equal(t, []int64{10, 20}, company.IDUctovnychZavierok)
	assert.Empty(t, company.IDVyrocnychSprav)
	require.NotNil(t, company.Konsolidovana)
	assert.True(t, *company.Konsolidovana)
	assert.Equal(t, founded, *company.DatumZalozenia)
}

func TestCompanyRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCompanyRepository(db, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO companies")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uniq_companies_user"})

	err := repo.Create(context.Background(), &domain.Company{UserID: 7, ICO: "12345678", NazovUJ: "ACME"})
	assert.ErrorIs(t, err, ErrDuplicatedEntry)
}

func TestDictionaryRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDictionaryRepository(db, testLogger())

	entry := domain.DictionaryEntry{Type: domain.DictKraj, Code: "1", NameSk: "Bratislavský kraj"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ruz_dictionary")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ruz_dictionary")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.Upsert(context.Background(), entry)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Upsert(context.Background(), entry)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDictionaryRepository_FindEntry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDictionaryRepository(db, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("FROM ruz_dictionary WHERE type = $1 AND code = $2")).
		WithArgs("kraj", "1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "code", "name_sk", "name_en"}).
			AddRow(1, "kraj", "1", "Bratislavský kraj", nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM ruz_dictionary WHERE type = $1 AND code = $2")).
		WithArgs("kraj", "99").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "code", "name_sk", "name_en"}))

	entry, err := repo.FindEntry(context.Background(), "kraj", "1")
	require.NoError(t, err)
	assert.Equal(t, "Bratislavský kraj", entry.NameSk)
	assert.Nil(t, entry.NameEn)

	_, err = repo.FindEntry(context.Background(), "kraj", "99")
	assert.ErrorIs(t, err, ErrNotFound)
}
