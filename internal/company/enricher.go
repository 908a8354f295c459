// Package company attaches registry company data to verified users.
package company

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Proton-105/ruz-auth/internal/domain"
	apperrors "github.com/Proton-105/ruz-auth/internal/errors"
	"github.com/Proton-105/ruz-auth/internal/repository"
	"github.com/Proton-105/ruz-auth/pkg/metrics"
)

// Reason classifies an enrichment failure.
type Reason string

const (
	ReasonNotFound Reason = "not_found"
	ReasonUpstream Reason = "upstream"
	ReasonInternal Reason = "internal"
)

// EnrichmentError is returned by EnrichForUser. Callers log it and carry on.
type EnrichmentError struct {
	Reason Reason
	ICO    string
	cause  error
}

func (e *EnrichmentError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("enrich company %s: %s: %v", e.ICO, e.Reason, e.cause)
	}
	return fmt.Sprintf("enrich company %s: %s", e.ICO, e.Reason)
}

func (e *EnrichmentError) Unwrap() error {
	return e.cause
}

// ReasonOf returns the enrichment failure reason of err, or "" when err is not an EnrichmentError.
func ReasonOf(err error) Reason {
	var ee *EnrichmentError
	if errors.As(err, &ee) {
		return ee.Reason
	}
	return ""
}

// Registry is the subset of the registry client used for enrichment.
type Registry interface {
	FindIDsByICO(ctx context.Context, ico string) ([]int64, error)
	GetDetail(ctx context.Context, id int64) ([]byte, error)
}

// Enricher looks a company up in the registry and stores it for a user.
type Enricher struct {
	registry  Registry
	companies repository.CompanyRepository
	log       *slog.Logger
}

func NewEnricher(registry Registry, companies repository.CompanyRepository, log *slog.Logger) *Enricher {
	if log == nil {
		log = slog.Default()
	}

	return &Enricher{
		registry:  registry,
		companies: companies,
		log:       log.With(slog.String("component", "company_enricher")),
	}
}

// EnrichForUser returns the user's company, creating it from the registry on first call.
func (e *Enricher) EnrichForUser(ctx context.Context, user *domain.User, ico string) (*domain.Company, error) {
	ico = strings.TrimSpace(ico)
	if user == nil || ico == "" {
		return nil, &EnrichmentError{Reason: ReasonInternal, ICO: ico, cause: errors.New("user and ico are required")}
	}

	existing, err := e.companies.FindByUserID(ctx, user.ID)
	switch {
	case err == nil:
		metrics.RecordEnrichment("exists")
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, e.fail(ReasonInternal, ico, user.ID, err)
	}

	ids, err := e.registry.FindIDsByICO(ctx, ico)
	if err != nil {
		return nil, e.fail(upstreamReason(err), ico, user.ID, err)
	}
	if len(ids) == 0 {
		return nil, e.fail(ReasonNotFound, ico, user.ID, nil)
	}

	detail, err := e.registry.GetDetail(ctx, ids[0])
	if err != nil {
		return nil, e.fail(upstreamReason(err), ico, user.ID, err)
	}

	company := mapDetail(detail)
	if company.NazovUJ == "" {
		return nil, e.fail(ReasonInternal, ico, user.ID, errors.New("registry detail has no nazovUJ"))
	}

	ruzID := ids[0]
	company.UserID = user.ID
	company.RuzID = &ruzID
	company.ICO = ico

	if err := e.companies.Create(ctx, company); err != nil {
		if errors.Is(err, repository.ErrDuplicatedEntry) {
			stored, findErr := e.companies.FindByUserID(ctx, user.ID)
			if findErr == nil {
				metrics.RecordEnrichment("exists")
				return stored, nil
			}
			err = findErr
		}
		return nil, e.fail(ReasonInternal, ico, user.ID, err)
	}

	metrics.RecordEnrichment("created")
	e.log.Info("company data saved",
		slog.Int64("user_id", user.ID),
		slog.String("ico", ico),
		slog.Int64("company_id", company.ID),
	)

	return company, nil
}

func (e *Enricher) fail(reason Reason, ico string, userID int64, cause error) *EnrichmentError {
	metrics.RecordEnrichment(string(reason))

	attrs := []any{
		slog.String("reason", string(reason)),
		slog.String("ico", ico),
		slog.Int64("user_id", userID),
	}
	if cause != nil {
		attrs = append(attrs, slog.Any("error", cause))
	}

	if reason == ReasonNotFound {
		e.log.Warn("company not found in registry", attrs...)
	} else {
		e.log.Error("company enrichment failed", attrs...)
	}

	return &EnrichmentError{Reason: reason, ICO: ico, cause: cause}
}

func upstreamReason(err error) Reason {
	switch apperrors.KindOf(err) {
	case apperrors.KindUpstreamUnavailable, apperrors.KindUpstreamRejected, apperrors.KindUpstreamProtocol:
		return ReasonUpstream
	default:
		return ReasonInternal
	}
}
