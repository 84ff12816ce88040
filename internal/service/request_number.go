package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/repository"

	"gorm.io/gorm"
)

// RequestNumberGenerator issues the human-readable identifier a purchase
// request receives at first submission, e.g. "PR-2026-00042".
type RequestNumberGenerator interface {
	Generate(ctx context.Context) (string, error)
}

type requestNumberGenerator struct {
	db       *gorm.DB
	requests repository.PurchaseRequestRepository
}

func NewRequestNumberGenerator(db *gorm.DB, requests repository.PurchaseRequestRepository) RequestNumberGenerator {
	return &requestNumberGenerator{db: db, requests: requests}
}

// Generate produces the next number in a year-scoped sequence. Callers must
// run it inside the submit transaction; the advisory lock serializes
// concurrent submissions so two requests cannot draw the same number. The
// next value comes from the highest issued suffix, so numbers freed by
// deleted requests are never reissued while a higher one is in use.
func (g *requestNumberGenerator) Generate(ctx context.Context) (string, error) {
	prefix := "PR-" + time.Now().Format("2006") + "-"

	db := repository.GetDB(ctx, g.db)
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
			return "", fmt.Errorf("failed to serialize request number generation: %w", err)
		}
	}

	max, err := g.requests.MaxNumberSuffix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to read request number sequence: %w", err)
	}

	return fmt.Sprintf("%s%05d", prefix, max+1), nil
}
