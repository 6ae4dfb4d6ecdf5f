package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// QRCodeRepository looks up location QR codes for informational linking.
type QRCodeRepository struct {
	db *sqlx.DB
}

// NewQRCodeRepository constructs the repository.
func NewQRCodeRepository(db *sqlx.DB) *QRCodeRepository {
	return &QRCodeRepository{db: db}
}

// FindActiveByLocation returns the newest active QR code id for locationID, or nil.
func (r *QRCodeRepository) FindActiveByLocation(ctx context.Context, locationID string) (*string, error) {
	const query = `SELECT id FROM qr_codes WHERE location_id = $1 AND active ORDER BY created_at DESC LIMIT 1`
	var id string
	if err := r.db.GetContext(ctx, &id, query, locationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find qr code for location %s: %w", locationID, err)
	}
	return &id, nil
}
