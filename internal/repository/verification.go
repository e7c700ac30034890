package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/bonds-app/bonds/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrVerificationNotFound = errors.New("verification not found")

// VerificationRepository persists pending verification attempts.
//
// "Deleting" outstanding records for an email is implemented as invalidation
// (invalidated_at set) rather than a hard DELETE: invalidated rows no longer
// match any active lookup, but they still count toward the creation-window
// rate limit. Hard removal happens in CleanExpired.
type VerificationRepository interface {
	Create(rec *model.Verification) error
	CreateReplacing(rec *model.Verification) error
	ActiveByEmail(email, channel string) (*model.Verification, error)
	AllActive() ([]model.Verification, error)
	CountByEmailSince(email string, since time.Time) (int, error)
	InvalidateByEmail(email string) error
	MarkUsed(id string) (*model.Verification, error)
	IncrementAttempts(id string) (int, error)
	CleanExpired(retention time.Duration) (int64, error)
}

type verificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

const insertVerification = `
	INSERT INTO verifications (id, email, secret_hash, kind, channel, expires_at, attempts, pending_name, pending_password_hash, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func fillDefaults(rec *model.Verification) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
}

func (r *verificationRepository) Create(rec *model.Verification) error {
	fillDefaults(rec)

	_, err := r.db.Exec(insertVerification,
		rec.ID,
		rec.Email,
		rec.SecretHash,
		rec.Kind,
		rec.Channel,
		rec.ExpiresAt,
		rec.Attempts,
		rec.PendingName,
		rec.PendingPasswordHash,
		rec.CreatedAt,
	)
	return err
}

// CreateReplacing invalidates every outstanding record for the email and
// inserts the new one in a single transaction, so two concurrent requests
// cannot leave more than one active secret behind.
func (r *verificationRepository) CreateReplacing(rec *model.Verification) error {
	fillDefaults(rec)

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE verifications SET invalidated_at = $1 WHERE email = $2 AND used_at IS NULL AND invalidated_at IS NULL`,
		time.Now(), rec.Email,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(insertVerification,
		rec.ID,
		rec.Email,
		rec.SecretHash,
		rec.Kind,
		rec.Channel,
		rec.ExpiresAt,
		rec.Attempts,
		rec.PendingName,
		rec.PendingPasswordHash,
		rec.CreatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ActiveByEmail returns the newest active record for the email on the given
// channel. The channel filter keeps the flows apart: a link token must never
// be consumable through the OTP path, where the attempts cap does not apply.
func (r *verificationRepository) ActiveByEmail(email, channel string) (*model.Verification, error) {
	rec := &model.Verification{}
	query := `
		SELECT * FROM verifications
		WHERE email = $1 AND channel = $2 AND used_at IS NULL AND invalidated_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.Get(rec, query, email, channel, time.Now())
	if err == sql.ErrNoRows {
		return nil, ErrVerificationNotFound
	}

	return rec, err
}

func (r *verificationRepository) AllActive() ([]model.Verification, error) {
	var recs []model.Verification
	query := `
		SELECT * FROM verifications
		WHERE used_at IS NULL AND invalidated_at IS NULL AND expires_at > $1
		ORDER BY created_at DESC
	`

	err := r.db.Select(&recs, query, time.Now())
	return recs, err
}

// CountByEmailSince counts records created within the trailing window,
// regardless of used/expired/invalidated state.
func (r *verificationRepository) CountByEmailSince(email string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM verifications WHERE email = $1 AND created_at > $2`

	err := r.db.Get(&count, query, email, since)
	return count, err
}

func (r *verificationRepository) InvalidateByEmail(email string) error {
	query := `UPDATE verifications SET invalidated_at = $1 WHERE email = $2 AND used_at IS NULL AND invalidated_at IS NULL`

	_, err := r.db.Exec(query, time.Now(), email)
	return err
}

// MarkUsed atomically consumes the record. Only the first caller succeeds;
// a second caller gets ErrVerificationNotFound, which prevents replay.
func (r *verificationRepository) MarkUsed(id string) (*model.Verification, error) {
	rec := &model.Verification{}
	now := time.Now()

	query := `
		UPDATE verifications
		SET used_at = $1
		WHERE id = $2 AND used_at IS NULL AND invalidated_at IS NULL AND expires_at > $3
		RETURNING *
	`

	err := r.db.Get(rec, query, now, id, now)
	if err == sql.ErrNoRows {
		return nil, ErrVerificationNotFound
	}
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func (r *verificationRepository) IncrementAttempts(id string) (int, error) {
	var attempts int
	query := `UPDATE verifications SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`

	err := r.db.Get(&attempts, query, id)
	if err == sql.ErrNoRows {
		return 0, ErrVerificationNotFound
	}
	return attempts, err
}

// CleanExpired removes records past their expiry, and consumed or invalidated
// records older than the retention window. Periodic maintenance, not
// latency-critical.
func (r *verificationRepository) CleanExpired(retention time.Duration) (int64, error) {
	now := time.Now()
	cutoff := now.Add(-retention)

	query := `
		DELETE FROM verifications
		WHERE expires_at < $1
		   OR ((used_at IS NOT NULL OR invalidated_at IS NOT NULL) AND created_at < $2)
	`
	result, err := r.db.Exec(query, now, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
