package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/25x8/bonus-approvals/internal/models"
	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
)

const uniqueViolation = "23505"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// pgQueries runs against either the pool or an open transaction. Inside a
// transaction single-row reads lock the row until commit.
type pgQueries struct {
	db   dbtx
	inTx bool
}

type PostgresRepository struct {
	*pgQueries
	db *sql.DB
}

func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

func (r *PostgresRepository) InitDB(databaseURI string) error {
	db, err := sql.Open("pgx", databaseURI)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	r.db = db
	r.pgQueries = &pgQueries{db: db}

	if err := r.createTables(); err != nil {
		db.Close()
		return err
	}

	return nil
}

func (r *PostgresRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *PostgresRepository) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&pgQueries{db: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PostgresRepository) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			full_name VARCHAR(255) NOT NULL,
			username VARCHAR(255) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'member',
			balance NUMERIC(14, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			total_points BIGINT NOT NULL DEFAULT 0 CHECK (total_points >= 0),
			direct_points BIGINT NOT NULL DEFAULT 0 CHECK (direct_points >= 0),
			indirect_points BIGINT NOT NULL DEFAULT 0 CHECK (indirect_points >= 0),
			training_bonus_balance NUMERIC(14, 2) NOT NULL DEFAULT 0 CHECK (training_bonus_balance >= 0),
			parent_id BIGINT REFERENCES users(id),
			ref_per NUMERIC(6, 4) NOT NULL DEFAULT 0,
			ref_parent_per NUMERIC(6, 4) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS training_bonus_claims (
			id UUID PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			transaction_id VARCHAR(255) NOT NULL,
			transaction_amount NUMERIC(14, 2) NOT NULL,
			gateway VARCHAR(100) NOT NULL,
			image TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS training_bonus_approved (
			id UUID PRIMARY KEY,
			claim_id UUID UNIQUE NOT NULL,
			username VARCHAR(255) NOT NULL,
			transaction_id VARCHAR(255) NOT NULL,
			transaction_amount NUMERIC(14, 2) NOT NULL,
			gateway VARCHAR(100) NOT NULL,
			image TEXT NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL,
			bonus NUMERIC(14, 2) NOT NULL,
			points BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL,
			decided_by VARCHAR(255) NOT NULL,
			decided_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS training_bonus_rejected (
			id UUID PRIMARY KEY,
			claim_id UUID UNIQUE NOT NULL,
			username VARCHAR(255) NOT NULL,
			transaction_id VARCHAR(255) NOT NULL,
			transaction_amount NUMERIC(14, 2) NOT NULL,
			gateway VARCHAR(100) NOT NULL,
			image TEXT NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL,
			feedback TEXT NOT NULL,
			status VARCHAR(20) NOT NULL,
			decided_by VARCHAR(255) NOT NULL,
			decided_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS referral_claims (
			id UUID PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			transaction_id VARCHAR(255) NOT NULL,
			transaction_amount NUMERIC(14, 2) NOT NULL,
			gateway VARCHAR(100) NOT NULL,
			plan_name VARCHAR(255) NOT NULL,
			plan_price NUMERIC(14, 2) NOT NULL,
			direct_point BIGINT NOT NULL,
			indirect_point BIGINT NOT NULL,
			advance_points BIGINT NOT NULL,
			ref_per NUMERIC(6, 4) NOT NULL,
			ref_parent_per NUMERIC(6, 4) NOT NULL,
			referrer_pin VARCHAR(255) UNIQUE NOT NULL,
			image_path TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS referral_approved (
			id UUID PRIMARY KEY,
			claim_id UUID UNIQUE NOT NULL,
			` + referralSnapshotColumnsDDL + `,
			self_bonus NUMERIC(14, 2) NOT NULL,
			parent_bonus NUMERIC(14, 2) NOT NULL,
			parent_username VARCHAR(255) NOT NULL,
			direct_points BIGINT NOT NULL,
			indirect_points BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL,
			decided_by VARCHAR(255) NOT NULL,
			decided_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS referral_rejected (
			id UUID PRIMARY KEY,
			claim_id UUID UNIQUE NOT NULL,
			` + referralSnapshotColumnsDDL + `,
			feedback TEXT NOT NULL,
			status VARCHAR(20) NOT NULL,
			decided_by VARCHAR(255) NOT NULL,
			decided_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pending_registrations (
			id UUID PRIMARY KEY,
			claim_id UUID UNIQUE NOT NULL,
			referrer_username VARCHAR(255) NOT NULL,
			referrer_pin VARCHAR(255) NOT NULL,
			plan_name VARCHAR(255) NOT NULL,
			plan_price NUMERIC(14, 2) NOT NULL,
			direct_point BIGINT NOT NULL,
			indirect_point BIGINT NOT NULL,
			advance_points BIGINT NOT NULL,
			ref_per NUMERIC(6, 4) NOT NULL,
			ref_parent_per NUMERIC(6, 4) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// referral claim snapshot as stored in both referral decision tables
const referralSnapshotColumnsDDL = `username VARCHAR(255) NOT NULL,
			transaction_id VARCHAR(255) NOT NULL,
			transaction_amount NUMERIC(14, 2) NOT NULL,
			gateway VARCHAR(100) NOT NULL,
			plan_name VARCHAR(255) NOT NULL,
			plan_price NUMERIC(14, 2) NOT NULL,
			direct_point BIGINT NOT NULL,
			indirect_point BIGINT NOT NULL,
			advance_points BIGINT NOT NULL,
			ref_per NUMERIC(6, 4) NOT NULL,
			ref_parent_per NUMERIC(6, 4) NOT NULL,
			referrer_pin VARCHAR(255) NOT NULL,
			image_path TEXT NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL`

const (
	userColumns = `id, full_name, username, email, password_hash, role, balance, total_points,
		direct_points, indirect_points, training_bonus_balance, parent_id, ref_per, ref_parent_per, created_at`

	trainingClaimColumns = `id, username, transaction_id, transaction_amount, gateway, image, status, created_at`

	referralClaimColumns = `id, username, transaction_id, transaction_amount, gateway, plan_name, plan_price,
		direct_point, indirect_point, advance_points, ref_per, ref_parent_per, referrer_pin, image_path, status, created_at`

	referralSnapshotColumns = `claim_id, username, transaction_id, transaction_amount, gateway, plan_name, plan_price,
		direct_point, indirect_point, advance_points, ref_per, ref_parent_per, referrer_pin, image_path, requested_at`
)

func (q *pgQueries) lockClause() string {
	if q.inTx {
		return " FOR UPDATE"
	}
	return ""
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var parentID sql.NullInt64
	err := row.Scan(
		&user.ID, &user.FullName, &user.Username, &user.Email, &user.PasswordHash, &user.Role,
		&user.Balance, &user.TotalPoints, &user.DirectPoints, &user.IndirectPoints,
		&user.TrainingBonusBalance, &parentID, &user.RefPer, &user.RefParentPer, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		id := parentID.Int64
		user.ParentID = &id
	}
	return user, nil
}

func (q *pgQueries) getUser(ctx context.Context, where string, args ...interface{}) (*models.User, error) {
	user, err := scanUser(q.db.QueryRowContext(
		ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where+q.lockClause(),
		args...,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (q *pgQueries) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(
		ctx,
		`INSERT INTO users (full_name, username, email, password_hash, role, balance, total_points,
			direct_points, indirect_points, training_bonus_balance, parent_id, ref_per, ref_parent_per, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		user.FullName, user.Username, user.Email, user.PasswordHash, user.Role, user.Balance,
		user.TotalPoints, user.DirectPoints, user.IndirectPoints, user.TrainingBonusBalance,
		user.ParentID, user.RefPer, user.RefParentPer, user.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

func (q *pgQueries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return q.getUser(ctx, "id = $1", id)
}

func (q *pgQueries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return q.getUser(ctx, "username = $1", username)
}

func (q *pgQueries) GetUserByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	return q.getUser(ctx, "username = $1 OR email = $1 ORDER BY id LIMIT 1", usernameOrEmail)
}

func (q *pgQueries) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (q *pgQueries) UpdateUserLedger(ctx context.Context, user *models.User) error {
	res, err := q.db.ExecContext(
		ctx,
		`UPDATE users
		 SET balance = $1, total_points = $2, direct_points = $3, indirect_points = $4, training_bonus_balance = $5
		 WHERE id = $6`,
		user.Balance, user.TotalPoints, user.DirectPoints, user.IndirectPoints, user.TrainingBonusBalance, user.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTrainingClaim(row scanner) (*models.TrainingBonusClaim, error) {
	c := &models.TrainingBonusClaim{}
	err := row.Scan(&c.ID, &c.Username, &c.TransactionID, &c.TransactionAmount, &c.Gateway, &c.Image, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (q *pgQueries) CreateTrainingBonusClaim(ctx context.Context, c *models.TrainingBonusClaim) error {
	_, err := q.db.ExecContext(
		ctx,
		"INSERT INTO training_bonus_claims ("+trainingClaimColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		c.ID, c.Username, c.TransactionID, c.TransactionAmount, c.Gateway, c.Image, c.Status, c.CreatedAt,
	)
	return mapWriteError(err)
}

func (q *pgQueries) GetTrainingBonusClaim(ctx context.Context, id string) (*models.TrainingBonusClaim, error) {
	c, err := scanTrainingClaim(q.db.QueryRowContext(
		ctx,
		"SELECT "+trainingClaimColumns+" FROM training_bonus_claims WHERE id = $1"+q.lockClause(),
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (q *pgQueries) ListPendingTrainingBonusClaims(ctx context.Context) ([]models.TrainingBonusClaim, error) {
	rows, err := q.db.QueryContext(
		ctx,
		"SELECT "+trainingClaimColumns+" FROM training_bonus_claims WHERE status = $1 ORDER BY created_at",
		models.StatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []models.TrainingBonusClaim
	for rows.Next() {
		c, err := scanTrainingClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (q *pgQueries) DeleteTrainingBonusClaim(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM training_bonus_claims WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (q *pgQueries) CreateTrainingBonusApproved(ctx context.Context, rec *models.TrainingBonusApproved) error {
	c := rec.Claim
	_, err := q.db.ExecContext(
		ctx,
		`INSERT INTO training_bonus_approved (id, claim_id, username, transaction_id, transaction_amount, gateway,
			image, requested_at, bonus, points, status, decided_by, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, c.ID, c.Username, c.TransactionID, c.TransactionAmount, c.Gateway, c.Image, c.CreatedAt,
		rec.Bonus, rec.Points, rec.Status, rec.DecidedBy, rec.DecidedAt,
	)
	return mapWriteError(err)
}

func (q *pgQueries) CreateTrainingBonusRejected(ctx context.Context, rec *models.TrainingBonusRejected) error {
	c := rec.Claim
	_, err := q.db.ExecContext(
		ctx,
		`INSERT INTO training_bonus_rejected (id, claim_id, username, transaction_id, transaction_amount, gateway,
			image, requested_at, feedback, status, decided_by, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, c.ID, c.Username, c.TransactionID, c.TransactionAmount, c.Gateway, c.Image, c.CreatedAt,
		rec.Feedback, rec.Status, rec.DecidedBy, rec.DecidedAt,
	)
	return mapWriteError(err)
}

func (q *pgQueries) ListTrainingBonusApproved(ctx context.Context) ([]models.TrainingBonusApproved, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT id, claim_id, username, transaction_id, transaction_amount, gateway, image, requested_at,
			bonus, points, status, decided_by, decided_at
		 FROM training_bonus_approved
		 ORDER BY decided_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.TrainingBonusApproved
	for rows.Next() {
		var rec models.TrainingBonusApproved
		c := &rec.Claim
		if err := rows.Scan(
			&rec.ID, &c.ID, &c.Username, &c.TransactionID, &c.TransactionAmount, &c.Gateway, &c.Image, &c.CreatedAt,
			&rec.Bonus, &rec.Points, &rec.Status, &rec.DecidedBy, &rec.DecidedAt,
		); err != nil {
			return nil, err
		}
		c.Status = models.StatusPending
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (q *pgQueries) ListTrainingBonusRejected(ctx context.Context) ([]models.TrainingBonusRejected, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT id, claim_id, username, transaction_id, transaction_amount, gateway, image, requested_at,
			feedback, status, decided_by, decided_at
		 FROM training_bonus_rejected
		 ORDER BY decided_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.TrainingBonusRejected
	for rows.Next() {
		var rec models.TrainingBonusRejected
		c := &rec.Claim
		if err := rows.Scan(
			&rec.ID, &c.ID, &c.Username, &c.TransactionID, &c.TransactionAmount, &c.Gateway, &c.Image, &c.CreatedAt,
			&rec.Feedback, &rec.Status, &rec.DecidedBy, &rec.DecidedAt,
		); err != nil {
			return nil, err
		}
		c.Status = models.StatusPending
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanReferralClaim(row scanner) (*models.ReferralClaim, error) {
	c := &models.ReferralClaim{}
	err := row.Scan(
		&c.ID, &c.Username, &c.TransactionID, &c.TransactionAmount, &c.Gateway, &c.PlanName, &c.PlanPrice,
		&c.DirectPoint, &c.IndirectPoint, &c.AdvancePoints, &c.RefPer, &c.RefParentPer, &c.ReferrerPin,
		&c.ImagePath, &c.Status, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func referralSnapshotArgs(c models.ReferralClaim) []interface{} {
	return []interface{}{
		c.ID, c.Username, c.TransactionID, c.TransactionAmount, c.Gateway, c.PlanName, c.PlanPrice,
		c.DirectPoint, c.IndirectPoint, c.AdvancePoints, c.RefPer, c.RefParentPer, c.ReferrerPin,
		c.ImagePath, c.CreatedAt,
	}
}

func referralSnapshotDest(c *models.ReferralClaim) []interface{} {
	return []interface{}{
		&c.ID, &c.Username, &c.TransactionID, &c.TransactionAmount, &c.Gateway, &c.PlanName, &c.PlanPrice,
		&c.DirectPoint, &c.IndirectPoint, &c.AdvancePoints, &c.RefPer, &c.RefParentPer, &c.ReferrerPin,
		&c.ImagePath, &c.CreatedAt,
	}
}

func (q *pgQueries) CreateReferralClaim(ctx context.Context, c *models.ReferralClaim) error {
	_, err := q.db.ExecContext(
		ctx,
		"INSERT INTO referral_claims ("+referralClaimColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.Username, c.TransactionID, c.TransactionAmount, c.Gateway, c.PlanName, c.PlanPrice,
		c.DirectPoint, c.IndirectPoint, c.AdvancePoints, c.RefPer, c.RefParentPer, c.ReferrerPin,
		c.ImagePath, c.Status, c.CreatedAt,
	)
	return mapWriteError(err)
}

func (q *pgQueries) GetReferralClaim(ctx context.Context, id string) (*models.ReferralClaim, error) {
	c, err := scanReferralClaim(q.db.QueryRowContext(
		ctx,
		"SELECT "+referralClaimColumns+" FROM referral_claims WHERE id = $1"+q.lockClause(),
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (q *pgQueries) ListPendingReferralClaims(ctx context.Context) ([]models.ReferralClaim, error) {
	rows, err := q.db.QueryContext(
		ctx,
		"SELECT "+referralClaimColumns+" FROM referral_claims WHERE status = $1 ORDER BY created_at",
		models.StatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []models.ReferralClaim
	for rows.Next() {
		c, err := scanReferralClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (q *pgQueries) DeleteReferralClaim(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM referral_claims WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (q *pgQueries) CreateReferralApproved(ctx context.Context, rec *models.ReferralApproved) error {
	args := []interface{}{rec.ID}
	args = append(args, referralSnapshotArgs(rec.Claim)...)
	args = append(args, rec.SelfBonus, rec.ParentBonus, rec.ParentUsername, rec.DirectPoints,
		rec.IndirectPoints, rec.Status, rec.DecidedBy, rec.DecidedAt)

	_, err := q.db.ExecContext(
		ctx,
		"INSERT INTO referral_approved (id, "+referralSnapshotColumns+`,
			self_bonus, parent_bonus, parent_username, direct_points, indirect_points, status, decided_by, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24)`,
		args...,
	)
	return mapWriteError(err)
}

func (q *pgQueries) CreateReferralRejected(ctx context.Context, rec *models.ReferralRejected) error {
	args := []interface{}{rec.ID}
	args = append(args, referralSnapshotArgs(rec.Claim)...)
	args = append(args, rec.Feedback, rec.Status, rec.DecidedBy, rec.DecidedAt)

	_, err := q.db.ExecContext(
		ctx,
		"INSERT INTO referral_rejected (id, "+referralSnapshotColumns+`, feedback, status, decided_by, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		args...,
	)
	return mapWriteError(err)
}

func (q *pgQueries) ListReferralApproved(ctx context.Context) ([]models.ReferralApproved, error) {
	rows, err := q.db.QueryContext(
		ctx,
		"SELECT id, "+referralSnapshotColumns+`, self_bonus, parent_bonus, parent_username,
			direct_points, indirect_points, status, decided_by, decided_at
		 FROM referral_approved
		 ORDER BY decided_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ReferralApproved
	for rows.Next() {
		var rec models.ReferralApproved
		dest := []interface{}{&rec.ID}
		dest = append(dest, referralSnapshotDest(&rec.Claim)...)
		dest = append(dest, &rec.SelfBonus, &rec.ParentBonus, &rec.ParentUsername, &rec.DirectPoints,
			&rec.IndirectPoints, &rec.Status, &rec.DecidedBy, &rec.DecidedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec.Claim.Status = models.StatusPending
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (q *pgQueries) ListReferralRejected(ctx context.Context) ([]models.ReferralRejected, error) {
	rows, err := q.db.QueryContext(
		ctx,
		"SELECT id, "+referralSnapshotColumns+`, feedback, status, decided_by, decided_at
		 FROM referral_rejected
		 ORDER BY decided_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ReferralRejected
	for rows.Next() {
		var rec models.ReferralRejected
		dest := []interface{}{&rec.ID}
		dest = append(dest, referralSnapshotDest(&rec.Claim)...)
		dest = append(dest, &rec.Feedback, &rec.Status, &rec.DecidedBy, &rec.DecidedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec.Claim.Status = models.StatusPending
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (q *pgQueries) CreatePendingRegistration(ctx context.Context, reg *models.PendingRegistration) error {
	_, err := q.db.ExecContext(
		ctx,
		`INSERT INTO pending_registrations (id, claim_id, referrer_username, referrer_pin, plan_name, plan_price,
			direct_point, indirect_point, advance_points, ref_per, ref_parent_per, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		reg.ID, reg.ClaimID, reg.ReferrerUsername, reg.ReferrerPin, reg.PlanName, reg.PlanPrice,
		reg.DirectPoint, reg.IndirectPoint, reg.AdvancePoints, reg.RefPer, reg.RefParentPer, reg.CreatedAt,
	)
	return mapWriteError(err)
}

func (q *pgQueries) ListPendingRegistrations(ctx context.Context) ([]models.PendingRegistration, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT id, claim_id, referrer_username, referrer_pin, plan_name, plan_price,
			direct_point, indirect_point, advance_points, ref_per, ref_parent_per, created_at
		 FROM pending_registrations
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []models.PendingRegistration
	for rows.Next() {
		var reg models.PendingRegistration
		if err := rows.Scan(
			&reg.ID, &reg.ClaimID, &reg.ReferrerUsername, &reg.ReferrerPin, &reg.PlanName, &reg.PlanPrice,
			&reg.DirectPoint, &reg.IndirectPoint, &reg.AdvancePoints, &reg.RefPer, &reg.RefParentPer, &reg.CreatedAt,
		); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}

func (q *pgQueries) CountPendingClaims(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 2)

	var training, referral int64
	err := q.db.QueryRowContext(
		ctx,
		`SELECT
			(SELECT COUNT(*) FROM training_bonus_claims WHERE status = $1),
			(SELECT COUNT(*) FROM referral_claims WHERE status = $1)`,
		models.StatusPending,
	).Scan(&training, &referral)
	if err != nil {
		return nil, err
	}

	counts[models.PipelineTrainingBonus] = training
	counts[models.PipelineReferral] = referral
	return counts, nil
}
