package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolationCode = "23505"

// Schema creates the tables used by the PostgreSQL repositories.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	nom           TEXT NOT NULL,
	prenom        TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	role          TEXT NOT NULL,
	filiere_id    BIGINT,
	annee         INTEGER,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stages (
	id                BIGSERIAL PRIMARY KEY,
	sujet             TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	entreprise        TEXT NOT NULL DEFAULT '',
	ville             TEXT NOT NULL DEFAULT '',
	date_debut        DATE,
	date_fin          DATE,
	etat              TEXT NOT NULL,
	etudiant_id       BIGINT NOT NULL REFERENCES users(id),
	encadrant_id      BIGINT REFERENCES users(id),
	commentaire_refus TEXT,
	rapport_path      TEXT,
	filiere_id        BIGINT,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	version           BIGINT NOT NULL DEFAULT 1
);

ALTER TABLE stages ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 1;

CREATE INDEX IF NOT EXISTS stages_etudiant_idx ON stages (etudiant_id);
CREATE INDEX IF NOT EXISTS stages_encadrant_idx ON stages (encadrant_id);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

/*
====================================
USERS
====================================
*/

// PostgresUsers implements Users using PostgreSQL.
type PostgresUsers struct {
	pool *pgxpool.Pool
}

func NewPostgresUsers(pool *pgxpool.Pool) *PostgresUsers {
	return &PostgresUsers{pool: pool}
}

const userColumns = `id, nom, prenom, email, role, filiere_id, annee, password_hash, created_at`

func (r *PostgresUsers) Create(ctx context.Context, acc Account) (Account, error) {
	query := `
		INSERT INTO users (nom, prenom, email, role, filiere_id, annee, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	row := r.pool.QueryRow(ctx, query,
		acc.Record.Nom,
		acc.Record.Prenom,
		normalizeEmail(acc.Record.Email),
		acc.Record.Role.String(),
		acc.Record.FiliereID,
		acc.Record.Annee,
		acc.PasswordHash,
	)
	out, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return Account{}, ErrEmailTaken
		}
		return Account{}, fmt.Errorf("failed to create user: %w", err)
	}
	return out, nil
}

func (r *PostgresUsers) ByEmail(ctx context.Context, email string) (Account, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.one(ctx, query, normalizeEmail(email))
}

func (r *PostgresUsers) ByID(ctx context.Context, id int64) (Account, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.one(ctx, query, id)
}

func (r *PostgresUsers) one(ctx context.Context, query string, arg any) (Account, error) {
	acc, err := scanAccount(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("failed to get user: %w", err)
	}
	return acc, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc  Account
		role string
	)
	err := row.Scan(
		&acc.Record.ID,
		&acc.Record.Nom,
		&acc.Record.Prenom,
		&acc.Record.Email,
		&role,
		&acc.Record.FiliereID,
		&acc.Record.Annee,
		&acc.PasswordHash,
		&acc.CreatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	acc.Record.Role = user.Role(role)
	return acc, nil
}

/*
====================================
STAGES
====================================
*/

// PostgresStages implements Stages using PostgreSQL.
type PostgresStages struct {
	pool *pgxpool.Pool
}

func NewPostgresStages(pool *pgxpool.Pool) *PostgresStages {
	return &PostgresStages{pool: pool}
}

const stageColumns = `id, sujet, description, entreprise, ville, date_debut, date_fin, etat,
	etudiant_id, encadrant_id, commentaire_refus, rapport_path, filiere_id, created_at, updated_at, version`

func (r *PostgresStages) Create(ctx context.Context, st stage.Stage) (stage.Stage, error) {
	query := `
		INSERT INTO stages (sujet, description, entreprise, ville, date_debut, date_fin, etat,
			etudiant_id, encadrant_id, commentaire_refus, rapport_path, filiere_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + stageColumns

	out, err := scanStage(r.pool.QueryRow(ctx, query,
		st.Sujet,
		st.Description,
		st.Entreprise,
		st.Ville,
		dateArg(st.DateDebut),
		dateArg(st.DateFin),
		st.Etat.String(),
		st.EtudiantID,
		st.EncadrantID,
		st.CommentaireRefus,
		st.RapportPath,
		st.FiliereID,
		st.CreatedAt,
		st.UpdatedAt,
	))
	if err != nil {
		return stage.Stage{}, fmt.Errorf("failed to create stage: %w", err)
	}
	return out, nil
}

func (r *PostgresStages) Get(ctx context.Context, id int64) (stage.Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM stages WHERE id = $1`
	st, err := scanStage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stage.Stage{}, ErrNotFound
		}
		return stage.Stage{}, fmt.Errorf("failed to get stage: %w", err)
	}
	return st, nil
}

func (r *PostgresStages) List(ctx context.Context, f Filter) ([]stage.Stage, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.EtudiantID != nil {
		conds = append(conds, "etudiant_id = "+arg(*f.EtudiantID))
	}
	if f.EncadrantID != nil {
		conds = append(conds, "encadrant_id = "+arg(*f.EncadrantID))
	}
	if f.FiliereID != nil {
		conds = append(conds, "filiere_id = "+arg(*f.FiliereID))
	}
	if len(f.Etats) > 0 {
		etats := make([]string, len(f.Etats))
		for i, e := range f.Etats {
			etats[i] = e.String()
		}
		conds = append(conds, "etat = ANY("+arg(etats)+")")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg("%" + q + "%")
		conds = append(conds, "(sujet ILIKE "+p+" OR description ILIKE "+p+" OR entreprise ILIKE "+p+" OR ville ILIKE "+p+")")
	}

	query := `SELECT ` + stageColumns + ` FROM stages`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	out := make([]stage.Stage, 0)
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	return out, nil
}

func (r *PostgresStages) Update(ctx context.Context, next stage.Stage, version int64) (stage.Stage, error) {
	query := `
		UPDATE stages SET
			sujet = $3,
			description = $4,
			entreprise = $5,
			ville = $6,
			date_debut = $7,
			date_fin = $8,
			etat = $9,
			encadrant_id = $10,
			commentaire_refus = $11,
			rapport_path = $12,
			filiere_id = $13,
			updated_at = $14,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING ` + stageColumns

	out, err := scanStage(r.pool.QueryRow(ctx, query,
		next.ID,
		version,
		next.Sujet,
		next.Description,
		next.Entreprise,
		next.Ville,
		dateArg(next.DateDebut),
		dateArg(next.DateFin),
		next.Etat.String(),
		next.EncadrantID,
		next.CommentaireRefus,
		next.RapportPath,
		next.FiliereID,
		next.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stage.Stage{}, r.missOrConflict(ctx, next.ID)
		}
		return stage.Stage{}, fmt.Errorf("failed to update stage: %w", err)
	}
	return out, nil
}

func (r *PostgresStages) Delete(ctx context.Context, id int64, version int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM stages WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return fmt.Errorf("failed to delete stage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// missOrConflict tells a missing row from one written since it was read.
func (r *PostgresStages) missOrConflict(ctx context.Context, id int64) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM stages WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check stage: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func scanStage(row pgx.Row) (stage.Stage, error) {
	var (
		st         stage.Stage
		etat       string
		debut, fin *time.Time
	)
	err := row.Scan(
		&st.ID,
		&st.Sujet,
		&st.Description,
		&st.Entreprise,
		&st.Ville,
		&debut,
		&fin,
		&etat,
		&st.EtudiantID,
		&st.EncadrantID,
		&st.CommentaireRefus,
		&st.RapportPath,
		&st.FiliereID,
		&st.CreatedAt,
		&st.UpdatedAt,
		&st.Version,
	)
	if err != nil {
		return stage.Stage{}, err
	}
	st.Etat = stage.State(etat)
	if debut != nil {
		st.DateDebut = stage.Date{Time: *debut}
	}
	if fin != nil {
		st.DateFin = stage.Date{Time: *fin}
	}
	return st, nil
}

func dateArg(d stage.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time
}
