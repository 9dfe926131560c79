package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getPostgresPool connects to TEST_POSTGRES_DSN and resets the tables.
func getPostgresPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE stages, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func TestPostgresRepositories(t *testing.T) {
	pool := getPostgresPool(t)
	ctx := context.Background()
	users := NewPostgresUsers(pool)
	stages := NewPostgresStages(pool)

	acc, err := users.Create(ctx, Account{
		Record:       user.Record{Nom: "Martin", Prenom: "Alice", Email: "Alice@Example.com", Role: user.RoleEtudiant},
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", acc.Record.Email)

	_, err = users.Create(ctx, Account{Record: user.Record{Email: "alice@example.com", Role: user.RoleEtudiant}, PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := users.ByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.RoleEtudiant, got.Record.Role)

	now := time.Now().UTC().Truncate(time.Millisecond)
	st, err := stages.Create(ctx, stage.Stage{
		Sujet:      "Compilateur",
		Ville:      "Lyon",
		DateDebut:  stage.NewDate(2026, time.February, 2),
		Etat:       stage.EnAttenteValidation,
		EtudiantID: acc.Record.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	require.NoError(t, err)
	assert.True(t, st.DateFin.IsZero())
	assert.Equal(t, 2, st.DateDebut.Day())

	list, err := stages.List(ctx, Filter{Query: "LYON", Etats: []stage.State{stage.EnAttenteValidation}})
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.Equal(t, int64(1), st.Version)

	next := st.Clone()
	next.Etat = stage.Refuse
	refused, err := stages.Update(ctx, next, st.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), refused.Version)

	next.Etat = stage.Valide
	_, err = stages.Update(ctx, next, st.Version)
	assert.ErrorIs(t, err, ErrConflict)

	edit := refused.Clone()
	edit.Sujet = "Compilateur incremental"
	_, err = stages.Update(ctx, edit, refused.Version)
	require.NoError(t, err)

	edit.Sujet = "Autre sujet"
	_, err = stages.Update(ctx, edit, refused.Version)
	assert.ErrorIs(t, err, ErrConflict)

	assert.ErrorIs(t, stages.Delete(ctx, 999, 1), ErrNotFound)
	assert.ErrorIs(t, stages.Delete(ctx, st.ID, refused.Version), ErrConflict)
	assert.NoError(t, stages.Delete(ctx, st.ID, refused.Version+1))
}
