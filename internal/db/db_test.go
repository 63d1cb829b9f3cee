package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestRunInTxCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = RunInTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE users SET is_active = FALSE")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = RunInTx(context.Background(), mock, func(tx pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsAreOrdered(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "0001_init", migrations[0].Version)
	assert.Equal(t, "0002_indexes", migrations[1].Version)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS waste_reports")
}

func TestMigrateSkipsAppliedVersions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("0001_init").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("0002_indexes").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE INDEX").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("0002_indexes").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_indexes"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

const fixtureDoc = `
users:
  - name: Jane Smith
    email: jane@example.com
    password: password123
    role: authority
  - name: John Doe
    email: john@example.com
    password: password123
locations:
  - name: Gulshan Circle 1
    type: commercial
    latitude: 23.7806
    longitude: 90.4193
    city: Dhaka
    frequency: daily
`

func TestParseFixturesFillsDefaults(t *testing.T) {
	f, err := ParseFixtures(strings.NewReader(fixtureDoc))
	require.NoError(t, err)
	require.Len(t, f.Users, 2)
	assert.Equal(t, "authority", f.Users[0].Role)
	assert.Equal(t, "citizen", f.Users[1].Role)
	require.Len(t, f.Locations, 1)
	assert.Equal(t, "Bangladesh", f.Locations[0].Country)
}

func TestParseFixturesRejectsUnknownFields(t *testing.T) {
	_, err := ParseFixtures(strings.NewReader("users:\n  - email: a@b.c\n    password: x\n    nickname: y\n"))
	assert.Error(t, err)
}

func TestParseFixturesRequiresCredentials(t *testing.T) {
	_, err := ParseFixtures(strings.NewReader("users:\n  - name: nobody\n"))
	assert.Error(t, err)
}

func TestSeedInsertsFixtures(t *testing.T) {
	f, err := ParseFixtures(strings.NewReader(fixtureDoc))
	require.NoError(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WithArgs(anyArgs(6)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO users").WithArgs(anyArgs(6)...).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO locations").WithArgs(anyArgs(13)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, Seed(context.Background(), mock, f))
	assert.NoError(t, mock.ExpectationsWereMet())
}
