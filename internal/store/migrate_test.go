// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestwishes/bestwishes/pkg/errutil"
)

// mockMigrate implements migrateIface for testing.
type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	forced         int
	closeSourceErr error
	closeDbErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Steps(_ int) error            { return m.stepsErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDbErr }

func (m *mockMigrate) Force(v int) error {
	m.forced = v
	return m.forceErr
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"postgresql://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"pgx5://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"mysql://u:p@localhost/db", "mysql://u:p@localhost/db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MigrateURL(tt.in))
		})
	}
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("invalid://url")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestNewMigrator_PostgresqlSchemeIsRecognized(t *testing.T) {
	_, err := NewMigrator("postgresql://localhost:1/testdb?connect_timeout=1")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	assert.NotContains(t, err.Error(), "unknown driver")
}

func TestMigrator_DirectionalOperations(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		mock     *mockMigrate
		run      func(m *Migrator) error
		wantCode string
	}{
		{name: "up", mock: &mockMigrate{}, run: (*Migrator).Up},
		{name: "up no change", mock: &mockMigrate{upErr: migrate.ErrNoChange}, run: (*Migrator).Up},
		{name: "up error", mock: &mockMigrate{upErr: boom}, run: (*Migrator).Up, wantCode: "MIGRATION_UP_FAILED"},
		{name: "down", mock: &mockMigrate{}, run: (*Migrator).Down},
		{name: "down no change", mock: &mockMigrate{downErr: migrate.ErrNoChange}, run: (*Migrator).Down},
		{name: "down error", mock: &mockMigrate{downErr: boom}, run: (*Migrator).Down, wantCode: "MIGRATION_DOWN_FAILED"},
		{
			name: "steps no change",
			mock: &mockMigrate{stepsErr: migrate.ErrNoChange},
			run:  func(m *Migrator) error { return m.Steps(1) },
		},
		{
			name:     "steps error",
			mock:     &mockMigrate{stepsErr: boom},
			run:      func(m *Migrator) error { return m.Steps(-1) },
			wantCode: "MIGRATION_STEPS_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.mock})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, tt.wantCode)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	t.Run("reports version and dirty flag", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: 2, dirty: true}}
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})

	t.Run("nil version is zero", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})

	t.Run("error", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("db gone")}}
		_, _, err := m.Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Force(t *testing.T) {
	mm := &mockMigrate{}
	m := &Migrator{m: mm}

	require.NoError(t, m.Force(2))
	assert.Equal(t, 2, mm.forced)

	errutil.AssertErrorCode(t, m.Force(-1), "INVALID_VERSION")

	mm.forceErr = errors.New("locked")
	errutil.AssertErrorCode(t, m.Force(1), "MIGRATION_FORCE_FAILED")
}

func TestMigrator_Status(t *testing.T) {
	all, err := allMigrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	latest := all[len(all)-1]

	t.Run("fresh database has everything pending", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		st, err := m.Status()
		require.NoError(t, err)
		assert.Zero(t, st.Version)
		assert.Empty(t, st.Applied)
		assert.Equal(t, all, st.Pending)
	})

	t.Run("partially migrated", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: 1}}
		st, err := m.Status()
		require.NoError(t, err)
		assert.Equal(t, []uint{1}, st.Applied)
		assert.NotContains(t, st.Pending, uint(1))
		assert.Contains(t, st.Pending, latest)
	})

	t.Run("at latest", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: latest}}
		st, err := m.Status()
		require.NoError(t, err)
		assert.Equal(t, all, st.Applied)
		assert.Empty(t, st.Pending)
	})

	t.Run("version error", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("db gone")}}
		_, err := m.Status()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Close(t *testing.T) {
	srcErr := fmt.Errorf("source closed")
	dbErr := fmt.Errorf("database closed")

	tests := []struct {
		name      string
		mock      *mockMigrate
		component string
	}{
		{name: "clean", mock: &mockMigrate{}},
		{name: "source", mock: &mockMigrate{closeSourceErr: srcErr}, component: "source"},
		{name: "database", mock: &mockMigrate{closeDbErr: dbErr}, component: "database"},
		{name: "both", mock: &mockMigrate{closeSourceErr: srcErr, closeDbErr: dbErr}, component: "both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.mock}).Close()
			if tt.component == "" {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_users", name)

	name, err = MigrationName(999)
	require.NoError(t, err)
	assert.Empty(t, name)
}
