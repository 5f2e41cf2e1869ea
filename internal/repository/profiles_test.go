package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
)

func setupMockProfileDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *ProfileRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewProfileRepository(db, logger)

	return db, mock, repo
}

func profileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"driver_id", "name", "gender", "date_of_birth", "blood_type",
		"emergency_contact", "weight", "height", "chronic_diseases",
		"allergies", "last_updated", "expires_at",
	})
}

func TestGetProfile_Success(t *testing.T) {
	db, mock, repo := setupMockProfileDB(t)
	defer db.Close()

	ctx := context.Background()
	lastUpdated := time.Now()
	expiresAt := lastUpdated.Add(365 * 24 * time.Hour)

	rows := profileRows().AddRow(
		"DRIVER123456", "John Doe", "male", "1990-01-01", "A+",
		"+1234567890", 75.5, 180.0, `["Hypertension"]`,
		`["Penicillin"]`, lastUpdated, expiresAt,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("DRIVER123456").
		WillReturnRows(rows)

	profile, err := repo.GetProfile(ctx, "DRIVER123456")

	require.NoError(t, err)
	assert.Equal(t, "DRIVER123456", profile.DriverID)
	assert.Equal(t, "John Doe", profile.Name)
	assert.Equal(t, "male", profile.Gender)
	assert.Equal(t, "A+", profile.BloodType)
	assert.Equal(t, 75.5, profile.Weight)
	assert.Equal(t, 180.0, profile.Height)
	assert.Equal(t, []string{"Hypertension"}, profile.ChronicDiseases)
	assert.Equal(t, []string{"Penicillin"}, profile.Allergies)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfile_NotFound(t *testing.T) {
	db, mock, repo := setupMockProfileDB(t)
	defer db.Close()

	ctx := context.Background()

	// 过期记录被 expires_at 过滤后与不存在无法区分
	mock.ExpectQuery(`SELECT`).
		WithArgs("DRIVER999999").
		WillReturnRows(profileRows())

	profile, err := repo.GetProfile(ctx, "DRIVER999999")

	assert.Nil(t, profile)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfile_EmptyDriverID(t *testing.T) {
	db, _, repo := setupMockProfileDB(t)
	defer db.Close()

	_, err := repo.GetProfile(context.Background(), "")
	assert.Error(t, err)
}

func TestPutProfile_Success(t *testing.T) {
	db, mock, repo := setupMockProfileDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	profile := &models.DriverProfile{
		DriverID:         "DRIVER123456",
		Name:             "John Doe",
		Gender:           "male",
		DateOfBirth:      "1990-01-01",
		BloodType:        "A+",
		EmergencyContact: "+1234567890",
		Weight:           75.5,
		Height:           180.0,
		ChronicDiseases:  []string{"Hypertension"},
		Allergies:        []string{"Penicillin"},
		LastUpdated:      now,
		ExpiresAt:        now.Add(365 * 24 * time.Hour),
	}

	mock.ExpectExec(`INSERT INTO driver_profiles`).
		WithArgs(
			"DRIVER123456", "John Doe", "male", "1990-01-01", "A+",
			"+1234567890", 75.5, 180.0, `["Hypertension"]`, `["Penicillin"]`,
			profile.LastUpdated, profile.ExpiresAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.PutProfile(ctx, profile)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutProfile_NilListsStoredAsEmptyArrays(t *testing.T) {
	db, mock, repo := setupMockProfileDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	profile := &models.DriverProfile{
		DriverID:         "DRIVER123456",
		Name:             "John Doe",
		Gender:           "male",
		DateOfBirth:      "1990-01-01",
		BloodType:        "A+",
		EmergencyContact: "+1234567890",
		Weight:           75.5,
		Height:           180.0,
		LastUpdated:      now,
		ExpiresAt:        now.Add(365 * 24 * time.Hour),
	}

	mock.ExpectExec(`INSERT INTO driver_profiles`).
		WithArgs(
			"DRIVER123456", "John Doe", "male", "1990-01-01", "A+",
			"+1234567890", 75.5, 180.0, `[]`, `[]`,
			profile.LastUpdated, profile.ExpiresAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.PutProfile(ctx, profile)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutProfile_EmptyDriverID(t *testing.T) {
	db, _, repo := setupMockProfileDB(t)
	defer db.Close()

	err := repo.PutProfile(context.Background(), &models.DriverProfile{})
	assert.Error(t, err)
}
