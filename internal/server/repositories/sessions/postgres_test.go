package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nazarriya/chatrelay/internal/common"
	"github.com/nazarriya/chatrelay/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var (
	t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+chat_sessions\s*\(id,\s*user_id,\s*title\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+created_at,\s*updated_at\s*$`).
		WithArgs(sqlmock.AnyArg(), "u-1", "New Chat Session").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(t0, t0))

	got, err := repo.Create(context.Background(), &models.ChatSession{UserID: "u-1", Title: "New Chat Session"})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, t0, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+chat_sessions`).WillReturnError(errors.New("fk violation"))

	_, err := repo.Create(context.Background(), &models.ChatSession{UserID: "u-1", Title: "x"})
	if err == nil || !regexp.MustCompile(`db error: .*fk violation`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*user_id,\s*title,\s*created_at,\s*updated_at\s+FROM\s+chat_sessions\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at", "updated_at"}).
			AddRow("s-1", "u-1", "Trip plans", t0, t1))

	got, err := repo.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, &models.ChatSession{ID: "s-1", UserID: "u-1", Title: "Trip plans", CreatedAt: t0, UpdatedAt: t1}, got)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+chat_sessions`).WithArgs("s-x").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "s-x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+s\.id,.*COUNT\(m\.id\)\s+FROM\s+chat_sessions\s+s\s+LEFT\s+JOIN\s+chat_messages\s+m.*WHERE\s+s\.user_id\s*=\s*\$1.*ORDER\s+BY\s+s\.updated_at\s+DESC,\s*s\.id\s+LIMIT\s+\$2\s+OFFSET\s+\$3\s*$`
	rows := sqlmock.NewRows([]string{"id", "title", "created_at", "updated_at", "count"}).
		AddRow("s-2", "Newer", t0, t1, int64(4)).
		AddRow("s-1", "Older", t0, t0, int64(0))
	mock.ExpectQuery(q).WithArgs("u-1", 50, 0).WillReturnRows(rows)

	got, err := repo.ListByUser(context.Background(), "u-1", 50, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s-2", got[0].ID)
	assert.Equal(t, 4, got[0].MessageCount)
	assert.Equal(t, 0, got[1].MessageCount)
}

func TestListByUser_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+chat_sessions\s+s`).WithArgs("u-1", 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at", "updated_at", "count"}))

	got, err := repo.ListByUser(context.Background(), "u-1", 10, 20)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListByUser_RowError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "title", "created_at", "updated_at", "count"}).
		AddRow("s-1", "a", t0, t0, int64(1)).
		RowError(0, errors.New("broken row"))
	mock.ExpectQuery(`FROM\s+chat_sessions\s+s`).WillReturnRows(rows)

	_, err := repo.ListByUser(context.Background(), "u-1", 10, 0)
	assert.ErrorContains(t, err, "broken row")
}

func TestUpdateTitle(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+chat_sessions\s+SET\s+title\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s+RETURNING`
	mock.ExpectQuery(q).WithArgs("s-1", "Renamed").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at", "updated_at"}).
			AddRow("s-1", "u-1", "Renamed", t0, t1))

	got, err := repo.UpdateTitle(context.Background(), "s-1", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, t1, got.UpdatedAt)
}

func TestUpdateTitle_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+chat_sessions`).WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateTitle(context.Background(), "s-x", "t")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestTouch(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE\s+chat_sessions\s+SET\s+updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("s-1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Touch(context.Background(), "s-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		execErr  error
		want     error
	}{
		{"deleted", 1, nil, nil},
		{"missing", 0, nil, common.ErrorNotFound},
		{"db error", 0, errors.New("conn reset"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			exp := mock.ExpectExec(`^DELETE\s+FROM\s+chat_sessions\s+WHERE\s+id\s*=\s*\$1$`).WithArgs("s-1")
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tt.affected))
			}

			err := repo.Delete(context.Background(), "s-1")
			switch {
			case tt.execErr != nil:
				assert.ErrorContains(t, err, "db error: conn reset")
			case tt.want != nil:
				assert.ErrorIs(t, err, tt.want)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestPutData(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	data := models.SessionData{EncryptedData: []byte("blob"), Metadata: json.RawMessage(`{"algorithm":"AES-256-GCM"}`)}
	mock.ExpectExec(`(?s)^UPDATE\s+chat_sessions\s+SET\s+encrypted_session_data\s*=\s*\$2,\s*session_encryption_metadata\s*=\s*\$3`).
		WithArgs("s-1", []byte("blob"), `{"algorithm":"AES-256-GCM"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.PutData(context.Background(), "s-1", data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutData_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+chat_sessions`).WithArgs("s-x", []byte("b"), nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.PutData(context.Background(), "s-x", models.SessionData{EncryptedData: []byte("b")})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetData(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+encrypted_session_data,\s*session_encryption_metadata\s+FROM\s+chat_sessions\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"encrypted_session_data", "session_encryption_metadata"}).
			AddRow([]byte("blob"), []byte(`{"k":1}`)))

	got, err := repo.GetData(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), got.EncryptedData)
	assert.JSONEq(t, `{"k":1}`, string(got.Metadata))
}

func TestGetData_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+encrypted_session_data`).WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"encrypted_session_data", "session_encryption_metadata"}).
			AddRow(nil, nil))

	got, err := repo.GetData(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Empty(t, got.EncryptedData)
	assert.Empty(t, got.Metadata)
}
