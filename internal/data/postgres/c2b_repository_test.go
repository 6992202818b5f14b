package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanspur/paymentvalut-sub005/internal/domain/c2b"
)

var c2bRows = []string{
	"id", "transaction_id", "trans_type", "trans_time", "amount", "short_code",
	"bill_ref_number", "account_number", "msisdn", "customer_name",
	"partner_id", "status", "failure_reason", "created_at", "updated_at",
}

func TestC2BRepository_GetByTransactionID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &C2BRepository{querier: mock, logger: logger}
	partnerID := uuid.New()
	now := time.Now()

	expected := &c2b.Transaction{
		ID:            uuid.New(),
		TransactionID: "QGR7RCTRXN",
		TransType:     "Pay Bill",
		TransTime:     "20260829104512",
		Amount:        250000,
		ShortCode:     "600986",
		BillRefNumber: "774451#tok-123",
		AccountNumber: "774451",
		Msisdn:        "254712345678",
		CustomerName:  "JOHN DOE",
		PartnerID:     &partnerID,
		Status:        c2b.StatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `SELECT (.+) FROM c2b_transactions WHERE transaction_id = \$1`

	t.Run("found", func(t *testing.T) {
		rows := pgxmock.NewRows(c2bRows).AddRow(
			expected.ID, expected.TransactionID, expected.TransType, expected.TransTime,
			expected.Amount, expected.ShortCode, expected.BillRefNumber, expected.AccountNumber,
			expected.Msisdn, expected.CustomerName, expected.PartnerID, expected.Status,
			expected.FailureReason, expected.CreatedAt, expected.UpdatedAt,
		)
		mock.ExpectQuery(query).WithArgs(expected.TransactionID).WillReturnRows(rows)

		tx, err := repo.GetByTransactionID(ctx, expected.TransactionID)
		assert.NoError(t, err)
		assert.Equal(t, expected, tx)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unseen returns nil", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("UNSEEN123").WillReturnError(pgx.ErrNoRows)

		tx, err := repo.GetByTransactionID(ctx, "UNSEEN123")
		assert.NoError(t, err) // Absence is not an error
		assert.Nil(t, tx)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestC2BRepository_Allocate(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &C2BRepository{querier: mock, logger: logger}
	id := uuid.New()
	partnerID := uuid.New()

	query := `UPDATE c2b_transactions`

	t.Run("allocates unmatched transaction", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(partnerID, c2b.StatusCompleted, id, c2b.StatusUnmatched).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		applied, err := repo.Allocate(ctx, id, partnerID)
		assert.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already allocated", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(partnerID, c2b.StatusCompleted, id, c2b.StatusUnmatched).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		applied, err := repo.Allocate(ctx, id, partnerID)
		assert.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestC2BRepository_List(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &C2BRepository{querier: mock, logger: logger}
	now := time.Now()

	query := `SELECT (.+) FROM c2b_transactions`

	t.Run("filters by status", func(t *testing.T) {
		rows := pgxmock.NewRows(c2bRows).AddRow(
			uuid.New(), "QGR8UNMATCH", "Pay Bill", "20260829110000", int64(100000), "600986",
			"999999#bad-token", "999999", "254700000001", "JANE DOE",
			(*uuid.UUID)(nil), c2b.StatusUnmatched, "no active partner for token", now, now,
		)
		mock.ExpectQuery(query).WithArgs(c2b.StatusUnmatched, 20, 0).WillReturnRows(rows)

		transactions, err := repo.List(ctx, c2b.StatusUnmatched, 20, 0)
		assert.NoError(t, err)
		require.Len(t, transactions, 1)
		assert.Equal(t, c2b.StatusUnmatched, transactions[0].Status)
		assert.Nil(t, transactions[0].PartnerID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
