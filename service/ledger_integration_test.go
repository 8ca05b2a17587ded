// service/ledger_integration_test.go
package service

import (
	"context"
	"database/sql"
	"errors"
	"go-ledger/db"
	"go-ledger/model"
	"go-ledger/repository"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// integrationSchema keeps these tests apart from other packages sharing the
// same test database.
const integrationSchema = "ledger_service_test"

// integrationDB connects to the PostgreSQL instance named by
// LEDGER_TEST_DATABASE_URL inside integrationSchema, migrates it twice and
// empties both tables.
func integrationDB(t *testing.T) *sql.DB {
	t.Helper()
	connStr := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set, skipping PostgreSQL integration test")
	}
	connStr, err := db.WithSearchPath(connStr, integrationSchema)
	require.NoError(t, err)

	database, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	for i := 0; i < 5; i++ {
		if err = database.Ping(); err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "database not ready")

	ctx := context.Background()
	require.NoError(t, db.EnsureSchema(ctx, database, integrationSchema))
	require.NoError(t, db.Migrate(ctx, database))
	require.NoError(t, db.Migrate(ctx, database), "second migration run must be a no-op")

	_, err = database.Exec(`TRUNCATE transactions, accounts RESTART IDENTITY`)
	require.NoError(t, err)
	return database
}

func newIntegrationLedger(database *sql.DB, txns repository.ITransactionRepository) *LedgerService {
	return newIntegrationLedgerWithIsolation(database, txns, sql.LevelReadCommitted)
}

func newIntegrationLedgerWithIsolation(database *sql.DB, txns repository.ITransactionRepository, isolation sql.IsolationLevel) *LedgerService {
	if txns == nil {
		txns = repository.NewTransactionRepository()
	}
	return NewLedgerService(database, repository.NewAccountRepository(), txns, nil, LedgerOptions{
		AllowNegativeInitialBalance: true,
		MaxAttempts:                 5,
		LockTimeout:                 5 * time.Second,
		Isolation:                   isolation,
	})
}

// assertInvariant checks balance == sum(amount) straight from the tables.
func assertInvariant(t *testing.T, database *sql.DB, accountID int64) {
	t.Helper()
	var balance, sum decimal.Decimal
	err := database.QueryRow(`
		SELECT a.balance, COALESCE((SELECT SUM(amount) FROM transactions WHERE account_id = a.id), 0)
		FROM accounts a WHERE a.id = $1`, accountID).Scan(&balance, &sum)
	require.NoError(t, err)
	assert.True(t, balance.Equal(sum), "balance %s != log sum %s", balance, sum)
}

func countTransactions(t *testing.T, database *sql.DB, accountID int64) int {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&n))
	return n
}

func TestLedger_Integration_Scenario(t *testing.T) {
	database := integrationDB(t)
	ledger := newIntegrationLedger(database, nil)
	ctx := context.Background()

	id, err := ledger.CreateAccount(ctx, "Surya", decimal.NewFromInt(3000))
	require.NoError(t, err)
	assert.Positive(t, id)
	balance, err := ledger.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(3000)))

	require.NoError(t, ledger.Deposit(ctx, id, decimal.NewFromInt(500)))
	balance, _ = ledger.GetBalance(ctx, id)
	assert.True(t, balance.Equal(decimal.NewFromInt(3500)))
	assert.Equal(t, 2, countTransactions(t, database, id))

	require.NoError(t, ledger.Withdraw(ctx, id, decimal.NewFromInt(200)))
	balance, _ = ledger.GetBalance(ctx, id)
	assert.True(t, balance.Equal(decimal.NewFromInt(3300)))

	history, err := ledger.GetHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.DescriptionAccountCreated, history[0].Description)
	assert.True(t, history[0].Amount.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, model.TransactionTypeDeposit, history[1].Type)
	assert.Equal(t, model.TransactionTypeWithdrawal, history[2].Type)
	assert.True(t, history[2].Amount.Equal(decimal.NewFromInt(-200)))
	assert.Less(t, history[0].ID, history[1].ID)
	assert.Less(t, history[1].ID, history[2].ID)

	err = ledger.Withdraw(ctx, id, decimal.NewFromInt(999999))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	balance, _ = ledger.GetBalance(ctx, id)
	assert.True(t, balance.Equal(decimal.NewFromInt(3300)))
	assert.Equal(t, 3, countTransactions(t, database, id))

	_, err = ledger.GetBalance(ctx, 12345)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = ledger.GetHistory(ctx, 12345)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	rec, err := ledger.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, int64(3), rec.TransactionCount)
	assertInvariant(t, database, id)
}

func TestLedger_Integration_ConcurrentWithdraw(t *testing.T) {
	levels := map[string]sql.IsolationLevel{
		"read committed": sql.LevelReadCommitted,
		"serializable":   sql.LevelSerializable,
	}
	for name, level := range levels {
		t.Run(name, func(t *testing.T) {
			database := integrationDB(t)
			ledger := newIntegrationLedgerWithIsolation(database, nil, level)
			ctx := context.Background()

			id, err := ledger.CreateAccount(ctx, "Race", decimal.NewFromInt(1000))
			require.NoError(t, err)

			var wg sync.WaitGroup
			start := make(chan struct{})
			errs := make([]error, 2)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					errs[i] = ledger.Withdraw(ctx, id, decimal.NewFromInt(600))
				}(i)
			}
			close(start)
			wg.Wait()

			var succeeded, rejected int
			for _, err := range errs {
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, ErrInsufficientFunds):
					rejected++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, succeeded)
			assert.Equal(t, 1, rejected)

			balance, err := ledger.GetBalance(ctx, id)
			require.NoError(t, err)
			assert.True(t, balance.Equal(decimal.NewFromInt(400)))
			assert.Equal(t, 2, countTransactions(t, database, id))
			assertInvariant(t, database, id)
		})
	}
}

func TestLedger_Integration_IndependentAccounts(t *testing.T) {
	database := integrationDB(t)
	ledger := newIntegrationLedger(database, nil)
	ctx := context.Background()

	ids := make([]int64, 4)
	for i := range ids {
		id, err := ledger.CreateAccount(ctx, "Parallel", decimal.NewFromInt(100))
		require.NoError(t, err)
		ids[i] = id
	}

	// One writer per account, all accounts at once.
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, ledger.Deposit(ctx, id, decimal.RequireFromString("2.5")))
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		balance, err := ledger.GetBalance(ctx, id)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(125)), "account %d balance %s", id, balance)
		assertInvariant(t, database, id)
	}
}

// failingTransactions lets the balance update succeed and then fails the
// log append, simulating a crash between the two writes.
type failingTransactions struct {
	repository.ITransactionRepository
}

func (failingTransactions) CreateTransaction(context.Context, *sql.Tx, *model.Transaction) error {
	return errors.New("injected failure")
}

func TestLedger_Integration_Atomicity(t *testing.T) {
	database := integrationDB(t)
	ctx := context.Background()

	id, err := newIntegrationLedger(database, nil).CreateAccount(ctx, "Atomic", decimal.NewFromInt(1000))
	require.NoError(t, err)

	broken := newIntegrationLedger(database, failingTransactions{repository.NewTransactionRepository()})
	err = broken.Withdraw(ctx, id, decimal.NewFromInt(300))
	assert.ErrorIs(t, err, ErrStorageFailure)
	err = broken.Deposit(ctx, id, decimal.NewFromInt(300))
	assert.ErrorIs(t, err, ErrStorageFailure)

	_, err = broken.CreateAccount(ctx, "Ghost", decimal.NewFromInt(50))
	assert.ErrorIs(t, err, ErrStorageFailure)

	var ghosts int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM accounts WHERE name = 'Ghost'`).Scan(&ghosts))
	assert.Zero(t, ghosts, "failed creation must not leave an account row")

	balance, err := newIntegrationLedger(database, nil).GetBalance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 1, countTransactions(t, database, id))
	assertInvariant(t, database, id)
}

func TestLedger_Integration_AmountScale(t *testing.T) {
	database := integrationDB(t)
	ledger := newIntegrationLedger(database, nil)
	ctx := context.Background()

	id, err := ledger.CreateAccount(ctx, "Scale", decimal.NewFromInt(1))
	require.NoError(t, err)

	err = ledger.Withdraw(ctx, id, decimal.RequireFromString("0.00005"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	err = ledger.Deposit(ctx, id, decimal.RequireFromString("0.00001"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, 1, countTransactions(t, database, id))
	assertInvariant(t, database, id)

	require.NoError(t, ledger.Withdraw(ctx, id, decimal.RequireFromString("0.0001")))
	balance, err := ledger.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("0.9999")), "balance %s", balance)
	assertInvariant(t, database, id)
}
