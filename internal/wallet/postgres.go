package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("no wallet exists for user")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInput             = errors.New("input error")
)

// Tipos de operação registrados no ledger da carteira
const (
	OpCreate   = "CREATE"
	OpDeposit  = "DEPOSIT"
	OpWithdraw = "WITHDRAW"
	OpDeduct   = "DEDUCT"
	OpCredit   = "CREDIT"
)

// Wallet é o saldo corrente de um usuário. O saldo nunca fica negativo.
type Wallet struct {
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

// Postgres implementa o ledger de carteiras.
// Toda mutação de saldo é um incremento condicional atômico no banco
// (balance = balance + delta, rejeitado se o resultado ficar negativo), nunca
// read-modify-write: débitos concorrentes na mesma carteira não se perdem.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Get retorna a carteira do usuário.
func (p *Postgres) Get(ctx context.Context, userID string) (*Wallet, error) {
	var w Wallet
	err := p.db.QueryRowContext(ctx,
		`SELECT user_id, balance FROM wallets WHERE user_id=$1`, userID).
		Scan(&w.UserID, &w.Balance)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create cria a carteira com saldo zero. Idempotente: recriar não zera saldo.
func (p *Postgres) Create(ctx context.Context, userID string) (*Wallet, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId required", ErrInput)
	}
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance) VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if err := p.appendLedger(ctx, p.db, userID, OpCreate, decimal.Zero, ""); err != nil {
			return nil, err
		}
	}
	return p.Get(ctx, userID)
}

// Deposit credita amount (> 0) no saldo do usuário.
func (p *Postgres) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount must be positive", ErrInput)
	}
	return p.adjust(ctx, userID, amount, OpDeposit, "")
}

// Withdraw debita amount (> 0); falha com ErrInsufficientFunds se o saldo não cobrir.
func (p *Postgres) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: withdraw amount must be positive", ErrInput)
	}
	return p.adjust(ctx, userID, amount.Neg(), OpWithdraw, "")
}

// Deduct é o caminho de sistema (aposta, liquidação): debita amount do saldo.
// amount negativo representa crédito (pagamento de prêmio); amount zero é
// registrado mesmo assim, pela trilha de auditoria da liquidação.
func (p *Postgres) Deduct(ctx context.Context, userID string, amount decimal.Decimal, ref string) (*Wallet, error) {
	op := OpDeduct
	if amount.IsNegative() || amount.IsZero() {
		op = OpCredit
	}
	return p.adjust(ctx, userID, amount.Neg(), op, ref)
}

// adjust aplica o incremento condicional e registra a operação no ledger,
// na mesma transação.
func (p *Postgres) adjust(ctx context.Context, userID string, delta decimal.Decimal, op, ref string) (*Wallet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		UPDATE wallets
		SET balance = balance + $2, updated_at = now()
		WHERE user_id = $1 AND balance + $2 >= 0
		RETURNING balance`, userID, delta).Scan(&balance)
	if err == sql.ErrNoRows {
		// Distingue carteira ausente de saldo insuficiente
		var one int
		if e := tx.QueryRowContext(ctx, `SELECT 1 FROM wallets WHERE user_id=$1`, userID).Scan(&one); e == sql.ErrNoRows {
			return nil, ErrNotFound
		} else if e != nil {
			return nil, e
		}
		return nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, err
	}

	if err := p.appendLedger(ctx, tx, userID, op, delta, ref); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Wallet{UserID: userID, Balance: balance}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (p *Postgres) appendLedger(ctx context.Context, ex execer, userID, op string, delta decimal.Decimal, ref string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO wallet_ledger (id, user_id, operation_type, amount, ref)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.NewString(), userID, op, delta, ref)
	return err
}
