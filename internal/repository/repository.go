// Package repository is the durable store of submitted transaction
// intents, keyed by request id. It is the sole shared mutable state
// between a submission path and its owning chain monitor's loop.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/relaynet/txrelay/internal/models"
)

// ErrConflict is returned by Save when the request id already exists.
var ErrConflict = errors.New("repository: id already exists")

// Interface is the behavior internal/chain and internal/relay depend on.
// Extracting it lets the monitor and facade be tested against a fake
// without a live Postgres instance, the same "depend on the interface,
// not the struct" shape the teacher's handlers take a *database.DB for.
type Interface interface {
	Save(ctx context.Context, req models.Request) error
	Get(ctx context.Context, id string) (*models.Request, error)
	GetPending(ctx context.Context, chain models.ChainID) ([]models.Request, error)
	UpdateMany(ctx context.Context, updates []models.Update) error
	Health(ctx context.Context) error
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id         VARCHAR(36) PRIMARY KEY,
	hash       VARCHAR(66) NOT NULL,
	tx         JSONB NOT NULL,
	mined      BOOLEAN NOT NULL DEFAULT FALSE,
	chain      INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS requests_chain_mined_idx ON requests (chain, mined);
`

// Store is the Postgres-backed Interface implementation.
type Store struct {
	db *sqlx.DB
}

// Open connects to databaseURL and ensures the schema exists.
func Open(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// row is the sqlx scan target; tx is kept as raw JSON until decoded into
// models.Request.Tx.
type row struct {
	ID        string  `db:"id"`
	Hash      string  `db:"hash"`
	TxJSON    []byte  `db:"tx"`
	Mined     bool    `db:"mined"`
	Chain     uint32  `db:"chain"`
	CreatedAt sql.NullTime `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}

func (r row) toModel() (models.Request, error) {
	var tx models.TxIntent
	if err := json.Unmarshal(r.TxJSON, &tx); err != nil {
		return models.Request{}, errors.Wrap(err, "decode tx")
	}
	req := models.Request{
		ID:    r.ID,
		Chain: models.ChainID(r.Chain),
		Hash:  r.Hash,
		Tx:    tx,
		Mined: r.Mined,
	}
	if r.CreatedAt.Valid {
		req.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		req.UpdatedAt = r.UpdatedAt.Time
	}
	return req, nil
}

func (s *Store) Save(ctx context.Context, req models.Request) error {
	txJSON, err := json.Marshal(req.Tx)
	if err != nil {
		return errors.Wrap(err, "encode tx")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests (id, hash, tx, mined, chain)
		VALUES ($1, $2, $3, $4, $5)
	`, req.ID, req.Hash, txJSON, req.Mined, uint32(req.Chain))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return errors.Wrap(err, "insert request")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Request, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `
		SELECT id, hash, tx, mined, chain, created_at, updated_at
		FROM requests WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get request")
	}
	req, err := r.toModel()
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Store) GetPending(ctx context.Context, chain models.ChainID) ([]models.Request, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, hash, tx, mined, chain, created_at, updated_at
		FROM requests WHERE chain = $1 AND mined = FALSE
	`, uint32(chain))
	if err != nil {
		return nil, errors.Wrap(err, "get pending")
	}

	out := make([]models.Request, 0, len(rows))
	for _, r := range rows {
		req, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// UpdateMany applies updates atomically. An empty batch performs zero
// SQL statements and never opens a transaction, per the repository
// contract.
func (s *Store) UpdateMany(ctx context.Context, updates []models.Update) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PreparexContext(ctx, `
		UPDATE requests SET mined = $1, hash = $2, tx = $3, updated_at = now()
		WHERE id = $4
	`)
	if err != nil {
		return errors.Wrap(err, "prepare update")
	}
	defer stmt.Close()

	for _, u := range updates {
		txJSON, err := json.Marshal(u.Tx)
		if err != nil {
			return errors.Wrapf(err, "encode tx for %s", u.ID)
		}
		if _, err := stmt.ExecContext(ctx, u.Mined, u.Hash, txJSON, u.ID); err != nil {
			return errors.Wrapf(err, "update %s", u.ID)
		}
	}

	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	// lib/pq surfaces unique_violation as SQLSTATE 23505; string-match
	// against the error text rather than asserting on *pq.Error so
	// callers that stub the driver in tests don't need a real pq.Error.
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
