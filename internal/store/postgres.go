package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/printmate/order-service/internal/models/errs"
	"github.com/printmate/order-service/internal/models/order"
	"github.com/printmate/order-service/pkg/logger"
)

// Postgres is the durable order store. The in-memory store remains the
// reference implementation; this one is selected when a DSN is set.
type Postgres struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	trm    *manager.Manager
	logger logger.Logger
}

func NewPostgres(
	db *sql.DB, getter *trmsql.CtxGetter, trm *manager.Manager, logger logger.Logger,
) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}

	return &Postgres{db: db, getter: getter, trm: trm, logger: logger}, nil
}

var _ OrderStore = (*Postgres)(nil)

const orderColumns = `id, requester_id, artifact_ref, filename, payment_handle,
	currency, status, amount_due, unit_count, created_at, updated_at`

// Bootstrap creates the orders table if it does not exist yet.
func (p *Postgres) Bootstrap(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS orders (
			requester_id   text PRIMARY KEY,
			id             uuid NOT NULL,
			artifact_ref   text NOT NULL,
			filename       text NOT NULL,
			payment_handle text NOT NULL DEFAULT '',
			currency       text NOT NULL,
			status         text NOT NULL,
			amount_due     bigint NOT NULL,
			unit_count     integer NOT NULL,
			created_at     timestamptz NOT NULL DEFAULT now(),
			updated_at     timestamptz NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS orders_payment_handle_key
			ON orders (payment_handle) WHERE payment_handle <> '';
	`

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("bootstrap orders table: %w", err)
	}

	return nil
}

func (p *Postgres) Put(ctx context.Context, o *order.Order) (*order.Order, error) {
	var replaced *order.Order

	err := p.trm.Do(ctx, func(ctx context.Context) error {
		const selectQuery = `SELECT ` + orderColumns +
			` FROM orders WHERE requester_id = $1 FOR UPDATE`

		prev := new(order.Order)
		err := p.scanOrder(p.getter.DefaultTrOrDB(ctx, p.db).
			QueryRowContext(ctx, selectQuery, o.RequesterID), prev)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			replaced = nil
		case err != nil:
			return err
		default:
			replaced = prev
		}

		const upsertQuery = `
			INSERT INTO orders (id, requester_id, artifact_ref, filename,
				payment_handle, currency, status, amount_due, unit_count,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (requester_id) DO UPDATE SET
				id = EXCLUDED.id,
				artifact_ref = EXCLUDED.artifact_ref,
				filename = EXCLUDED.filename,
				payment_handle = EXCLUDED.payment_handle,
				currency = EXCLUDED.currency,
				status = EXCLUDED.status,
				amount_due = EXCLUDED.amount_due,
				unit_count = EXCLUDED.unit_count,
				created_at = EXCLUDED.created_at,
				updated_at = EXCLUDED.updated_at
		`

		_, err = p.getter.DefaultTrOrDB(ctx, p.db).ExecContext(ctx, upsertQuery,
			o.ID, o.RequesterID, o.ArtifactRef, o.Filename, o.PaymentHandle,
			o.Currency, o.Status, o.AmountDue, o.UnitCount, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: payment handle", errs.ErrDataConflict)
			}
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return replaced, nil
}

func (p *Postgres) Get(ctx context.Context, requesterID string) (*order.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE requester_id = $1`

	o := new(order.Order)
	err := p.scanOrder(p.getter.DefaultTrOrDB(ctx, p.db).
		QueryRowContext(ctx, query, requesterID), o)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return o, nil
}

func (p *Postgres) GetByPaymentHandle(ctx context.Context, handle string) (*order.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE payment_handle = $1`

	o := new(order.Order)
	err := p.scanOrder(p.getter.DefaultTrOrDB(ctx, p.db).
		QueryRowContext(ctx, query, handle), o)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return o, nil
}

func (p *Postgres) Transition(
	ctx context.Context, requesterID string, from []order.Status, to order.Status,
) (*order.Order, error) {
	query := `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE requester_id = $1 AND status IN (` + statusList(from) + `)
		RETURNING ` + orderColumns

	o := new(order.Order)
	err := p.scanOrder(p.getter.DefaultTrOrDB(ctx, p.db).
		QueryRowContext(ctx, query, requesterID, to), o)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, p.guardFailure(ctx, requesterID)
		}
		return nil, err
	}

	return o, nil
}

func (p *Postgres) AttachPayment(
	ctx context.Context, requesterID string, orderID uuid.UUID, handle string,
) (*order.Order, error) {
	// The id predicate rejects a handle priced for an order that has
	// since been replaced by a newer upload.
	query := `
		UPDATE orders SET payment_handle = $2, status = $3, updated_at = now()
		WHERE requester_id = $1 AND id = $4 AND status = $5
		RETURNING ` + orderColumns

	o := new(order.Order)
	err := p.scanOrder(p.getter.DefaultTrOrDB(ctx, p.db).
		QueryRowContext(ctx, query, requesterID, handle, order.AWAITING, orderID, order.PENDING), o)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, p.guardFailure(ctx, requesterID)
		}
		return nil, err
	}

	return o, nil
}

func (p *Postgres) Remove(ctx context.Context, requesterID string) error {
	const query = `DELETE FROM orders WHERE requester_id = $1`

	if _, err := p.getter.DefaultTrOrDB(ctx, p.db).
		ExecContext(ctx, query, requesterID); err != nil {
		return err
	}

	return nil
}

func (p *Postgres) ListStale(
	ctx context.Context, statuses []order.Status, cutoff time.Time,
) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE status IN (` + statusList(statuses) + `) AND updated_at < $1
		ORDER BY updated_at`

	return p.queryOrders(ctx, query, cutoff)
}

func (p *Postgres) List(ctx context.Context) ([]*order.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	return p.queryOrders(ctx, query)
}

func (p *Postgres) queryOrders(
	ctx context.Context, query string, args ...interface{},
) ([]*order.Order, error) {
	rows, err := p.getter.DefaultTrOrDB(ctx, p.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err = rows.Close(); err != nil {
			p.logger.Errorf("close rows: %s", err)
		}
	}()

	orders := make([]*order.Order, 0)

	for rows.Next() {
		o := new(order.Order)
		if err = p.scanOrder(rows, o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// guardFailure distinguishes an absent order from a failed status guard.
func (p *Postgres) guardFailure(ctx context.Context, requesterID string) error {
	o, err := p.Get(ctx, requesterID)
	if err != nil {
		return err
	}

	return fmt.Errorf("%w: status %s", errs.ErrDataConflict, o.Status)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (p *Postgres) scanOrder(row rowScanner, o *order.Order) error {
	return row.Scan(
		&o.ID,
		&o.RequesterID,
		&o.ArtifactRef,
		&o.Filename,
		&o.PaymentHandle,
		&o.Currency,
		&o.Status,
		&o.AmountDue,
		&o.UnitCount,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

// statusList renders trusted status constants as a SQL IN list.
func statusList(statuses []order.Status) string {
	quoted := make([]string, len(statuses))
	for i, s := range statuses {
		quoted[i] = "'" + string(s) + "'"
	}
	return strings.Join(quoted, ", ")
}
