package postgres

import (
	"context"
	"time"

	"github.com/flexprice/retainer/internal/domain/client"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/postgres"
	"github.com/flexprice/retainer/internal/types"
	"github.com/lib/pq"
)

const clientColumns = `id, name, email, fee_schedule, installments, last_paid_period_end,
	accumulated_difference, version, status, created_at, updated_at, created_by, updated_by`

type clientRow struct {
	ID                    string     `db:"id"`
	Name                  string     `db:"name"`
	Email                 string     `db:"email"`
	FeeSchedule           []byte     `db:"fee_schedule"`
	Installments          []byte     `db:"installments"`
	LastPaidPeriodEnd     *time.Time `db:"last_paid_period_end"`
	AccumulatedDifference int64      `db:"accumulated_difference"`
	Version               int64      `db:"version"`
	types.BaseModel
}

type clientRepository struct {
	client postgres.IClient
	logger *logger.Logger
	loc    *time.Location
}

// NewClientRepository creates a client repository. Stored dates are read
// back as calendar days in loc.
func NewClientRepository(db postgres.IClient, logger *logger.Logger, loc *time.Location) client.Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &clientRepository{client: db, logger: logger, loc: loc}
}

func (r *clientRepository) Create(ctx context.Context, c *client.Client) error {
	span := StartRepositorySpan(ctx, "client", "create", map[string]interface{}{
		"client_id": c.ID,
	})
	defer FinishSpan(span)

	schedule, err := encodeDocument(c.FeeSchedule, "client", "fee_schedule")
	if err != nil {
		return err
	}
	installments, err := encodeDocument(c.Installments, "client", "installments")
	if err != nil {
		return err
	}

	query := `
	INSERT INTO clients (
		id, name, email, fee_schedule, installments, last_paid_period_end,
		accumulated_difference, version, status, created_at, updated_at, created_by, updated_by
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
	)`

	r.logger.Debugw("creating client", "client_id", c.ID, "name", c.Name)

	_, err = r.client.Querier(ctx).ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.Email,
		schedule,
		installments,
		dateArg(c.LastPaidPeriodEnd),
		c.AccumulatedDifference,
		c.Version,
		c.Status,
		c.CreatedAt,
		c.UpdatedAt,
		c.CreatedBy,
		c.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		return postgres.MapError(err, "client")
	}
	return nil
}

func (r *clientRepository) Get(ctx context.Context, id string) (*client.Client, error) {
	span := StartRepositorySpan(ctx, "client", "get", map[string]interface{}{
		"client_id": id,
	})
	defer FinishSpan(span)

	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND status = $2`

	var row clientRow
	if err := r.client.Querier(ctx).GetContext(ctx, &row, query, id, types.StatusPublished); err != nil {
		SetSpanError(span, err)
		mapped := postgres.MapError(err, "client")
		if ierr.IsNotFound(mapped) {
			return nil, ierr.WithError(client.ErrClientNotFound).
				WithHintf("client %s not found", id).
				WithReportableDetails(map[string]any{"client_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, mapped
	}

	c, err := r.toDomain(&row)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}
	return c, nil
}

func (r *clientRepository) Update(ctx context.Context, c *client.Client) error {
	span := StartRepositorySpan(ctx, "client", "update", map[string]interface{}{
		"client_id": c.ID,
		"version":   c.Version,
	})
	defer FinishSpan(span)

	schedule, err := encodeDocument(c.FeeSchedule, "client", "fee_schedule")
	if err != nil {
		return err
	}
	installments, err := encodeDocument(c.Installments, "client", "installments")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	updatedBy := types.GetUserID(ctx)

	query := `
	UPDATE clients SET
		name = $1,
		email = $2,
		fee_schedule = $3,
		installments = $4,
		last_paid_period_end = $5,
		accumulated_difference = $6,
		version = version + 1,
		updated_at = $7,
		updated_by = $8
	WHERE id = $9 AND version = $10 AND status = $11`

	r.logger.Debugw("updating client", "client_id", c.ID, "version", c.Version)

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		c.Name,
		c.Email,
		schedule,
		installments,
		dateArg(c.LastPaidPeriodEnd),
		c.AccumulatedDifference,
		now,
		updatedBy,
		c.ID,
		c.Version,
		types.StatusPublished,
	)
	if err != nil {
		SetSpanError(span, err)
		return postgres.MapError(err, "client")
	}
	if err := checkVersionedUpdate(result, "client", c.ID, c.Version); err != nil {
		SetSpanError(span, err)
		return err
	}

	c.Version++
	c.UpdatedAt = now
	c.UpdatedBy = updatedBy
	return nil
}

func (r *clientRepository) List(ctx context.Context, filter *types.ClientFilter) ([]*client.Client, error) {
	if filter == nil {
		filter = types.NewClientFilter()
	}

	span := StartRepositorySpan(ctx, "client", "list", map[string]interface{}{
		"limit":  filter.GetLimit(),
		"offset": filter.GetOffset(),
	})
	defer FinishSpan(span)

	w := r.where(filter)
	query := `SELECT ` + clientColumns + ` FROM clients` + w.sql() +
		pageClause(filter, []string{"created_at", "updated_at", "name"}, w)

	var rows []clientRow
	if err := r.client.Querier(ctx).SelectContext(ctx, &rows, query, w.args...); err != nil {
		SetSpanError(span, err)
		return nil, postgres.MapError(err, "client")
	}

	clients := make([]*client.Client, 0, len(rows))
	for i := range rows {
		c, err := r.toDomain(&rows[i])
		if err != nil {
			SetSpanError(span, err)
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, nil
}

func (r *clientRepository) Count(ctx context.Context, filter *types.ClientFilter) (int, error) {
	if filter == nil {
		filter = types.NewClientFilter()
	}

	span := StartRepositorySpan(ctx, "client", "count", nil)
	defer FinishSpan(span)

	w := r.where(filter)
	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM clients`+w.sql(), w.args...); err != nil {
		SetSpanError(span, err)
		return 0, postgres.MapError(err, "client")
	}
	return count, nil
}

func (r *clientRepository) where(filter *types.ClientFilter) *whereBuilder {
	w := &whereBuilder{}
	w.add("status = $%d", filter.GetStatus())
	if len(filter.ClientIDs) > 0 {
		w.add("id = ANY($%d)", pq.Array(filter.ClientIDs))
	}
	if filter.Email != "" {
		w.add("email = $%d", filter.Email)
	}
	if filter.Name != "" {
		w.add("name ILIKE $%d", "%"+filter.Name+"%")
	}
	return w
}

func (r *clientRepository) toDomain(row *clientRow) (*client.Client, error) {
	c := &client.Client{
		ID:                    row.ID,
		Name:                  row.Name,
		Email:                 row.Email,
		LastPaidPeriodEnd:     row.LastPaidPeriodEnd,
		AccumulatedDifference: row.AccumulatedDifference,
		Version:               row.Version,
		BaseModel:             row.BaseModel,
	}
	if err := decodeDocument(row.FeeSchedule, &c.FeeSchedule, "client", row.ID, "fee_schedule"); err != nil {
		return nil, err
	}
	if err := decodeDocument(row.Installments, &c.Installments, "client", row.ID, "installments"); err != nil {
		return nil, err
	}
	c.NormalizeDates(r.loc)
	if err := c.CheckIntegrity(); err != nil {
		r.logger.Errorw("stored client failed integrity check", "client_id", row.ID, "error", err)
		return nil, err
	}
	return c, nil
}
