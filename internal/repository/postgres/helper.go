package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/types"
	"github.com/getsentry/sentry-go"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StartRepositorySpan creates a new span for a repository operation
// Returns nil if Sentry is not available in the context
func StartRepositorySpan(ctx context.Context, repository, operation string, params map[string]interface{}) *sentry.Span {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "repository."+repository+"."+operation)
	if span != nil {
		span.Description = "repository." + repository + "." + operation
		span.Op = "db.postgres"
		span.SetData("repository", repository)
		span.SetData("operation", operation)
		for k, v := range params {
			span.SetData(k, v)
		}
	}

	return span
}

// FinishSpan safely finishes a span, handling nil spans
func FinishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}

// SetSpanError marks a span as failed and adds error information
func SetSpanError(span *sentry.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.Status = sentry.SpanStatusInternalError
	span.SetData("error", err.Error())
}

// dateArg passes a calendar date as YYYY-MM-DD so the DATE column never
// sees the offset of the billing location
func dateArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return types.FormatDate(*t)
}

// decodeDocument unmarshals a JSONB column. A document that does not decode
// is corrupt stored data.
func decodeDocument(raw []byte, dest interface{}, entity, id, column string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return ierr.WithError(err).
			WithHintf("stored %s of %s %s is not valid", column, entity, id).
			WithReportableDetails(map[string]any{
				"entity": entity,
				"id":     id,
				"column": column,
			}).
			Mark(ierr.ErrDataIntegrity)
	}
	return nil
}

func encodeDocument(v interface{}, entity, column string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("could not encode %s of %s", column, entity).
			Mark(ierr.ErrSystem)
	}
	return raw, nil
}

// checkVersionedUpdate turns a zero row conditional update into a version conflict
func checkVersionedUpdate(result sql.Result, entity, id string, version int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHintf("could not confirm update of %s %s", entity, id).
			Mark(ierr.ErrDatabase)
	}
	if rows == 0 {
		return ierr.NewErrorf("%s %s was modified concurrently", entity, id).
			WithHintf("%s %s no longer has version %d", entity, id, version).
			WithReportableDetails(map[string]any{
				"entity":  entity,
				"id":      id,
				"version": version,
			}).
			Mark(ierr.ErrVersionConflict)
	}
	return nil
}

// whereBuilder collects AND-ed conditions with positional arguments
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// pageClause renders ORDER BY, LIMIT and OFFSET for a filter. Sort columns
// outside allowed fall back to created_at.
func pageClause(f types.BaseFilter, allowed []string, w *whereBuilder) string {
	column := types.FILTER_DEFAULT_SORT
	for _, a := range allowed {
		if a == f.GetSort() {
			column = a
			break
		}
	}
	order := "DESC"
	if f.GetOrder() == types.OrderAsc {
		order = "ASC"
	}

	clause := fmt.Sprintf(" ORDER BY %s %s, id %s", column, order, order)
	if f.IsUnlimited() {
		return clause
	}
	w.args = append(w.args, f.GetLimit(), f.GetOffset())
	return clause + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}
