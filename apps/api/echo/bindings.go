package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
)

var orderingParam = "ordering"

// Ordering binds `?ordering=name,-created_at` to DB orderings.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// IDsRequest binds the `?id=` query parameters of bulk endpoints.
type IDsRequest struct {
	IDs []string `query:"id"`
}

func (r *IDsRequest) Bind(ctx echo.Context) {
	r.IDs = core.UniqueStrings(ctx.QueryParams()["id"])
}

// contextObject returns the object a detail middleware stored in the context.
func contextObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(objectContextKey).(T)
	if !ok {
		return obj, errors.Wrap(errObjectNotFoundInCtx, "retrieving object from context")
	}
	return obj, nil
}
