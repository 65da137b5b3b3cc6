package ddl

import (
	"context"
	"strings"

	"github.com/koustreak/relschema/internal/database"
	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/logger"
)

// Result counts what Apply did.
type Result struct {
	Applied int
	Skipped int
}

// Apply runs the plan statement by statement. Statements rejected because
// their object already exists are skipped, so applying the same plan twice
// leaves the store unchanged. Any other failure stops the run.
func Apply(ctx context.Context, exec database.Executor, plan *Plan, log *logger.Logger) (Result, error) {
	if log == nil {
		log = logger.Nop()
	}
	var res Result
	for _, stmt := range plan.Statements {
		sqlText := strings.TrimSpace(stmt.SQL)
		if sqlText == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, errs.Wrap(errs.ErrKindTimeout, "ddl apply interrupted", err)
		}
		if _, err := exec.Exec(ctx, sqlText); err != nil {
			if errs.IsAlreadyExists(err) {
				log.InfoWith("DDL skipped (already exists)", map[string]any{
					"phase":  stmt.Phase.String(),
					"object": stmt.Object,
				})
				res.Skipped++
				continue
			}
			log.ErrorWith("DDL apply failed", err, map[string]any{"object": stmt.Object})
			return res, errs.Wrap(errs.KindOf(err), "apply "+stmt.Object, err)
		}
		log.DebugWith("DDL applied", map[string]any{
			"phase":  stmt.Phase.String(),
			"object": stmt.Object,
		})
		res.Applied++
	}
	return res, nil
}
