package database

import (
	"errors"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// LogFailure records a storage error with the Postgres code and constraint
// when the driver supplied them. The error itself never leaves the repo.
func LogFailure(logger *zap.SugaredLogger, op string, err error) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		logger.Errorw("storage failure", "op", op, "err", err,
			"pg_code", string(pqErr.Code), "constraint", pqErr.Constraint)
		return
	}
	logger.Errorw("storage failure", "op", op, "err", err)
}
