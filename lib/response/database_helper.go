package response

import (
	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/hrdesk-backend/lib/database"
)

// DBError classifies a persistence error into the AppError taxonomy.
// notFound is returned for missing rows; context is used for logging.
func DBError(err error, notFound AppError, context string) error {
	if err == nil {
		return nil
	}
	switch {
	case database.IsNotFound(err):
		return notFound
	case database.IsDuplicateKey(err):
		return ErrConflict
	case database.IsForeignKeyViolation(err):
		return ErrInvalidInput.WithMessage("Referenced record does not exist")
	}
	log.Error("%s: %v", context, err)
	return NewErrorWithDetails(ErrorCodeDatabaseError, "Database operation failed", 500, context)
}
