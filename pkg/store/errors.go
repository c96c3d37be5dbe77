package store

import "errors"

// ErrStoreFailed wraps connectivity or constraint failures from the store
// writer, classified per spec §7 rule 5: rollback, DLQ, best-effort
// failed-status write, then commit the offset.
var ErrStoreFailed = errors.New("store failed")
