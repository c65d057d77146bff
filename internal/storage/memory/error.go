package memory

import "errors"

var (
	ErrTransactionDone = errors.New("transaction already finished")
	ErrDuplicate       = errors.New("record already exists")
)
