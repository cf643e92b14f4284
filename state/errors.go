package state

import "github.com/pkg/errors"

var errNotFullSetBase = errors.New("diff set's base is not a full set")
