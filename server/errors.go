package server

import (
	"github.com/pkg/errors"
)

var maskAny = errors.WithStack
