package constants

import (
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type ContextKey string

const (
	PoolKey    ContextKey = "pool"
	TxKey      ContextKey = "tx"
	UserKey    ContextKey = "user"
	LoggerKey  ContextKey = "logger"
	ParamsKey  ContextKey = "params"
	RequestEnd ContextKey = "request-end"
)

var Validate = validator.New(validator.WithRequiredStructEnabled())

var DefaultLogLevel = logrus.InfoLevel
