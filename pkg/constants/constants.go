package constants

import (
	"github.com/go-playground/validator/v10"
)

type ContextKey string

const (
	PoolKey     ContextKey = "pool"
	TxKey       ContextKey = "tx"
	LoggerKey   ContextKey = "logger"
	ParamsKey   ContextKey = "params"
	TenantIDKey ContextKey = "tenantID"
	UserIDKey   ContextKey = "userID"

	RequestStart ContextKey = "requestStart"
)

var Validate = validator.New()
