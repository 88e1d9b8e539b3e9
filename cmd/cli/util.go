package main

import (
	"context"
	"math/big"
	"time"

	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/rs/zerolog"
)

func contextWithLogger(log zerolog.Logger, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return logger.WithContext(ctx, log), cancel
}

func ratString(r *big.Rat) string {
	if r == nil {
		return "0.00"
	}
	return r.FloatString(2)
}
