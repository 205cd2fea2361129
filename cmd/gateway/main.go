package main

import (
	"github.com/sanarberkebayram/monetizeit/internal/apikey"
	"github.com/sanarberkebayram/monetizeit/internal/clock"
	"github.com/sanarberkebayram/monetizeit/internal/config"
	"github.com/sanarberkebayram/monetizeit/internal/gateway"
	"github.com/sanarberkebayram/monetizeit/internal/management"
	"github.com/sanarberkebayram/monetizeit/internal/observability"
	"github.com/sanarberkebayram/monetizeit/internal/quota"
	"github.com/sanarberkebayram/monetizeit/internal/ratelimit"
	"github.com/sanarberkebayram/monetizeit/internal/usage"
	"github.com/sanarberkebayram/monetizeit/pkg/kv"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		kv.Module,
		management.Module,
		apikey.Module,
		ratelimit.Module,
		quota.Module,
		usage.EmitterModule,
		gateway.Module,
	).Run()
}
