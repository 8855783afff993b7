package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/audit"
	"github.com/emadn88/elmcorner/internal/bill"
	"github.com/emadn88/elmcorner/internal/clock"
	"github.com/emadn88/elmcorner/internal/config"
	"github.com/emadn88/elmcorner/internal/consumption"
	"github.com/emadn88/elmcorner/internal/locker"
	"github.com/emadn88/elmcorner/internal/migration"
	"github.com/emadn88/elmcorner/internal/notification"
	"github.com/emadn88/elmcorner/internal/observability"
	"github.com/emadn88/elmcorner/internal/paymentlink"
	paymentgateway "github.com/emadn88/elmcorner/internal/providers/payment"
	"github.com/emadn88/elmcorner/internal/providers/whatsapp"
	"github.com/emadn88/elmcorner/internal/ratelimit"
	"github.com/emadn88/elmcorner/internal/roster"
	"github.com/emadn88/elmcorner/internal/salary"
	"github.com/emadn88/elmcorner/internal/server"
	"github.com/emadn88/elmcorner/internal/studentpackage"
	"github.com/emadn88/elmcorner/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		locker.Module,
		ratelimit.Module,

		// Providers
		whatsapp.Module,
		paymentgateway.Module,

		// Domains
		audit.Module,
		roster.Module,
		bill.Module,
		studentpackage.Module,
		consumption.Module,
		paymentlink.Module,
		notification.Module,
		salary.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
