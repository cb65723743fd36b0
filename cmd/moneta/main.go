package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/monetahq/moneta/internal/clock"
	"github.com/monetahq/moneta/internal/config"
	"github.com/monetahq/moneta/internal/logger"
	"github.com/monetahq/moneta/internal/migration"
	"github.com/monetahq/moneta/internal/server"
	"github.com/monetahq/moneta/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

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
