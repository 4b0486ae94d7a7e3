package main

import (
	"github.com/OFFIS-RIT/segbench/internal/bootstrap"
	"github.com/OFFIS-RIT/segbench/internal/server"
	"github.com/OFFIS-RIT/segbench/internal/util"
)

func main() {
	util.LoadEnv()
	bootstrap.InitLogger("server")

	server.Init()
}
