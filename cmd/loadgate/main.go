package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/loadwatch/loadgate/pkg/api"
	"github.com/loadwatch/loadgate/pkg/entities"
	"github.com/loadwatch/loadgate/pkg/gateways/weight"
	"github.com/loadwatch/loadgate/pkg/ledger"
	"github.com/loadwatch/loadgate/pkg/logging"
	"github.com/loadwatch/loadgate/pkg/utils"
)

func main() {
	conf := loadConfig()

	logs := logging.NewLogrus(conf.LogLevel, os.Stdout)
	logger := logs.Get("Main")
	logger.Infoln("starting load gateway")

	store, err := ledger.Open(conf.Ledger.Path)
	if err != nil {
		logger.Fatalln("failed to open ledger: ", err)
	}
	defer store.Close()

	gateway, err := weight.NewGateway(conf, store, logs.Get("Gateway"))
	if err != nil {
		logger.Fatalln("failed to start gateway: ", err)
	}
	defer gateway.Close()

	server := api.NewServer(store, gateway.Resolver(), gateway.Dispatcher(), gateway.IsConnected, logs.Get("API"))
	go func() {
		if err := server.Run(conf.Server.Port); err != nil {
			logger.Fatalln("operator API stopped: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infoln("shutting down")
}

// loadConfig reads the YAML file named by CONFIG_FILEPATH, if any, then
// applies environment overrides and defaults. Environment wins so container
// deployments can keep credentials out of the file.
func loadConfig() entities.GatewayConfig {
	conf := entities.GatewayConfig{}
	if configPath := os.Getenv("CONFIG_FILEPATH"); configPath != "" {
		parsed, err := utils.ConfigurationParser(configPath, entities.GatewayConfig{})
		if err != nil {
			panic("unable to parse configuration file: " + err.Error())
		}
		conf = parsed
	}

	overrideString(&conf.Broker.Host, "BROKER_HOST")
	overrideInt(&conf.Broker.Port, "BROKER_PORT")
	overrideString(&conf.Broker.Username, "BROKER_USERNAME")
	overrideString(&conf.Broker.Password, "BROKER_PASSWORD")
	overrideString(&conf.Broker.ClientID, "BROKER_CLIENT_ID")
	overrideString(&conf.Ledger.Path, "LEDGER_PATH")
	overrideInt(&conf.Server.Port, "SERVER_PORT")
	overrideString(&conf.LogLevel, "LOG_LEVEL")

	if conf.Broker.Port == 0 {
		conf.Broker.Port = 5671
	}
	if conf.Broker.ClientID == "" {
		conf.Broker.ClientID = "loadgate"
	}
	if conf.Ledger.Path == "" {
		conf.Ledger.Path = "loadgate.db"
	}
	if conf.Server.Port == 0 {
		conf.Server.Port = 8080
	}
	if conf.LogLevel == "" {
		conf.LogLevel = "info"
	}
	return conf
}

func overrideString(target *string, name string) {
	if value := os.Getenv(name); value != "" {
		*target = value
	}
}

func overrideInt(target *int, name string) {
	if value := os.Getenv(name); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}
