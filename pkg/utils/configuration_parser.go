package utils

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/loadwatch/loadgate/pkg/entities"
)

type config interface {
	entities.GatewayConfig | entities.BrokerConfig | map[string]entities.Device
}

func readTextFile(filepathName string) ([]byte, error) {
	fileContent, err := os.ReadFile(filepath.Clean(filepathName))
	return fileContent, err
}

func ConfigurationParser[T config](filepathName string, configEntity T) (T, error) {
	fileContent, err := readTextFile(filepath.Clean(filepathName))
	if err != nil {
		return configEntity, errors.Wrap(err, "failed to read configuration file")
	}

	if err := yaml.Unmarshal(fileContent, &configEntity); err != nil {
		return configEntity, errors.Wrap(err, "failed to parse configuration file")
	}
	return configEntity, nil
}
