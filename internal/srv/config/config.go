package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const paramFilename = "param.yaml"
const stateFilename = "state.yaml"
const envFilename = ".env"

// Environment variables overriding param.yaml
const (
	EnvNatsUrl     = "SUNSHINE_NATS_URL"
	EnvApiKey      = "SUNSHINE_API_KEY"
	EnvAssetBucket = "SUNSHINE_ASSET_BUCKET"
)

type ServerConfig struct {
	ConfigDir      string
	DebugMode      bool
	SimulationMode bool

	*ServerParam
	*ServerState
}

func NewServerConfig(configDir string, debugMode bool, simulationMode bool) *ServerConfig {
	serverConfig := &ServerConfig{
		ConfigDir:      configDir,
		DebugMode:      debugMode,
		SimulationMode: simulationMode,
	}

	// Check Configuration folder
	_, err := os.Stat(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Printf("Creation of config folder: %s", configDir)
			err = os.Mkdir(configDir, 0770)
			if err != nil {
				logrus.Fatalf("Unable to create config folder: %v\n", err)
			}
		} else {
			logrus.Fatalf("Unable to access config folder: %s", configDir)
		}
	}

	serverConfig.ServerParam, err = serverConfig.loadParam()
	if err != nil {
		logrus.Fatalf("%v\n", err)
	}

	// Open state file
	serverConfig.ServerState = NewServerState(serverConfig.GetCompleteStateFilename())

	return serverConfig
}

// loadParam reads param.yaml (created from defaults when missing), then applies .env and environment overrides
func (sc *ServerConfig) loadParam() (*ServerParam, error) {
	rawConfig, err := os.ReadFile(sc.GetCompleteParamFilename())
	if err != nil {
		logrus.Infof("Create default param file")
		rawConfig = ParamDefaultFile
	}

	serverParam, err := parseServerParam(rawConfig)
	if err != nil {
		return nil, err
	}
	if !fileExists(sc.GetCompleteParamFilename()) {
		sc.ServerParam = serverParam
		sc.SaveParam()
	}

	if err := godotenv.Load(sc.GetCompleteEnvFilename()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Unable to load %s: %v", sc.GetCompleteEnvFilename(), err)
	}
	applyEnv(serverParam)

	if err := serverParam.Validate(); err != nil {
		return nil, err
	}
	return serverParam, nil
}

func applyEnv(serverParam *ServerParam) {
	if v := os.Getenv(EnvNatsUrl); v != "" {
		serverParam.SyncParam.NatsUrl = v
	}
	if v := os.Getenv(EnvApiKey); v != "" {
		serverParam.ApiParam.ApiKey = v
	}
	if v := os.Getenv(EnvAssetBucket); v != "" {
		serverParam.SyncParam.AssetBucket = v
	}
}

func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

func (sc *ServerConfig) GetCompleteParamFilename() string {
	return filepath.Join(sc.ConfigDir, paramFilename)
}

func (sc *ServerConfig) GetCompleteStateFilename() string {
	return filepath.Join(sc.ConfigDir, stateFilename)
}

func (sc *ServerConfig) GetCompleteEnvFilename() string {
	return filepath.Join(sc.ConfigDir, envFilename)
}

func (sc *ServerConfig) SaveParam() {
	logrus.Debugf("Save param file: %s", sc.GetCompleteParamFilename())
	rawConfig, err := yaml.Marshal(*sc.ServerParam)
	if err != nil {
		logrus.Fatalf("Unable to serialize param file: %v\n", err)
	}
	err = os.WriteFile(sc.GetCompleteParamFilename(), rawConfig, 0660)
	if err != nil {
		logrus.Fatalf("Unable to save param file: %v\n", err)
	}
}
