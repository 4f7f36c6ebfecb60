package config

import (
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	appOnce   sync.Once
	appConfig *AppConfig
)

// AppConfig 应用级配置，从 config.yaml 读取，缺省有默认值
type AppConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Logger struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"logger"`
	Storage struct {
		Type string `yaml:"type"` // "minio" 或 "s3"
	} `yaml:"storage"`
	Redis struct {
		Addr string `yaml:"addr"`
		DB   int    `yaml:"db"`
	} `yaml:"redis"`
	Upload struct {
		BatchSize            int           `yaml:"batchSize"`
		MaxRetries           int           `yaml:"maxRetries"`
		AttemptTimeout       time.Duration `yaml:"attemptTimeout"`
		BatchTimeout         time.Duration `yaml:"batchTimeout"`
		InterBatchDelay      time.Duration `yaml:"interBatchDelay"`
		CompressionThreshold int64         `yaml:"compressionThreshold"`
		MaxImageDimension    int           `yaml:"maxImageDimension"`
	} `yaml:"upload"`
}

// GetAppConfig 读取 config.yaml；文件不存在时全部走默认值
func GetAppConfig() *AppConfig {
	appOnce.Do(func() {
		appConfig = &AppConfig{}
		appConfig.Server.Addr = ":8080"
		appConfig.Logger.Level = "info"
		appConfig.Logger.Encoding = "json"
		appConfig.Storage.Type = "minio"
		appConfig.Redis.Addr = "localhost:6379"

		data, err := os.ReadFile("config.yaml")
		if err != nil {
			log.Printf("Warning: config.yaml not found, using defaults")
			return
		}

		if err := yaml.Unmarshal(data, appConfig); err != nil {
			log.Printf("Warning: failed to parse config.yaml, using defaults: %v", err)
		}
	})
	return appConfig
}
