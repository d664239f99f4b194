package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Round  RoundConfig
	Auth   AuthConfig
}

type ServerConfig struct {
	Address string
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
}

// RoundConfig 回合簽名相關設定
// Secret 為空時簽名相關端點會回傳 500，不會退回未簽名模式
type RoundConfig struct {
	Secret string
}

// AuthConfig 頻道授權 token 的簽發設定
type AuthConfig struct {
	Secret string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./internal/config")
	viper.AddConfigPath(".")

	// 祕密值允許用環境變數覆蓋，避免寫進配置文件
	viper.BindEnv("round.secret", "ROUND_SECRET")
	viper.BindEnv("auth.secret", "AUTH_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
