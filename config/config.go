package config

import (
	"os"
)

// Config 回放工具的轻量配置，全部来自环境变量
type Config struct {
	AccountKey  string
	QuotesFile  string
	ActionsFile string
	OutFile     string
}

func Load() *Config {
	cfg := &Config{
		AccountKey:  getEnv("SIM_ACCOUNT_KEY", "sim_user|CNY"),
		QuotesFile:  getEnv("SIM_QUOTES_FILE", "quotes.jsonl"),
		ActionsFile: getEnv("SIM_ACTIONS_FILE", ""),
		OutFile:     getEnv("SIM_OUT_FILE", ""),
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
