package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	DBDSN   string
	LogFile string
	WebDir  string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "librarium.db" // sqlite file in project root
	}
	logFile := os.Getenv("LOG_FILE")
	webDir := os.Getenv("WEB_DIR")
	if webDir == "" {
		webDir = "./web"
	}

	cfg := Config{Port: port, DBDSN: dsn, LogFile: logFile, WebDir: webDir}
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s WEB_DIR=%s", cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.WebDir)
	return cfg
}
