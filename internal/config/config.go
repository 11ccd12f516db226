package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the gateway reads from the environment.
type Config struct {
	Port           int
	VistaAPIKey    string
	VistaBaseURL   string
	CDNHost        string // canonical photo host; empty keeps upstream hosts
	RedisAddr      string // empty means in-memory caches only
	RedisPassword  string
	RedisDB        int
	MetricsPort    int
	RetryMax       int
	RequestTimeout time.Duration
	PhotosEndpoint bool // dedicated /imoveis/fotos endpoint, off by default
	UpstreamRPS    float64
}

func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:           GetInt("PORT", 4010),
		VistaAPIKey:    Must("VISTA_API_KEY"),
		VistaBaseURL:   getEnv("VISTA_BASE_URL", "https://api.vistahost.com.br"),
		CDNHost:        os.Getenv("PHOTO_CDN_HOST"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        GetInt("REDIS_DB", 0),
		MetricsPort:    GetInt("METRICS_PORT", 9090),
		RetryMax:       GetInt("VISTA_RETRY_MAX", 1),
		RequestTimeout: time.Duration(GetInt("VISTA_TIMEOUT_MS", 8000)) * time.Millisecond,
		PhotosEndpoint: os.Getenv("VISTA_PHOTOS_ENDPOINT") == "1",
		UpstreamRPS:    getFloat("VISTA_RPS", 8),
	}
}

func Must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func GetInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
