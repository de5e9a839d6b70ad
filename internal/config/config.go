package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort string
	RedisURL   string

	JWTSecret string

	AccessTokenMaxAge  int
	RefreshTokenMaxAge int
	// RecentLoginWindow bounds the access-token age accepted for account deletion.
	RecentLoginWindow time.Duration

	FirebaseProjectID   string
	FirebaseClientEmail string
	FirebasePrivateKey  string
	// ExpoPushEnabled routes Expo push tokens through Expo's Push API.
	ExpoPushEnabled bool

	WorkerCount          int
	WSInsecureSkipVerify bool

	HotspotDays int
	HotspotTopN int
	LocationTTL time.Duration
}

// PushEnabled reports whether FCM credentials are configured.
func (c *Config) PushEnabled() bool {
	return c.FirebaseProjectID != "" && c.FirebaseClientEmail != "" && c.FirebasePrivateKey != ""
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnv("DB_SSLMODE", "require"),

		ServerPort: getEnv("SERVER_PORT", "8080"),
		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		AccessTokenMaxAge:  getEnvInt("ACCESS_TOKEN_MAX_AGE", 900),
		RefreshTokenMaxAge: getEnvInt("REFRESH_TOKEN_MAX_AGE", 2592000),
		RecentLoginWindow:  time.Duration(getEnvInt("RECENT_LOGIN_WINDOW", 300)) * time.Second,

		FirebaseProjectID:   os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseClientEmail: os.Getenv("FIREBASE_CLIENT_EMAIL"),
		FirebasePrivateKey:  os.Getenv("FIREBASE_PRIVATE_KEY"),
		ExpoPushEnabled:     os.Getenv("EXPO_PUSH_ENABLED") == "true",

		WorkerCount:          getEnvInt("WORKER_COUNT", 2),
		WSInsecureSkipVerify: os.Getenv("WS_INSECURE_SKIP_VERIFY") == "true",

		HotspotDays: getEnvInt("HOTSPOT_DAYS", 30),
		HotspotTopN: getEnvInt("HOTSPOT_TOP_N", 8),
		LocationTTL: time.Duration(getEnvInt("LOCATION_TTL", 7200)) * time.Second,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt falls back on missing, malformed or non-positive values.
func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
