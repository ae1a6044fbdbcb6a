package config

import (
	"os"
	"time"
)

// PricePlan is one purchasable credit pack. Amounts are IDR in the smallest
// unit (no fractional component).
type PricePlan struct {
	Amount  int64
	Credits int64
	Label   string
}

// DefaultPriceConfig mirrors the packs sold in production. Injected through
// Config so tests and environments can swap it without touching globals.
func DefaultPriceConfig() map[string]PricePlan {
	return map[string]PricePlan{
		"small":  {Amount: 150_000, Credits: 50, Label: "Small Credit Pack (50)"},
		"medium": {Amount: 399_000, Credits: 150, Label: "Medium Credit Pack (150)"},
		"large":  {Amount: 1_199_000, Credits: 500, Label: "Large Credit Pack (500)"},
	}
}

// Config carries everything the services need. Built once in cmd/server and
// passed down; no service reads the environment at call time.
type Config struct {
	Port        string
	AppURL      string
	DatabaseURL string
	RedisURL    string

	FirebaseCredentialsPath string

	MidtransServerKey    string
	MidtransClientKey    string
	MidtransIsProduction bool
	// GatewayTimeout bounds every outbound Midtrans call. Webhook redelivery
	// (push) and the next billing-page view (pull) are the retry mechanisms,
	// so a timed-out call is safe to drop.
	GatewayTimeout time.Duration

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3BucketName       string

	KafkaBroker       string
	ProcessVideoTopic string

	PriceConfig map[string]PricePlan
}

// Load reads configuration from the environment. cmd/server calls godotenv
// beforehand so a local .env file works the same as real env vars.
func Load() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		AppURL:      getEnv("APP_URL", "http://localhost:8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json"),

		MidtransServerKey:    os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransClientKey:    os.Getenv("MIDTRANS_CLIENT_KEY"),
		MidtransIsProduction: os.Getenv("MIDTRANS_IS_PRODUCTION") == "true",
		GatewayTimeout:       getDurationEnv("MIDTRANS_TIMEOUT", 10*time.Second),

		AWSRegion:          getEnv("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3BucketName:       os.Getenv("S3_BUCKET_NAME"),

		KafkaBroker:       getEnv("KAFKA_BROKER", "kafka:9092"),
		ProcessVideoTopic: getEnv("PROCESS_VIDEO_TOPIC", "video.process.requested"),

		PriceConfig: DefaultPriceConfig(),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
