package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration. Values come from an optional YAML
// file first; environment variables always win.
type Config struct {
	AppPort        string        `yaml:"app_port"`
	AppEnv         string        `yaml:"app_env"`
	AWSRegion      string        `yaml:"aws_region"`
	AWSEndpointURL string        `yaml:"aws_endpoint_url"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string        `yaml:"aws_access_key_id"`
	AWSSecretKey   string        `yaml:"aws_secret_access_key"`
	DynamoTables   DynamoTables  `yaml:"dynamo_tables"`
	S3BucketName   string        `yaml:"s3_bucket_name"`
	JWTSecret      string        `yaml:"jwt_secret"`
	JWTExpiry      time.Duration `yaml:"jwt_expiry"`
	OTPTTL         time.Duration `yaml:"otp_ttl"`
	SMTPHost       string        `yaml:"smtp_host"`
	SMTPPort       string        `yaml:"smtp_port"`
	SMTPFrom       string        `yaml:"smtp_from"`
	SMTPUsername   string        `yaml:"smtp_username"`
	SMTPPassword   string        `yaml:"smtp_password"`
	AuditTopicARN  string        `yaml:"audit_topic_arn"` // optional SNS fan-out for audit records
	AllowedOrigins []string      `yaml:"allowed_origins"` // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users      string `yaml:"users"`
	UserEmails string `yaml:"user_emails"`
	OTPs       string `yaml:"otps"`
	Exams      string `yaml:"exams"`
	Attempts   string `yaml:"attempts"`
	AuditLogs  string `yaml:"audit_logs"`
	Materials  string `yaml:"materials"`
}

// Load reads configuration from environment variables only.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads path (if not empty) as YAML, then applies environment
// variables and defaults, then validates.
func LoadFile(path string) (*Config, error) {
	var base Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &base); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg := &Config{
		AppPort:        getEnv("APP_PORT", or(base.AppPort, "3000")),
		AppEnv:         getEnv("APP_ENV", or(base.AppEnv, "development")),
		AWSRegion:      getEnv("AWS_REGION", or(base.AWSRegion, "us-east-1")),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", base.AWSEndpointURL),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", base.AWSAccessKeyID),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", base.AWSSecretKey),
		DynamoTables: DynamoTables{
			Users:      getEnv("DYNAMO_TABLE_USERS", or(base.DynamoTables.Users, "users")),
			UserEmails: getEnv("DYNAMO_TABLE_USER_EMAILS", or(base.DynamoTables.UserEmails, "user_emails")),
			OTPs:       getEnv("DYNAMO_TABLE_OTPS", or(base.DynamoTables.OTPs, "otps")),
			Exams:      getEnv("DYNAMO_TABLE_EXAMS", or(base.DynamoTables.Exams, "exams")),
			Attempts:   getEnv("DYNAMO_TABLE_ATTEMPTS", or(base.DynamoTables.Attempts, "exam_attempts")),
			AuditLogs:  getEnv("DYNAMO_TABLE_AUDIT_LOGS", or(base.DynamoTables.AuditLogs, "audit_logs")),
			Materials:  getEnv("DYNAMO_TABLE_MATERIALS", or(base.DynamoTables.Materials, "materials")),
		},
		S3BucketName:  getEnv("S3_BUCKET_NAME", or(base.S3BucketName, "edusphere-materials")),
		JWTSecret:     getEnv("JWT_SECRET", base.JWTSecret),
		JWTExpiry:     getEnvDuration("JWT_EXPIRY", orDur(base.JWTExpiry, 24*time.Hour)),
		OTPTTL:        getEnvDuration("OTP_TTL", orDur(base.OTPTTL, 10*time.Minute)),
		SMTPHost:      getEnv("SMTP_HOST", or(base.SMTPHost, "localhost")),
		SMTPPort:      getEnv("SMTP_PORT", or(base.SMTPPort, "1025")),
		SMTPFrom:      getEnv("SMTP_FROM", or(base.SMTPFrom, "noreply@edusphere.local")),
		SMTPUsername:  getEnv("SMTP_USERNAME", base.SMTPUsername),
		SMTPPassword:  getEnv("SMTP_PASSWORD", base.SMTPPassword),
		AuditTopicARN: getEnv("AUDIT_TOPIC_ARN", base.AuditTopicARN),
	}

	origins := base.AllowedOrigins
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cfg.AllowedOrigins = origins

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive")
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if _, err := strconv.Atoi(c.SMTPPort); err != nil {
		return fmt.Errorf("SMTP_PORT must be numeric")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orDur(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
