// internal/config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// AppConfig はコースの「論理日」まわりの挙動を決める設定です。
// DayStartHour は日の境界時刻 (5なら朝5時切り替わり)。
type AppConfig struct {
	Name               string `mapstructure:"name"`
	FrontendURL        string `mapstructure:"frontend_url"`
	DayStartHour       int    `mapstructure:"day_start_hour"`
	DefaultTzOffsetMin int    `mapstructure:"default_tz_offset_min"`
	AutosaveIntervalS  int    `mapstructure:"autosave_interval_sec"`
	DayPollIntervalS   int    `mapstructure:"day_poll_interval_sec"`
	MaxDaysCount       int    `mapstructure:"max_days_count"`
}

type JWTConfig struct {
	SecretKey      string        `mapstructure:"secret_key"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type SESConfig struct {
	Region          string `mapstructure:"region"`
	AuthType        string `mapstructure:"auth_type"` // "static_credentials" or "iam_role"
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	From            string `mapstructure:"from"`
}

// MailerConfig は使用するメール送信方式を選択します ("log", "smtp", "ses")
type MailerConfig struct {
	Type string `mapstructure:"type"`
}

type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	From string `mapstructure:"from"`
}

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	CORS     CORSConfig     `mapstructure:"cors"`
	App      AppConfig      `mapstructure:"app"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Mailer   MailerConfig   `mapstructure:"mailer"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	SES      SESConfig      `mapstructure:"ses"`
}

var Cfg Config

func LoadConfig(path string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AddConfigPath(".")

	// 環境変数でも上書きできるようにする (例: APP_JWT_SECRET_KEY)
	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Warning: Config file not found. Using default settings or environment variables if available.")
		} else {
			log.Printf("Error reading config file: %s\n", err)
			return err
		}
	}

	if err := viper.Unmarshal(&Cfg); err != nil {
		log.Printf("Error unmarshalling config: %s\n", err)
		return err
	}

	// --- デフォルト値の設定 ---
	if Cfg.Server.Port == "" {
		Cfg.Server.Port = DefaultServerPort
	}
	if Cfg.Log.Level == "" {
		Cfg.Log.Level = DefaultLogLevel
	}
	if Cfg.App.Name == "" {
		Cfg.App.Name = AppName
	}
	if Cfg.App.DayStartHour < 0 || Cfg.App.DayStartHour > 23 {
		log.Printf("Invalid day_start_hour %d, using default %d", Cfg.App.DayStartHour, DefaultDayStartHour)
		Cfg.App.DayStartHour = DefaultDayStartHour
	}
	if !viper.IsSet("app.day_start_hour") {
		Cfg.App.DayStartHour = DefaultDayStartHour
	}
	if Cfg.App.DefaultTzOffsetMin == 0 && !viper.IsSet("app.default_tz_offset_min") {
		Cfg.App.DefaultTzOffsetMin = DefaultTzOffsetMin
	}
	if Cfg.App.AutosaveIntervalS <= 0 {
		Cfg.App.AutosaveIntervalS = DefaultAutosaveIntervalS
	}
	if Cfg.App.DayPollIntervalS <= 0 {
		Cfg.App.DayPollIntervalS = DefaultDayPollIntervalS
	}
	if Cfg.App.MaxDaysCount <= 0 {
		Cfg.App.MaxDaysCount = DefaultMaxDaysCount
	}
	if Cfg.JWT.AccessTokenTTL <= 0 {
		Cfg.JWT.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if Cfg.Database.URL == "" {
		log.Println("Warning: Database URL is not set in config.")
	}
	if Cfg.JWT.SecretKey == "" {
		log.Println("Warning: JWT secret key is not set in config.")
	}

	log.Println("Config loaded successfully")
	log.Printf("Server Port: %s", Cfg.Server.Port)
	log.Printf("Day Start Hour: %d", Cfg.App.DayStartHour)
	log.Printf("Autosave Interval: %ds / Day Poll Interval: %ds", Cfg.App.AutosaveIntervalS, Cfg.App.DayPollIntervalS)

	return nil
}
