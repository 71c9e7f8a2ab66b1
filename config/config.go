package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OSS      OSSConfig      `mapstructure:"oss"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Email    EmailConfig    `mapstructure:"email"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Provider ProviderConfig `mapstructure:"provider"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Credits  CreditsConfig  `mapstructure:"credits"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type OAuthConfig struct {
	Google GoogleOAuthConfig `mapstructure:"google"`
}

type GoogleOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type QueueConfig struct {
	CartoonQueue string `mapstructure:"cartoon_queue"`
	MaxWorkers   int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// PaymentConfig 支付回调配置，Grants 为空时使用内置价格表
type PaymentConfig struct {
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Grants        []GrantConfig `mapstructure:"grants"`
}

// GrantConfig 金额 → 发放额度映射（数据驱动，改价只改配置）
type GrantConfig struct {
	Amount         int    `mapstructure:"amount"`
	StoryCredits   int    `mapstructure:"story_credits"`
	CartoonCredits int    `mapstructure:"cartoon_credits"`
	Type           string `mapstructure:"type"` // subscription, cartoon
	Plan           string `mapstructure:"plan"` // monthly, yearly（仅 subscription）
}

type ProviderConfig struct {
	Story StoryProviderConfig `mapstructure:"story"`
	TTS   TTSProviderConfig   `mapstructure:"tts"`
	Image ImageProviderConfig `mapstructure:"image"`
}

type StoryProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type TTSProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Voice          string `mapstructure:"voice"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type ImageProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type AudioConfig struct {
	FFmpegPath  string            `mapstructure:"ffmpeg_path"`
	FFprobePath string            `mapstructure:"ffprobe_path"`
	TempDir     string            `mapstructure:"temp_dir"`     // 混音临时目录，为空用系统临时目录
	MusicVolume float64           `mapstructure:"music_volume"` // 背景音乐音量，默认 0.25
	FadeSeconds int               `mapstructure:"fade_seconds"` // 结尾淡出时长，默认 3
	ExpireHours int               `mapstructure:"expire_hours"` // 混音临时目录过期时间（小时）
	MusicTracks map[string]string `mapstructure:"music_tracks"` // 背景音乐曲库 name → url
}

// CreditsConfig 各动作的星星消耗，零值时使用内置默认
type CreditsConfig struct {
	NarrationCost      int `mapstructure:"narration_cost"`       // 默认 1
	CharacterImageCost int `mapstructure:"character_image_cost"` // 默认 1
	CartoonCost        int `mapstructure:"cartoon_cost"`         // 默认 5
	FreeTrialStories   int `mapstructure:"free_trial_stories"`   // 默认 3
	FreeTrialDays      int `mapstructure:"free_trial_days"`      // 默认 7
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
