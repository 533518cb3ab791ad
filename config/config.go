// Package config 负责读取 .env、配置文件与 MEMEFORGE_ 前缀的环境变量。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的前缀，例如 MEMEFORGE_SERVER_ADDR。
const EnvPrefix = "MEMEFORGE"

// Config 汇总应用配置。
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Render  RenderConfig  `mapstructure:"render"`
	Caption CaptionConfig `mapstructure:"caption"`
	Export  ExportConfig  `mapstructure:"export"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig 是 HTTP 宿主的监听设置。
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// RenderConfig 给出默认的容器尺寸（逻辑像素）与设备像素比。
type RenderConfig struct {
	Width      float64 `mapstructure:"width"`
	Height     float64 `mapstructure:"height"`
	DPR        float64 `mapstructure:"dpr"`
	Background string  `mapstructure:"background"`
}

// CaptionConfig 是配文建议服务的设置。
type CaptionConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	Model     string        `mapstructure:"model"`
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	PerMinute int           `mapstructure:"per_minute"`
}

// ExportConfig 控制导出参数。
type ExportConfig struct {
	GIFDelay    time.Duration `mapstructure:"gif_delay"`
	JPEGQuality int           `mapstructure:"jpeg_quality"`
}

// LogConfig 控制日志级别与颜色。
type LogConfig struct {
	Level string `mapstructure:"level"`
	Color bool   `mapstructure:"color"`
}

// ResolvedAPIKey 优先返回显式配置的 key，否则读取 APIKeyEnv 指向的环境变量。
func (c CaptionConfig) ResolvedAPIKey() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	if c.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("render.width", 600.0)
	v.SetDefault("render.height", 600.0)
	v.SetDefault("render.dpr", 1.0)
	v.SetDefault("render.background", "#1f2937")
	v.SetDefault("caption.api_key", "")
	v.SetDefault("caption.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("caption.model", "gemini-2.5-flash")
	v.SetDefault("caption.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("caption.timeout", 20*time.Second)
	v.SetDefault("caption.per_minute", 10)
	v.SetDefault("export.gif_delay", 500*time.Millisecond)
	v.SetDefault("export.jpeg_quality", 92)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.color", true)
}

// Load 依次读取 .env（可选）、配置文件（可选）与环境变量。
// 配置文件路径取自 MEMEFORGE_CONFIG，否则查找 ~/.config/memeforge/config.toml。
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
		}
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "memeforge"))
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate 检查配置中会导致渲染失败的取值。
func (c Config) Validate() error {
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render 尺寸必须为正数: %gx%g", c.Render.Width, c.Render.Height)
	}
	if c.Render.DPR <= 0 {
		return fmt.Errorf("render.dpr 必须为正数: %g", c.Render.DPR)
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		return fmt.Errorf("export.jpeg_quality 超出范围 1-100: %d", c.Export.JPEGQuality)
	}
	if c.Export.GIFDelay < 0 {
		return fmt.Errorf("export.gif_delay 不能为负: %s", c.Export.GIFDelay)
	}
	return nil
}
