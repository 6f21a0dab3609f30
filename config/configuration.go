package config

import (
	"strings"

	"github.com/metrico/healpipe/source"
	"github.com/spf13/viper"
)

type ServerConfiguration struct {
	Host string `json:"host" mapstructure:"host" default:"0.0.0.0"`
	Port string `json:"port" mapstructure:"port" default:"8123"`
}

type SourceConfiguration struct {
	Engine    string `json:"engine" mapstructure:"engine" default:"arrow"`
	BatchSize int64  `json:"batch_size" mapstructure:"batch_size" default:"65536"`
}

type Configuration struct {
	Server   ServerConfiguration `json:"server" mapstructure:"server"`
	Workers  int                 `json:"workers" mapstructure:"workers" default:"4"`
	Source   SourceConfiguration `json:"source" mapstructure:"source"`
	S3       source.S3Options    `json:"s3" mapstructure:"s3"`
	Catalog  string              `json:"catalog" mapstructure:"catalog" default:"catalog.yaml"`
	LogLevel string              `json:"log_level" mapstructure:"log_level" default:"info"`
}

var Config *Configuration

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8123")
	v.SetDefault("workers", 4)
	v.SetDefault("source.engine", source.EngineArrow)
	v.SetDefault("source.batch_size", 64*1024)
	v.SetDefault("s3.secure", true)
	v.SetDefault("catalog", "catalog.yaml")
	v.SetDefault("log_level", "info")
}

// InitConfig loads file, when set, into Config. Every key can be overridden
// with a HEALPIPE_ prefixed environment variable, e.g. HEALPIPE_SERVER_PORT.
func InitConfig(file string) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("healpipe")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		err := v.ReadInConfig()
		if err != nil {
			panic(err)
		}
	}
	cfg := &Configuration{}
	err := v.Unmarshal(cfg)
	if err != nil {
		panic(err)
	}
	Config = cfg
}
