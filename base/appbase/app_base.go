package appbase

import (
	"fmt"
	"io/fs"
	"path"
	"reflect"

	"github.com/spf13/viper"
	"github.com/tapflow/tapflow/base/logging"
)

// AppConfig is implemented by application config structs loaded with
// InitAppConfig. PostInit runs after viper unmarshalling and may derive
// or validate settings.
type AppConfig interface {
	PostInit(settings *AppSettings) error
}

type AppSettings struct {
	Name, ConfigPath, ConfigName, ConfigType, EnvPrefix string
}

// initViperVariables binds every `mapstructure`-tagged field of the config
// struct to an env variable and registers its `default` tag value.
func initViperVariables[C AppConfig](appConfig C) {
	elem := reflect.ValueOf(appConfig).Elem()
	tp := elem.Type()
	fieldsCount := tp.NumField()
	for i := 0; i < fieldsCount; i++ {
		field := tp.Field(i)
		configType := reflect.TypeOf((*AppConfig)(nil)).Elem()
		if reflect.PointerTo(field.Type).Implements(configType) {
			initViperVariables(elem.Field(i).Addr().Interface().(AppConfig))
		} else if field.Type.Kind() == reflect.Struct {
			logging.Fatalf("Application config has incorrect struct field '%s': all structs nested in config must implement interface 'AppConfig'", field.Name)
		}
		variable := field.Tag.Get("mapstructure")
		if variable != "" {
			defaultValue := field.Tag.Get("default")
			if defaultValue != "" {
				viper.SetDefault(variable, defaultValue)
			} else {
				_ = viper.BindEnv(variable)
			}
		}
	}
}

// InitAppConfig loads the application config from env variables and an
// optional config file. Missing config file is not an error.
func InitAppConfig[C AppConfig](appConfig C, settings *AppSettings) error {
	configPath := settings.ConfigPath
	if configPath == "" {
		configPath = "."
	}
	initViperVariables(appConfig)
	viper.SetConfigFile(path.Join(configPath, fmt.Sprintf("%s.%s", settings.ConfigName, settings.ConfigType)))
	viper.SetConfigType(settings.ConfigType)
	viper.SetEnvPrefix(settings.EnvPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(*fs.PathError); !ok {
			return fmt.Errorf("error reading config file: %s", err)
		}
	}
	err := viper.Unmarshal(&appConfig)
	if err != nil {
		return fmt.Errorf("error unmarshalling config: %s", err)
	}
	if err = appConfig.PostInit(settings); err != nil {
		return fmt.Errorf("error initializing config: %s", err)
	}
	return nil
}
