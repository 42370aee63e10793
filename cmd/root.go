package cmd

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/jobmatch/internal/decision"
	"github.com/spigell/jobmatch/internal/profile"
)

const (
	app       = "jobmatch"
	envPrefix = "JOBMATCH"
)

type Config struct {
	Threshold    float64         `mapstructure:"threshold"`
	Workers      int             `mapstructure:"workers"`
	PostingsFile string          `mapstructure:"postings-file"`
	MemoryFile   string          `mapstructure:"memory-file"`
	MaxLogLength int             `mapstructure:"max-log-length"`
	Vocabulary   []string        `mapstructure:"vocabulary"`
	Profile      *profile.Config `mapstructure:"profile"`
	Exclude      *struct {
		Companies []string `mapstructure:"companies"`
	} `mapstructure:"exclude"`
	Letter *struct {
		Template  string `mapstructure:"template"`
		Signature string `mapstructure:"signature"`
	} `mapstructure:"letter"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobmatch scores job postings against a candidate profile and drafts cover letters for the good ones",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	viper.SetDefault("threshold", decision.DefaultThreshold)
	viper.SetDefault("workers", 1)

	for key, env := range map[string]string{
		"threshold":     envPrefix + "_THRESHOLD",
		"postings-file": envPrefix + "_POSTINGS_FILE",
		"memory-file":   envPrefix + "_MEMORY_FILE",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	// .env is optional and never overrides variables already set.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if config != nil {
		if err := decision.ValidateThreshold(config.Threshold); err != nil {
			return nil, fmt.Errorf("threshold: %w", err)
		}
	}

	return config, nil
}
