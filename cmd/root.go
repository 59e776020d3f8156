package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	logging "quinn/pkg/logger/pkg"
)

func Execute() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	viper.SetConfigFile("./config/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("rabbitmq.username", "RABBITMQ_USERNAME")
	viper.BindEnv("rabbitmq.password", "RABBITMQ_PASSWORD")
	viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	viper.BindEnv("forge.genurl", "FORGE_GEN_URL")

	if err := logging.InitLogger(&logging.Config{
		Pretty: viper.GetBool("log.pretty"),
		Level:  viper.GetString("log.level"),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	startHTTP()
}
