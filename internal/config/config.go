package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	DatabasePath  string `envconfig:"DATABASE_PATH" default:"/app/data/promptshot.db"`
	ListenAddr    string `envconfig:"LISTEN_ADDR" default:":8080"`
	AdminSecret   string `envconfig:"ADMIN_SECRET" default:""`
	OpenRouterURL string `envconfig:"OPENROUTER_URL" default:"https://openrouter.ai/api"`
	OpenRouterKey string `envconfig:"OPENROUTER_API_KEY" default:""`
	StripeKey     string `envconfig:"STRIPE_SECRET_KEY" default:""`
	StripeURL     string `envconfig:"STRIPE_URL" default:""`
	SiteURL       string `envconfig:"SITE_URL" default:"https://promptshot.app"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("PROMPTSHOT", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
