package main

import (
	"flag"
	"fmt"

	"github.com/zanzhit/ppe_monitor/internal/config"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/jwt"
)

func main() {
	var name, role string

	flag.StringVar(&name, "name", "", "operator name")
	flag.StringVar(&role, "role", models.RoleOperator, "operator or viewer")

	cfg := config.MustLoad()

	if name == "" {
		panic("name is required")
	}
	if role != models.RoleOperator && role != models.RoleViewer {
		panic("role must be operator or viewer")
	}
	if cfg.Secret == "" {
		panic("JWT_SECRET is required")
	}

	token, err := jwt.NewToken(models.Operator{Name: name, Role: role}, cfg.TokenTTL, cfg.Secret)
	if err != nil {
		panic(err)
	}

	fmt.Println(token)
}
