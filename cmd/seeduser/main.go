// seeduser creates an admin account, or resets its password and role when
// the username already exists.
//
//	go run ./cmd/seeduser -username admin -password 's3cret-pass'
package main

import (
	"context"
	"flag"
	"os"

	"pharmapos/internal/config"
	"pharmapos/internal/dto"
	"pharmapos/internal/infra"
	"pharmapos/internal/model"
	"pharmapos/internal/repository"
	"pharmapos/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	username := flag.String("username", "admin", "login name")
	password := flag.String("password", "", "password (min 8 chars)")
	fullName := flag.String("name", "Administrator", "full name")
	email := flag.String("email", "", "email")
	role := flag.String("role", model.RoleAdmin, "admin | staff")
	flag.Parse()

	if len(*password) < 8 {
		log.Fatal().Msg("-password must be at least 8 characters")
	}
	if *role != model.RoleAdmin && *role != model.RoleStaff {
		log.Fatal().Str("role", *role).Msg("-role must be admin or staff")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}

	ctx := context.Background()
	repo := repository.NewUserRepository(db)

	existing, err := repo.FindByUsername(ctx, *username)
	switch {
	case err == nil:
		hash, err := service.HashPassword(*password)
		if err != nil {
			log.Fatal().Err(err).Msg("bcrypt")
		}
		existing.PasswordHash = hash
		existing.Role = *role
		existing.Active = true
		if err := repo.Update(ctx, existing); err != nil {
			log.Fatal().Err(err).Msg("failed to update user")
		}
		log.Info().Str("username", *username).Msg("user updated")
	case repository.IsNotFound(err):
		svc := service.NewAuthService(repo, cfg)
		if _, err := svc.CreateUser(ctx, dto.CreateUserRequest{
			Username: *username,
			FullName: *fullName,
			Email:    *email,
			Password: *password,
			Role:     *role,
		}); err != nil {
			log.Fatal().Err(err).Msg("failed to create user")
		}
		log.Info().Str("username", *username).Str("role", *role).Msg("user created")
	default:
		log.Fatal().Err(err).Msg("failed to look up user")
	}
}
