package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/config"
	"github.com/hackgods/mentor-appointments/internal/db"
	"github.com/hackgods/mentor-appointments/internal/identity"
	"github.com/hackgods/mentor-appointments/internal/logger"
)

func main() {
	students := flag.Int("students", 500, "number of students to create")
	mentors := flag.Int("mentors", 25, "number of mentors to create")
	tokens := flag.Int("tokens", 3, "sample tokens to print per role")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	log.Info("seed starting", zap.Int("students", *students), zap.Int("mentors", *mentors))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	if err := seedUsers(ctx, pool, log, identity.RoleMentor, *mentors); err != nil {
		log.Fatal("seed mentors", zap.Error(err))
	}
	if err := seedUsers(ctx, pool, log, identity.RoleStudent, *students); err != nil {
		log.Fatal("seed students", zap.Error(err))
	}

	if *tokens > 0 {
		if err := printTokens(ctx, pool, cfg, *tokens); err != nil {
			log.Fatal("issue sample tokens", zap.Error(err))
		}
	}

	log.Info("seed complete")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, role identity.Role, count int) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			// Suffix keeps emails unique across reruns.
			email := fmt.Sprintf("%s.%s@%s", gofakeit.Username(), id.String()[:8], gofakeit.DomainName())

			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, email, role, created_at)
				VALUES ($1, $2, $3, $4, now())
			`, id, name, email, role)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info("users seeded", zap.String("role", string(role)), zap.Int("done", end), zap.Int("total", count))
	}

	return nil
}

func printTokens(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, perRole int) error {
	dir := identity.NewPgDirectory(pool)
	issuer := identity.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	for _, role := range []identity.Role{identity.RoleStudent, identity.RoleMentor} {
		users, err := dir.ListByRole(ctx, role, perRole)
		if err != nil {
			return err
		}
		for _, u := range users {
			token, err := issuer.Issue(u.ID, u.Role)
			if err != nil {
				return err
			}
			fmt.Printf("%-8s %s %s\n  %s\n", role, u.ID, u.Email, token)
		}
	}
	return nil
}
