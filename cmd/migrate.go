package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cleanzone-api/database"
	"cleanzone-api/services"
	"cleanzone-api/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Create or update the database schema and its indexes.
With --seed an empty database also receives an administrator account and a sample zone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := utils.NewLogger(cfg.Log)

		db, err := database.Initialize(cfg.Database, log)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()

		log.Info("Running database migrations...")
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		seed, _ := cmd.Flags().GetBool("seed")
		if seed || cfg.Database.Seed {
			password, _ := cmd.Flags().GetString("admin-password")
			if password == "" {
				return fmt.Errorf("--admin-password is required when seeding")
			}
			hash, err := services.NewPasswordHasher(cfg.Auth.PBKDF2Iterations).Hash(password)
			if err != nil {
				return fmt.Errorf("failed to hash admin password: %w", err)
			}
			if err := database.SeedData(db, hash, log); err != nil {
				return fmt.Errorf("failed to seed database: %w", err)
			}
		}

		log.Info("Database migrations completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("seed", false, "Seed an empty database with an administrator and a sample zone")
	migrateCmd.Flags().String("admin-password", "", "Password for the seeded administrator")
}
