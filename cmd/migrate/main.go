// Command migrate applies the database schema and optionally loads a small
// demo dataset for local development.
//
// Usage:
//
//	go run ./cmd/migrate -schema db/schema.sql
//	go run ./cmd/migrate -seed
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/timetablepro/timetablepro-api/internal/models"
	"github.com/timetablepro/timetablepro-api/internal/repository"
	"github.com/timetablepro/timetablepro-api/pkg/config"
	"github.com/timetablepro/timetablepro-api/pkg/database"
)

func main() {
	schemaPath := flag.String("schema", "db/schema.sql", "path to the schema file")
	seed := flag.Bool("seed", false, "insert demo users, rooms, and schedules after migrating")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatalf("failed to read schema %s: %v", *schemaPath, err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}
	log.Printf("schema applied from %s", *schemaPath)

	if *seed {
		if err := seedDemoData(context.Background(), db); err != nil {
			log.Fatalf("failed to seed demo data: %v", err)
		}
		log.Println("demo data seeded")
	}
}

func seedDemoData(ctx context.Context, db *sqlx.DB) error {
	users := repository.NewUserRepository(db)
	rooms := repository.NewRoomRepository(db)
	schedules := repository.NewScheduleRepository(db)
	availability := repository.NewAvailabilityRepository(db)

	if _, err := seedUser(ctx, users, "admin@school.test", "admin123", "Site Admin", models.RoleAdmin); err != nil {
		return err
	}

	ada, err := seedUser(ctx, users, "ada@school.test", "teacher123", "Ada Lovelace", models.RoleTeacher)
	if err != nil {
		return err
	}
	grace, err := seedUser(ctx, users, "grace@school.test", "teacher123", "Grace Hopper", models.RoleTeacher)
	if err != nil {
		return err
	}

	room101 := &models.Room{Name: "101", Building: "Main", Capacity: 30, Active: true}
	room102 := &models.Room{Name: "102", Building: "Main", Capacity: 24, Active: true}
	lab := &models.Room{Name: "Science Lab", Building: "Annex", Capacity: 16, Active: true}
	for _, room := range []*models.Room{room101, room102, lab} {
		if err := rooms.Create(ctx, room); err != nil {
			return err
		}
	}

	demo := []*models.Schedule{
		{Subject: "Mathematics", TeacherID: ada.ID, RoomID: room101.ID, DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00", Recurrence: "weekly"},
		{Subject: "Mathematics", TeacherID: ada.ID, RoomID: room101.ID, DayOfWeek: "wednesday", StartTime: "09:00", EndTime: "10:00", Recurrence: "weekly"},
		{Subject: "Computer Science", TeacherID: grace.ID, RoomID: lab.ID, DayOfWeek: "monday", StartTime: "10:00", EndTime: "12:00", Recurrence: "weekly"},
		{Subject: "Physics", TeacherID: grace.ID, RoomID: room102.ID, DayOfWeek: "friday", StartTime: "13:00", EndTime: "14:30", Recurrence: "weekly"},
	}
	for _, schedule := range demo {
		if err := schedules.Create(ctx, schedule); err != nil {
			return err
		}
	}

	adaSlots := []models.AvailabilitySlot{
		{TeacherID: ada.ID, DayOfWeek: "monday", StartTime: "08:00", EndTime: "14:00", IsAvailable: true},
		{TeacherID: ada.ID, DayOfWeek: "wednesday", StartTime: "08:00", EndTime: "14:00", IsAvailable: true},
	}
	return availability.ReplaceForTeacher(ctx, ada.ID, adaSlots)
}

func seedUser(ctx context.Context, users *repository.UserRepository, email, password, fullName string, role models.UserRole) (*models.User, error) {
	if existing, err := users.FindByEmail(ctx, email); err == nil {
		return existing, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
		Active:       true,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
