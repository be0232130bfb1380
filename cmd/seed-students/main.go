package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/database"
	"github.com/stemsi/libris-backend/internal/logger"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/repository"
	"github.com/stemsi/libris-backend/internal/service"
)

var names = []string{
	"Juan Dela Cruz", "Maria Santos", "Jose Reyes", "Ana Bautista", "Miguel Garcia",
	"Sofia Mendoza", "Gabriel Torres", "Isabella Ramos", "Rafael Aquino", "Camille Villanueva",
	"Paolo Castillo", "Bea Navarro", "Carlo Fernandez", "Patricia Cruz", "Marco Gonzales",
	"Andrea Flores", "Luis Rivera", "Nicole Salazar", "Daniel Pascual", "Kristine Domingo",
}

var sections = []string{"Rizal", "Bonifacio", "Mabini", "Luna"}

var books = []model.CreateBookRequest{
	{Title: "Noli Me Tangere", Author: "Jose Rizal", Shelf: 1, Available: true},
	{Title: "El Filibusterismo", Author: "Jose Rizal", Shelf: 1, Available: true},
	{Title: "Florante at Laura", Author: "Francisco Balagtas", Shelf: 2, Available: true},
	{Title: "Ibong Adarna", Author: "", Shelf: 2, Available: true},
	{Title: "Mga Ibong Mandaragit", Author: "Amado V. Hernandez", Shelf: 3, Available: false},
	{Title: "Dekada '70", Author: "Lualhati Bautista", Shelf: 3, Available: true},
}

func main() {
	count := flag.Int("students", len(names), "Number of students to create")
	withBooks := flag.Bool("books", true, "Also seed the demo catalog")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	studentService := service.NewStudentService(repository.NewStudentRepository(pool))
	bookService := service.NewBookService(repository.NewBookRepository(pool))

	fmt.Printf("=== Seeding %d Students ===\n", *count)

	created, skipped := 0, 0
	for i := 0; i < *count; i++ {
		req := model.StudentRequest{
			LRN:       fmt.Sprintf("1000000%05d", i+1),
			Name:      names[i%len(names)],
			YearLevel: fmt.Sprintf("%d", 7+i%6),
			Section:   sections[i%len(sections)],
		}
		if i >= len(names) {
			req.Name = fmt.Sprintf("%s %d", req.Name, i/len(names)+1)
		}

		_, err := studentService.Create(ctx, req)
		switch {
		case errors.Is(err, repository.ErrDuplicateLRN):
			skipped++
		case err != nil:
			fmt.Printf("Error creating student %s (LRN: %s): %v\n", req.Name, req.LRN, err)
		default:
			created++
			if created%10 == 0 {
				fmt.Printf("Created %d students...\n", created)
			}
		}
	}
	fmt.Printf("\nStudents: %d created, %d already present.\n", created, skipped)

	if !*withBooks {
		return
	}

	existing, err := bookService.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list books")
	}
	if len(existing) > 0 {
		fmt.Printf("Catalog already has %d books; skipping.\n", len(existing))
		return
	}
	for _, b := range books {
		if _, err := bookService.Create(ctx, b); err != nil {
			log.Fatal().Err(err).Str("title", b.Title).Msg("Failed to create book")
		}
	}
	fmt.Printf("Catalog: %d books created.\n", len(books))
}
