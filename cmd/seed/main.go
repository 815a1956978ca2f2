package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/truecar-kr/truecar-backend/config"
	"github.com/truecar-kr/truecar-backend/internal/app/model"
	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/internal/db"
	"github.com/truecar-kr/truecar-backend/internal/sheet"
	"gorm.io/gorm"
)

func main() {
	// 명령줄 인자 확인
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	reviewRepo := repository.NewReviewRepository(db.GetDB())
	ctx := context.Background()

	// XLSX 파일 읽기 (관리자 export 형식)
	fmt.Printf("Reading XLSX file: %s\n", filePath)
	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open XLSX:", err)
	}
	result, err := sheet.ReadReviews(f)
	f.Close()
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	reviews, existing, err := dropExisting(ctx, reviewRepo, result.Reviews)
	if err != nil {
		log.Fatal("Failed to check existing reviews:", err)
	}

	fmt.Printf("Reviews to import: %d (skipped rows: %d, already present: %d)\n",
		len(reviews), result.Skipped, existing)
	if len(reviews) == 0 {
		fmt.Println("Nothing to import.")
		return
	}

	// 사용자 확인
	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	if err := reviewRepo.CreateBatch(ctx, reviews); err != nil {
		log.Fatal("Failed to import reviews:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total reviews imported: %d\n", len(reviews))
}

// dropExisting removes rows whose id is already stored so a workbook can be
// imported more than once.
func dropExisting(ctx context.Context, repo repository.ReviewRepository, reviews []model.Review) ([]model.Review, int, error) {
	kept := make([]model.Review, 0, len(reviews))
	existing := 0
	for _, r := range reviews {
		if r.ID != "" {
			_, err := repo.FindByID(ctx, r.ID)
			if err == nil {
				existing++
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, 0, err
			}
		}
		kept = append(kept, r)
	}
	return kept, existing, nil
}
