package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/yoockh/yoocare/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB connects to TEST_POSTGRES_URI; the test is skipped without it.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	uri := os.Getenv("TEST_POSTGRES_URI")
	if uri == "" {
		t.Skip("TEST_POSTGRES_URI not set")
	}
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(&models.DoctorAssignment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func leastLoaded(counts []int64) int {
	best := 0
	for i, c := range counts {
		if c < counts[best] {
			best = i
		}
	}
	return best
}

func doctorIDs(t *testing.T, db *gorm.DB, n int) []string {
	t.Helper()
	prefix := uuid.NewString()[:8]
	ids := make([]string, n)
	for i := range ids {
		ids[i] = prefix + "-d" + string(rune('a'+i))
	}
	t.Cleanup(func() {
		db.Where("doctor_id IN ?", ids).Delete(&models.DoctorAssignment{})
	})
	return ids
}

func TestAssignmentRepoPicksLeastLoaded(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	repo := NewAssignmentRepo(db)
	ids := doctorIDs(t, db, 2)

	if err := db.Create(&[]models.DoctorAssignment{{DoctorID: ids[0], Count: 3}, {DoctorID: ids[1], Count: 1}}).Error; err != nil {
		t.Fatal(err)
	}

	chosen, count, err := repo.Assign(ctx, ids, leastLoaded)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if chosen != ids[1] || count != 2 {
		t.Fatalf("Assign() = %s/%d, want %s/2", chosen, count, ids[1])
	}
	counts, err := repo.Counts(ctx, ids)
	if err != nil {
		t.Fatal(err)
	}
	if counts[ids[0]] != 3 || counts[ids[1]] != 2 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestAssignmentRepoConcurrentFairness(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	repo := NewAssignmentRepo(db)
	ids := doctorIDs(t, db, 3)

	const runs = 31
	var wg sync.WaitGroup
	errs := make(chan error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := repo.Assign(ctx, ids, leastLoaded); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Assign: %v", err)
	}

	counts, err := repo.Counts(ctx, ids)
	if err != nil {
		t.Fatal(err)
	}
	var total, lo, hi int64 = 0, 1 << 62, -1
	for _, c := range counts {
		total += c
		lo = min(lo, c)
		hi = max(hi, c)
	}
	if total != runs || hi-lo > 1 {
		t.Fatalf("counts = %v, want %d spread at most 1 apart", counts, runs)
	}
}
