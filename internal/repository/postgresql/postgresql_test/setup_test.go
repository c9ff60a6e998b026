package postgresql_test

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/kpi-backend-go/internal/repository/postgresql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// testDB stays nil when neither TEST_DATABASE_URL nor Docker is available.
var testDB *database.DB

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" && !testing.Short() {
		ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("kpi_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("postgres"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			log.Printf("postgres container unavailable, repository tests will be skipped: %v", err)
			return m.Run()
		}
		defer func() {
			if err := testcontainers.TerminateContainer(ctr); err != nil {
				log.Printf("failed to terminate postgres container: %v", err)
			}
		}()

		dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			log.Printf("failed to read container dsn: %v", err)
			return 1
		}
	}
	if dsn == "" {
		return m.Run()
	}

	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 5})
	if err != nil {
		log.Printf("failed to connect to test database: %v", err)
		return 1
	}
	defer db.Close()

	if err := postgresql.Migrate(ctx, db); err != nil {
		log.Printf("failed to migrate test database: %v", err)
		return 1
	}
	testDB = db
	return m.Run()
}

// setupDB skips the test without a database and truncates every table otherwise.
func setupDB(t *testing.T) *database.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("no test database: set TEST_DATABASE_URL or run Docker")
	}

	_, err := testDB.Exec(context.Background(), `
		TRUNCATE TABLE audit_logs, notifications, notification_preferences, evaluations, kpi_values,
			kpis, review_cycles, refresh_tokens, employees, sections, departments, users CASCADE
	`)
	require.NoError(t, err)
	return testDB
}

func ptr[T any](v T) *T { return &v }

// seed is a department with one section and an employee in it.
type seed struct {
	DepartmentID string
	SectionID    string
	UserID       string
	EmployeeID   string
	ApproverID   string // user id of a section head in the same section
	CycleID      string
	KpiID        string
}

func seedOrg(t *testing.T, db *database.DB) seed {
	t.Helper()
	ctx := context.Background()
	var s seed

	row := func(query string, args ...interface{}) string {
		var id string
		require.NoError(t, db.QueryRow(ctx, query, args...).Scan(&id))
		return id
	}

	s.DepartmentID = row(`INSERT INTO departments (name, code) VALUES ('Operations', 'OPS') RETURNING id`)
	s.SectionID = row(`INSERT INTO sections (department_id, name, code) VALUES ($1, 'Logistics', 'LOG') RETURNING id`, s.DepartmentID)

	s.UserID = row(`INSERT INTO users (email, role) VALUES ('staff@kpi.test', 'employee') RETURNING id`)
	s.EmployeeID = row(`INSERT INTO employees (user_id, employee_code, full_name, section_id, department_id)
		VALUES ($1, 'EMP-001', 'Rina Staff', $2, $3) RETURNING id`, s.UserID, s.SectionID, s.DepartmentID)

	s.ApproverID = row(`INSERT INTO users (email, role) VALUES ('head@kpi.test', 'section_head') RETURNING id`)
	row(`INSERT INTO employees (user_id, employee_code, full_name, section_id, department_id)
		VALUES ($1, 'EMP-010', 'Sari Section', $2, $3) RETURNING id`, s.ApproverID, s.SectionID, s.DepartmentID)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.CycleID = row(`INSERT INTO review_cycles (name, start_date, end_date) VALUES ($1, $2, $3) RETURNING id`,
		fmt.Sprintf("Q1 %d", start.Year()), start, start.AddDate(0, 3, -1))
	s.KpiID = row(`INSERT INTO kpis (name, unit, frequency, is_active) VALUES ('On-time delivery', '%', 'monthly', TRUE) RETURNING id`)
	return s
}
