package sqlgate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sqlgate/sqlgate/internal/store"
)

// Sample limits for SampleEmployees.
const (
	DefaultSampleLimit = 10
	MaxSampleLimit     = 1000
)

const sampleEmployeesSQL = `
SELECT
    e.emp_no,
    e.first_name,
    e.last_name,
    e.gender,
    e.hire_date,
    d.dept_name,
    t.title,
    s.salary
FROM employees e
LEFT JOIN current_dept_emp de ON e.emp_no = de.emp_no
LEFT JOIN departments d ON de.dept_no = d.dept_no
LEFT JOIN titles t ON e.emp_no = t.emp_no AND t.to_date IS NULL
LEFT JOIN salaries s ON e.emp_no = s.emp_no
ORDER BY e.emp_no
`

const (
	countEmployeesSQL   = `SELECT COUNT(*) AS count FROM employees`
	countDepartmentsSQL = `SELECT COUNT(*) AS count FROM departments`
	avgSalarySQL        = `SELECT AVG(salary) AS avg_salary FROM salaries WHERE to_date = '9999-01-01'`
	genderSQL           = `SELECT gender, COUNT(*) AS count FROM employees GROUP BY gender ORDER BY gender`
	departmentsSQL      = `SELECT * FROM departments`
	healthSQL           = `SELECT 1`
)

// ClampSampleLimit maps a requested sample size into [1, MaxSampleLimit];
// zero or negative selects DefaultSampleLimit.
func ClampSampleLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSampleLimit
	case limit > MaxSampleLimit:
		return MaxSampleLimit
	}
	return limit
}

// SampleEmployees returns the first employees by emp_no joined with their
// department, title and salaries.
func (g *Gateway) SampleEmployees(ctx context.Context, limit int) (*RowsOutput, error) {
	limit = ClampSampleLimit(limit)
	sql := sampleEmployeesSQL + g.store.Dialect().Limit(1)
	return g.fixedRows(ctx, "SampleEmployees", sql, limit)
}

// Departments returns every row of the departments table.
func (g *Gateway) Departments(ctx context.Context) (*RowsOutput, error) {
	return g.fixedRows(ctx, "Departments", departmentsSQL)
}

func (g *Gateway) fixedRows(ctx context.Context, op, sql string, args ...any) (*RowsOutput, error) {
	startTime := time.Now()
	var res *store.Result
	err := g.readTx(ctx, seconds(g.config.Query.DefaultTimeoutSeconds), func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = tx.Query(ctx, sql, args...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", op, err)
	}
	g.redactor.Rows(res.Rows)

	g.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(res.Rows)).
		Msg(op + " executed")

	return &RowsOutput{Success: true, Data: res.Rows, Count: len(res.Rows)}, nil
}

// Stats returns employee and department totals, the average current salary
// rounded to two decimals, and the gender distribution.
func (g *Gateway) Stats(ctx context.Context) (*StatsOutput, error) {
	startTime := time.Now()
	var stats Stats
	err := g.readTx(ctx, seconds(g.config.Query.DefaultTimeoutSeconds), func(ctx context.Context, tx store.Tx) error {
		n, err := scalar(ctx, tx, countEmployeesSQL, "count")
		if err != nil {
			return err
		}
		stats.TotalEmployees = asInt64(n)

		if n, err = scalar(ctx, tx, countDepartmentsSQL, "count"); err != nil {
			return err
		}
		stats.TotalDepartments = asInt64(n)

		avg, err := scalar(ctx, tx, avgSalarySQL, "avg_salary")
		if err != nil {
			return err
		}
		if f, ok := asFloat64(avg); ok {
			rounded := math.Round(f*100) / 100
			stats.AverageSalary = &rounded
		}

		res, err := tx.Query(ctx, genderSQL)
		if err != nil {
			return err
		}
		stats.GenderDistribution = make([]GenderCount, 0, len(res.Rows))
		for _, row := range res.Rows {
			stats.GenderDistribution = append(stats.GenderDistribution, GenderCount{
				Gender: asString(row["gender"]),
				Count:  asInt64(row["count"]),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Stats query failed: %w", err)
	}

	g.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int64("total_employees", stats.TotalEmployees).
		Msg("Stats executed")

	return &StatsOutput{Success: true, Stats: stats}, nil
}

// Health runs a SELECT 1 round trip. Any error means the service is unavailable.
func (g *Gateway) Health(ctx context.Context) (*HealthOutput, error) {
	err := g.readTx(ctx, seconds(g.config.Query.DefaultTimeoutSeconds), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Query(ctx, healthSQL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Database connection error: %w", err)
	}
	return &HealthOutput{Status: "healthy", Database: "connected"}, nil
}

// scalar returns column col of the first row of sql, or nil for no rows.
func scalar(ctx context.Context, tx store.Tx, sql, col string) (any, error) {
	res, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	return res.Rows[0][col], nil
}
