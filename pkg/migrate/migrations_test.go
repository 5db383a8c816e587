package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/techloans-backend/pkg/migrate"
)

func readMigration(t *testing.T, dir, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found in %s", suffix, dir)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationDirsAreValid(t *testing.T) {
	for _, dir := range []string{"migrations", "migrations_mysql"} {
		if err := migrate.ValidateDir(dir); err != nil {
			t.Fatalf("validate %s: %v", dir, err)
		}
	}
}

func TestLoansMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "migrations", "create_loans")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS loans",
		"FOREIGN KEY (resource_id) REFERENCES resources(id)",
		"CHECK (due_at > start_at)",
		"ON loans (resource_id) WHERE state IN ('active', 'overdue')",
		"DROP TABLE IF EXISTS loans",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMySQLSchemaEnforcesActiveCodeUniqueness(t *testing.T) {
	content := readMigration(t, "migrations_mysql", "create_schema")
	for _, sub := range []string{
		"active_code varchar(64) AS (IF(deleted_at IS NULL, code, NULL)) STORED",
		"UNIQUE KEY resources_active_code_key (active_code)",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}

	pg := readMigration(t, "migrations", "create_resources")
	if !strings.Contains(pg, "resources_active_code_key ON resources (code) WHERE deleted_at IS NULL") {
		t.Error("postgres schema lost the partial unique index")
	}
}

func TestConfigurationSeedsDefaults(t *testing.T) {
	for _, dir := range []string{"migrations", "migrations_mysql"} {
		suffix := "create_system_configuration"
		if dir == "migrations_mysql" {
			suffix = "create_schema"
		}
		content := readMigration(t, dir, suffix)
		for _, sub := range []string{
			"('dias_antes_notificacion', '1'",
			"('monto_multa_por_dia', '5000'",
			"('max_prestamos_simultaneos', '3'",
			"('dias_maximo_prestamo', '7'",
			"('habilitar_multas', 'true'",
			"('habilitar_reservas', 'true'",
		} {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing seed %q", dir, sub)
			}
		}
	}
}

func TestDialect(t *testing.T) {
	tests := map[string]string{"": "postgres", "postgres": "postgres", "MySQL": "mysql"}
	for driver, want := range tests {
		got, err := migrate.Dialect(driver)
		if err != nil {
			t.Fatalf("driver %q: unexpected error %v", driver, err)
		}
		if got != want {
			t.Fatalf("driver %q: expected %s got %s", driver, want, got)
		}
	}
	if _, err := migrate.Dialect("sqlite"); err == nil {
		t.Fatal("sqlite is migrated from models, not goose")
	}
	if migrate.DirFor("mysql") != migrate.MySQLDir || migrate.DirFor("postgres") != migrate.DefaultDir {
		t.Fatal("unexpected migration dir mapping")
	}
}
