// Package repotest opens throwaway in-memory databases for tests.
package repotest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
)

// Apartments is the default apartment list seeded by NewProject.
var Apartments = []string{"1", "3", "5", "6", "7", "10", "11", "14"}

// New opens a migrated in-memory SQLite database that is closed with the test.
func New(t testing.TB) *repository.Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	dsn := fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", name)

	client, err := repository.Open(context.Background(), repository.Config{Driver: "sqlite", DSN: dsn}, slog.Default())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(client.Close)
	if err := client.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}

// NewProject seeds the default project and its apartments.
func NewProject(t testing.TB, client *repository.Client) *entity.Project {
	t.Helper()
	p, err := repository.NewProjectRepository(client, nil).EnsureProject(context.Background(), "test project", Apartments)
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p
}
