package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
)

type ProjectRepository interface {
	EnsureProject(ctx context.Context, name string, apartmentNumbers []string) (*entity.Project, error)
	GetByName(ctx context.Context, name string) (*entity.Project, error)
	ListApartments(ctx context.Context, projectID uuid.UUID) ([]*entity.Apartment, error)
}

type projectRepository struct {
	client *Client
	logger *slog.Logger
}

func NewProjectRepository(client *Client, logger *slog.Logger) ProjectRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &projectRepository{client: client, logger: logger}
}

// EnsureProject creates the project and any missing apartments. Existing rows
// are left untouched, so it is safe to call on every start.
func (r *projectRepository) EnsureProject(ctx context.Context, name string, apartmentNumbers []string) (*entity.Project, error) {
	var project *entity.Project
	err := r.client.WithTx(ctx, func(ctx context.Context) error {
		p, err := r.GetByName(ctx, name)
		switch {
		case err == nil:
			project = p
		case common.IsNotFound(err):
			project = &entity.Project{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
			q, args := r.client.builder().Insert("projects").
				Columns("id", "name", "created_at").
				Values(project.ID.String(), project.Name, formatTime(project.CreatedAt)).
				Query()
			if _, err := r.client.exec(ctx, q, args); err != nil {
				return common.DatabaseError("create project", err)
			}
			r.logger.Info("project created", "project_id", project.ID, "name", name)
		default:
			return err
		}

		existing, err := r.ListApartments(ctx, project.ID)
		if err != nil {
			return err
		}
		have := make(map[string]struct{}, len(existing))
		for _, a := range existing {
			have[a.Number] = struct{}{}
		}
		for _, num := range apartmentNumbers {
			if _, ok := have[num]; ok {
				continue
			}
			q, args := r.client.builder().Insert("apartments").
				Columns("id", "project_id", "number").
				Values(uuid.NewString(), project.ID.String(), num).
				Query()
			if _, err := r.client.exec(ctx, q, args); err != nil {
				return common.DatabaseError("create apartment", err)
			}
			have[num] = struct{}{}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to ensure project", "name", name, "error", err)
		return nil, err
	}
	return project, nil
}

func (r *projectRepository) GetByName(ctx context.Context, name string) (*entity.Project, error) {
	q, args := r.client.builder().
		Select("id", "name", "created_at").
		From(r.client.builder().Table("projects")).
		Where(entsql.EQ("name", name)).
		Query()

	var out *entity.Project
	err := r.client.query(ctx, q, args, func(rows *entsql.Rows) error {
		var id, n, created string
		if err := rows.Scan(&id, &n, &created); err != nil {
			return err
		}
		pid, err := parseID(id, "project")
		if err != nil {
			return err
		}
		ts, err := parseTime(created)
		if err != nil {
			return err
		}
		out = &entity.Project{ID: pid, Name: n, CreatedAt: ts}
		return nil
	})
	if err != nil {
		return nil, common.DatabaseError("get project", err)
	}
	if out == nil {
		return nil, common.NotFoundf("project %q", name)
	}
	return out, nil
}

func (r *projectRepository) ListApartments(ctx context.Context, projectID uuid.UUID) ([]*entity.Apartment, error) {
	t := r.client.builder().Table("apartments")
	s := r.client.builder().
		Select("id", "project_id", "number").
		From(t).
		Where(entsql.EQ("project_id", projectID.String()))
	s.OrderBy(entsql.Asc(s.C("number")))
	q, args := s.Query()

	var out []*entity.Apartment
	err := r.client.query(ctx, q, args, func(rows *entsql.Rows) error {
		var id, pid, num string
		if err := rows.Scan(&id, &pid, &num); err != nil {
			return err
		}
		aid, err := parseID(id, "apartment")
		if err != nil {
			return err
		}
		prj, err := parseID(pid, "project")
		if err != nil {
			return err
		}
		out = append(out, &entity.Apartment{ID: aid, ProjectID: prj, Number: num})
		return nil
	})
	if err != nil {
		return nil, common.DatabaseError("list apartments", err)
	}
	return out, nil
}
