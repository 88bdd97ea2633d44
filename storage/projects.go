package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

type projectEntity struct {
	aztables.Entity
	ETag      azcore.ETag `json:"odata.etag,omitempty"`
	Title     string      `json:"Title"`
	Category  string      `json:"Category"`
	DueDate   string      `json:"DueDate"`
	OwnerID   string      `json:"OwnerId"`
	Members   string      `json:"Members"`
	CreatedAt string      `json:"CreatedAt"`
}

// membership rows invert the project->members relation so listing a user's
// projects is a single-partition scan instead of a table scan.
type membershipEntity struct {
	aztables.Entity
}

func projectToEntity(p domain.Project) (projectEntity, error) {
	members, err := json.Marshal(p.Members)
	if err != nil {
		return projectEntity{}, err
	}
	ent := projectEntity{
		Entity:    aztables.Entity{PartitionKey: p.ID, RowKey: p.ID},
		Title:     p.Title,
		Category:  p.Category,
		OwnerID:   p.OwnerID,
		Members:   string(members),
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if p.DueDate != nil {
		ent.DueDate = p.DueDate.UTC().Format(time.RFC3339Nano)
	}
	return ent, nil
}

func entityToProject(data []byte) (domain.Project, azcore.ETag, error) {
	var ent projectEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Project{}, "", err
	}
	p := domain.Project{
		ID:       ent.RowKey,
		Title:    ent.Title,
		Category: ent.Category,
		OwnerID:  ent.OwnerID,
	}
	if ent.Members != "" {
		if err := json.Unmarshal([]byte(ent.Members), &p.Members); err != nil {
			return domain.Project{}, "", err
		}
	}
	if ent.DueDate != "" {
		due, err := time.Parse(time.RFC3339Nano, ent.DueDate)
		if err != nil {
			return domain.Project{}, "", err
		}
		p.DueDate = &due
	}
	if ent.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
		if err != nil {
			return domain.Project{}, "", err
		}
		p.CreatedAt = created
	}
	return p, ent.ETag, nil
}

// CreateProject persists a new project and the membership rows for its
// initial member set.
func (s *Storage) CreateProject(ctx context.Context, p domain.Project) error {
	ent, err := projectToEntity(p)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := s.projectTable.AddEntity(ctx, payload, nil); err != nil {
		return err
	}
	for _, member := range p.Members {
		if err := s.upsertMembership(ctx, member, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) upsertMembership(ctx context.Context, userID, projectID string) error {
	payload, err := json.Marshal(membershipEntity{
		Entity: aztables.Entity{PartitionKey: userID, RowKey: projectID},
	})
	if err != nil {
		return err
	}
	_, err = s.membershipTable.UpsertEntity(ctx, payload, nil)
	return err
}

// GetProject fetches one project. Returns domain.ErrNotFound when absent.
func (s *Storage) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	resp, err := s.projectTable.GetEntity(ctx, projectID, projectID, nil)
	if err != nil {
		if isStatus(err, 404) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p, _, err := entityToProject(resp.Value)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddMember adds the user to the project's member set and returns the updated
// project. Adding an existing member is a no-op; the set stays duplicate-free.
func (s *Storage) AddMember(ctx context.Context, projectID, userID string) (*domain.Project, error) {
	for {
		resp, err := s.projectTable.GetEntity(ctx, projectID, projectID, nil)
		if err != nil {
			if isStatus(err, 404) {
				return nil, domain.ErrNotFound
			}
			return nil, err
		}
		p, etag, err := entityToProject(resp.Value)
		if err != nil {
			return nil, err
		}
		if p.HasMember(userID) {
			return &p, nil
		}
		p.Members = append(p.Members, userID)
		ent, err := projectToEntity(p)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(ent)
		if err != nil {
			return nil, err
		}
		_, err = s.projectTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
			IfMatch:    &etag,
			UpdateMode: aztables.UpdateModeReplace,
		})
		if err != nil {
			if isStatus(err, 412) {
				continue
			}
			return nil, err
		}
		if err := s.upsertMembership(ctx, userID, projectID); err != nil {
			return nil, err
		}
		return &p, nil
	}
}

// DeleteProject removes the project, all its tasks and its membership rows.
// The cascade runs tasks-first so an interrupted delete never strands tasks
// behind a missing project.
func (s *Storage) DeleteProject(ctx context.Context, projectID string) error {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	tasks, err := s.ListTasksByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for start := 0; start < len(tasks); start += transactionLimit {
		end := start + transactionLimit
		if end > len(tasks) {
			end = len(tasks)
		}
		actions := make([]aztables.TransactionAction, 0, end-start)
		for _, t := range tasks[start:end] {
			payload, err := json.Marshal(aztables.Entity{PartitionKey: projectID, RowKey: t.ID})
			if err != nil {
				return err
			}
			actions = append(actions, aztables.TransactionAction{
				ActionType: aztables.TransactionTypeDelete,
				Entity:     payload,
			})
		}
		if _, err := s.taskTable.SubmitTransaction(ctx, actions, nil); err != nil {
			return err
		}
	}
	for _, member := range p.Members {
		if _, err := s.membershipTable.DeleteEntity(ctx, member, projectID, nil); err != nil && !isStatus(err, 404) {
			return err
		}
	}
	if _, err := s.projectTable.DeleteEntity(ctx, projectID, projectID, nil); err != nil && !isStatus(err, 404) {
		return err
	}
	return nil
}

// ListProjectsForUser returns every project the user belongs to, newest first.
func (s *Storage) ListProjectsForUser(ctx context.Context, userID string) ([]domain.Project, error) {
	filter := "PartitionKey eq '" + escapeFilter(userID) + "'"
	pager := s.membershipTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	projects := []domain.Project{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var m membershipEntity
			if err := json.Unmarshal(e, &m); err != nil {
				return nil, err
			}
			p, err := s.GetProject(ctx, m.RowKey)
			if err != nil {
				// Stale membership row from an interrupted cascade.
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, err
			}
			projects = append(projects, *p)
		}
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

type userEntity struct {
	aztables.Entity
	Name   string `json:"Name"`
	Email  string `json:"Email"`
	Avatar string `json:"Avatar"`
}

const userPartition = "user"

func entityToUser(data []byte) (domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: ent.RowKey, Name: ent.Name, Email: ent.Email, Avatar: ent.Avatar}, nil
}

// GetUser looks up a user by id in the read-only directory table.
func (s *Storage) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	resp, err := s.userTable.GetEntity(ctx, userPartition, userID, nil)
	if err != nil {
		if isStatus(err, 404) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u, err := entityToUser(resp.Value)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByEmail looks up a user by email, case-insensitively.
func (s *Storage) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	filter := "PartitionKey eq '" + userPartition + "' and Email eq '" + escapeFilter(email) + "'"
	pager := s.userTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			u, err := entityToUser(e)
			if err != nil {
				return nil, err
			}
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}
